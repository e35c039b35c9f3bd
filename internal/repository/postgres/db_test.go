package postgres

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/Kerhoff/kasa/internal/repository"
)

func TestWrapMapsUniqueViolation(t *testing.T) {
	err := wrap("create family", &pq.Error{Code: "23505", Message: "duplicate key value"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Contains(t, err.Error(), "failed to create family")

	other := errors.New("connection reset")
	err = wrap("create family", other)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, repository.ErrDuplicate)
}

func TestNullableBillingKey(t *testing.T) {
	assert.False(t, nullable("").Valid)
	assert.True(t, nullable("family:1:2024-01").Valid)
}

type fakeResult int64

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestExpectOne(t *testing.T) {
	assert.NoError(t, expectOne(fakeResult(1), "stamp cycle"))
	assert.ErrorIs(t, expectOne(fakeResult(0), "stamp cycle"), repository.ErrConflict)
}
