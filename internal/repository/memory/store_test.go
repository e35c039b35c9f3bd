package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

func seedFamily(t *testing.T, repos *repository.Store) *models.Family {
	t.Helper()
	f, err := repos.Families.Create(context.Background(), &models.Family{OwnerID: 1, Name: "Cohen"})
	require.NoError(t, err)
	return f
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	f := seedFamily(t, repos)

	boom := errors.New("boom")
	err := repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := repos.Members.Create(ctx, &models.Member{FamilyID: f.ID, FirstName: "Dovid"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	members, err := repos.Members.ListActiveByFamily(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, members)

	err = repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := repos.Members.Create(ctx, &models.Member{FamilyID: f.ID, FirstName: "Dovid"})
		return err
	})
	require.NoError(t, err)
	members, err = repos.Members.ListActiveByFamily(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRollbackKeepsWritesOutsideTx(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	f := seedFamily(t, repos)

	boom := errors.New("boom")
	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := repos.Withdrawals.Create(ctx, &models.Withdrawal{FamilyID: f.ID, Amount: decimal.NewFromInt(5), Date: time.Now()}); err != nil {
				return err
			}
			close(inside)
			<-release
			return boom
		})
	}()

	<-inside
	p, err := repos.Payments.Create(ctx, &models.Payment{FamilyID: f.ID, Amount: decimal.NewFromInt(40), Date: time.Now()})
	require.NoError(t, err)
	close(release)
	assert.ErrorIs(t, <-done, boom)

	got, err := repos.Payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(40)))

	withdrawals, err := repos.Withdrawals.ListByFamily(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, withdrawals)
}

func TestRefundReservationIsBounded(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	f := seedFamily(t, repos)

	p, err := repos.Payments.Create(ctx, &models.Payment{FamilyID: f.ID, Amount: decimal.NewFromInt(100), Date: time.Now()})
	require.NoError(t, err)

	first, err := repos.Payments.ReserveRefund(ctx, p.ID, &models.RefundEntry{Amount: decimal.NewFromInt(60)})
	require.NoError(t, err)
	assert.Equal(t, models.RefundPending, first.Status)

	_, err = repos.Payments.ReserveRefund(ctx, p.ID, &models.RefundEntry{Amount: decimal.NewFromInt(50)})
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, repos.Payments.FailRefund(ctx, first.ID))
	assert.ErrorIs(t, repos.Payments.CompleteRefund(ctx, first.ID, "re_1"), repository.ErrConflict)

	second, err := repos.Payments.ReserveRefund(ctx, p.ID, &models.RefundEntry{Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	require.NoError(t, repos.Payments.CompleteRefund(ctx, second.ID, "re_2"))

	got, err := repos.Payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFullyRefunded())
	require.Len(t, got.Refunds, 2)
	assert.Equal(t, models.RefundFailed, got.Refunds[0].Status)
	assert.Equal(t, models.RefundSucceeded, got.Refunds[1].Status)
	assert.Equal(t, "re_2", got.Refunds[1].ExternalRefundID)
}

func TestUniqueKeys(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	f := seedFamily(t, repos)
	memberID := int64(77)

	_, err := repos.Families.Create(ctx, &models.Family{OwnerID: 1, SourceMemberID: &memberID})
	require.NoError(t, err)
	_, err = repos.Families.Create(ctx, &models.Family{OwnerID: 1, SourceMemberID: &memberID})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = repos.Payments.Create(ctx, &models.Payment{FamilyID: f.ID, Amount: decimal.NewFromInt(1), BillingKey: "family:1:2024-01"})
	require.NoError(t, err)
	_, err = repos.Payments.Create(ctx, &models.Payment{FamilyID: f.ID, Amount: decimal.NewFromInt(1), BillingKey: "family:1:2024-01"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	cycle := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	_, err = repos.PlanCharges.Create(ctx, &models.PlanCharge{FamilyID: f.ID, CycleDate: cycle})
	require.NoError(t, err)
	_, err = repos.PlanCharges.Create(ctx, &models.PlanCharge{FamilyID: f.ID, CycleDate: cycle})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestStampCycleIsGuarded(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	f := seedFamily(t, repos)

	first := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repos.Families.StampCycle(ctx, f.ID, nil, first))
	assert.ErrorIs(t, repos.Families.StampCycle(ctx, f.ID, nil, first.AddDate(1, 0, 0)), repository.ErrConflict)
	require.NoError(t, repos.Families.StampCycle(ctx, f.ID, &first, first.AddDate(1, 0, 0)))

	got, err := repos.Families.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, got.LastCycleAppliedDate.Equal(first.AddDate(1, 0, 0)))
}

func TestConversionTransition(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	f := seedFamily(t, repos)
	m, err := repos.Members.Create(ctx, &models.Member{FamilyID: f.ID})
	require.NoError(t, err)

	require.NoError(t, repos.Members.TransitionConversion(ctx, m.ID, models.ConversionNone, models.ConversionConverting, nil))
	assert.ErrorIs(t, repos.Members.TransitionConversion(ctx, m.ID, models.ConversionNone, models.ConversionConverting, nil), repository.ErrConflict)

	newFamily := int64(99)
	require.NoError(t, repos.Members.TransitionConversion(ctx, m.ID, models.ConversionConverting, models.ConversionConverted, &newFamily))
	got, err := repos.Members.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsConverted())
	assert.Equal(t, newFamily, *got.ConvertedFamilyID)

	got.FirstName = "Yosef"
	got.ConversionState = models.ConversionNone
	got.ConvertedFamilyID = nil
	_, err = repos.Members.Update(ctx, got)
	require.NoError(t, err)
	got, err = repos.Members.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yosef", got.FirstName)
	assert.True(t, got.IsConverted())
	require.NotNil(t, got.ConvertedFamilyID)
	assert.Equal(t, newFamily, *got.ConvertedFamilyID)

	active, err := repos.Members.ListActiveByFamily(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = repos.Members.Update(ctx, &models.Member{ID: 12345})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateBarMitzvahIsNarrow(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	f := seedFamily(t, repos)
	m, err := repos.Members.Create(ctx, &models.Member{FamilyID: f.ID, FirstName: "Dovid"})
	require.NoError(t, err)

	m.FirstName = "David"
	_, err = repos.Members.Update(ctx, m)
	require.NoError(t, err)

	require.NoError(t, repos.Members.UpdateBarMitzvah(ctx, m.ID, "27 Nisan 5771", true))
	got, err := repos.Members.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "David", got.FirstName)
	assert.Equal(t, "27 Nisan 5771", got.HebrewBirthDate)
	assert.True(t, got.BarMitzvahEventAdded)

	require.NoError(t, repos.Members.UpdateBarMitzvah(ctx, m.ID, "", false))
	got, err = repos.Members.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "27 Nisan 5771", got.HebrewBirthDate)
	assert.True(t, got.BarMitzvahEventAdded)

	assert.ErrorIs(t, repos.Members.UpdateBarMitzvah(ctx, 12345, "", true), models.ErrNotFound)
}

func TestStatementSequence(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	f := seedFamily(t, repos)

	seq, err := repos.Statements.NextSequence(ctx, f.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = repos.Statements.Create(ctx, &models.Statement{FamilyID: f.ID, Sequence: 1, FromDate: from})
	require.NoError(t, err)
	_, err = repos.Statements.Create(ctx, &models.Statement{FamilyID: f.ID, Sequence: 1})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	_, err = repos.Statements.Create(ctx, &models.Statement{FamilyID: f.ID, Sequence: 2, FromDate: from})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	seq, err = repos.Statements.NextSequence(ctx, f.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, seq)

	ok, err := repos.Statements.ExistsFrom(ctx, f.ID, from)
	require.NoError(t, err)
	assert.True(t, ok)

	memberID := int64(3)
	seq, err = repos.Statements.NextSequence(ctx, f.ID, &memberID)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
}
