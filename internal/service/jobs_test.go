package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
)

func TestRunJobCountsOutcomes(t *testing.T) {
	env := newTestEnv(t, day(2024, time.March, 1))
	results := []error{
		nil,
		nil,
		fmt.Errorf("billing key x: %w", models.ErrIdempotencyConflict),
		&models.GatewayError{Op: "charge", Err: errors.New("card declined")},
		&models.ValidationError{Field: "amount", Message: "is required"},
		errors.New("disk full"),
	}
	items := make([]workItem, 0, len(results))
	for i, err := range results {
		items = append(items, workItem{
			fields: logrus.Fields{"item": i},
			run:    func(context.Context) error { return err },
		})
	}

	sum := env.svc.runJob(context.Background(), "test_job", env.owner.ID, items)
	assert.False(t, sum.Cancelled)
	assert.Equal(t, 2, sum.Succeeded())
	assert.Equal(t, 1, sum.Skipped())
	assert.Equal(t, 3, sum.Failed())
	assert.True(t, models.IsGateway(sum.Err()))
	assert.True(t, models.IsValidation(sum.Err()))

	report := sum.Report()
	assert.Len(t, report.Errors, 3)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, env.sent.Count(notify.EventJobFailed))
}

func TestRunJobStopsStartingItemsOnCancel(t *testing.T) {
	env := newTestEnv(t, day(2024, time.March, 1))
	env.svc.workers = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var ran []int
	var inFlightErr error

	items := make([]workItem, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, workItem{
			fields: logrus.Fields{"item": i},
			run: func(ctx context.Context) error {
				if i == 0 {
					close(started)
					<-release
					inFlightErr = ctx.Err()
				}
				mu.Lock()
				ran = append(ran, i)
				mu.Unlock()
				return nil
			},
		})
	}

	done := make(chan *Summary, 1)
	go func() { done <- env.svc.runJob(ctx, "test_job", env.owner.ID, items) }()

	<-started
	cancel()
	close(release)
	sum := <-done

	assert.True(t, sum.Cancelled)
	assert.Equal(t, 1, sum.Succeeded())
	assert.Zero(t, sum.Failed())
	assert.Equal(t, []int{0}, ran)
	assert.NoError(t, inFlightErr, "the running item keeps an uncancelled context")
	assert.True(t, sum.Report().Cancelled)
}

func TestRunJobOnCancelledContextStartsNothing(t *testing.T) {
	env := newTestEnv(t, day(2024, time.March, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	item := workItem{run: func(context.Context) error { calls++; return nil }}
	sum := env.svc.runJob(ctx, "test_job", env.owner.ID, []workItem{item, item})
	assert.True(t, sum.Cancelled)
	assert.Zero(t, calls)
	assert.Zero(t, sum.Succeeded())
}
