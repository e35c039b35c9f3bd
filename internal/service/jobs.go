package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/repository"
	"github.com/Kerhoff/kasa/pkg/logger"
)

const dateLayout = "2006-01-02"

// Job names, used in logs, metrics and summaries
const (
	JobCycleRollover     = "cycle_rollover"
	JobRecurringPayments = "recurring_payments"
	JobWeddingConversion = "wedding_conversion"
	JobBarMitzvahCheck   = "bar_mitzvah_check"
	JobMonthlyStatements = "monthly_statements"
)

// Summary is the aggregate outcome of one job run. Per-entity failures are
// collected here and never abort the run.
type Summary struct {
	Job      string
	RunID    string
	OwnerID  int64
	Disabled bool
	// Cancelled is set when the run stopped before dispatching every item.
	Cancelled bool

	succeeded atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64

	mu   sync.Mutex
	errs *multierror.Error
}

func newSummary(job string, ownerID int64) *Summary {
	return &Summary{Job: job, RunID: uuid.NewString(), OwnerID: ownerID}
}

// Succeeded returns the number of entities the job changed
func (s *Summary) Succeeded() int { return int(s.succeeded.Load()) }

// Skipped returns the number of entities that needed no change
func (s *Summary) Skipped() int { return int(s.skipped.Load()) }

// Failed returns the number of entities that failed
func (s *Summary) Failed() int { return int(s.failed.Load()) }

// Err returns the collected per-entity failures, or nil
func (s *Summary) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs.ErrorOrNil()
}

func (s *Summary) fail(err error) {
	s.failed.Inc()
	s.mu.Lock()
	s.errs = multierror.Append(s.errs, err)
	s.mu.Unlock()
}

// Report is a Summary in a form that can be encoded
type Report struct {
	Job       string   `json:"job"`
	RunID     string   `json:"run_id"`
	OwnerID   int64    `json:"owner_id"`
	Disabled  bool     `json:"disabled,omitempty"`
	Cancelled bool     `json:"cancelled,omitempty"`
	Succeeded int      `json:"succeeded"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Report snapshots the summary
func (s *Summary) Report() Report {
	r := Report{
		Job:       s.Job,
		RunID:     s.RunID,
		OwnerID:   s.OwnerID,
		Disabled:  s.Disabled,
		Cancelled: s.Cancelled,
		Succeeded: s.Succeeded(),
		Skipped:   s.Skipped(),
		Failed:    s.Failed(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs != nil {
		for _, err := range s.errs.Errors {
			r.Errors = append(r.Errors, err.Error())
		}
	}
	return r
}

// workItem is the work of one entity. Items of the same run never share a
// family or member.
type workItem struct {
	fields logrus.Fields
	run    func(ctx context.Context) error
}

// isSkip reports whether err means the effect was already applied
func isSkip(err error) bool {
	return errors.Is(err, models.ErrIdempotencyConflict) || errors.Is(err, repository.ErrDuplicate)
}

func (s *Service) disabled(job string, ownerID int64) *Summary {
	sum := newSummary(job, ownerID)
	sum.Disabled = true
	s.logger.WithFields(logrus.Fields{"job": job, "owner_id": ownerID}).Info("Job disabled, skipping")
	return sum
}

// runJob executes the items on the worker pool and reports the outcome.
// Once ctx is cancelled no further items start; items already running
// finish.
func (s *Service) runJob(ctx context.Context, job string, ownerID int64, items []workItem) *Summary {
	sum := newSummary(job, ownerID)
	log := logger.ForJob(s.logger, job, sum.RunID).WithField("owner_id", ownerID)
	started := time.Now()
	log.WithField("items", len(items)).Info("Job started")

	sum.Cancelled = !s.run(ctx, len(items), func(idx int) {
		item := items[idx]
		entry := log.WithFields(item.fields)

		err := item.run(context.WithoutCancel(ctx))
		switch {
		case err == nil:
			sum.succeeded.Inc()
		case isSkip(err):
			sum.skipped.Inc()
			entry.WithError(err).Info("Already applied, skipping")
		case models.IsGateway(err):
			sum.fail(fmt.Errorf("%v: %w", item.fields, err))
			entry.WithError(err).Warn("Gateway call failed, will retry next run")
		case models.IsValidation(err):
			sum.fail(fmt.Errorf("%v: %w", item.fields, err))
			entry.WithError(err).Warn("Item rejected")
		default:
			sum.fail(fmt.Errorf("%v: %w", item.fields, err))
			entry.WithError(err).Error("Item failed")
		}
	})

	s.metrics.ObserveJob(job, started, sum.Succeeded(), sum.Skipped(), sum.Failed())
	log.WithFields(logrus.Fields{
		"succeeded": sum.Succeeded(),
		"skipped":   sum.Skipped(),
		"failed":    sum.Failed(),
		"cancelled": sum.Cancelled,
	}).Info("Job finished")

	if sum.Failed() > 0 {
		s.notify(ctx, notify.EventJobFailed, notify.Payload{
			"job":      job,
			"run_id":   sum.RunID,
			"owner_id": ownerID,
			"failed":   sum.Failed(),
			"error":    sum.Err().Error(),
		})
	}
	return sum
}

// run feeds indexes 0..total-1 to the workers. It returns false if ctx was
// cancelled before every index ran. An index handed to a worker after the
// cancellation is dropped, so nothing starts once ctx is done.
func (s *Service) run(ctx context.Context, total int, workerFn func(idx int)) bool {
	if total == 0 {
		return true
	}
	indexCh := make(chan int)
	var wg sync.WaitGroup
	var dropped atomic.Bool

	workers := s.workers
	if workers > total {
		workers = total
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexCh {
				if ctx.Err() != nil {
					dropped.Store(true)
					continue
				}
				workerFn(idx)
			}
		}()
	}

	complete := true
Loop:
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			complete = false
			break
		}
		select {
		case indexCh <- i:
		case <-ctx.Done():
			complete = false
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	return complete && !dropped.Load()
}
