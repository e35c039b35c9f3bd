package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/models"
)

// Manual run targets accepted by RunNamed
const (
	RunDailyJobs   = "daily"
	RunMonthlyJobs = "monthly"
	RunCycle       = "cycle"
	RunRecurring   = "recurring"
	RunWedding     = "wedding"
	RunBarMitzvah  = "bar-mitzvah"
)

// DefaultTickEvery is the scheduler interval when none is configured
const DefaultTickEvery = time.Hour

type ownerJob func(ctx context.Context, ownerID int64, force bool) (*Summary, error)

// dailyJobs run in order for each owner
func (s *Service) dailyJobs() []ownerJob {
	return []ownerJob{
		s.RunCycleRollover,
		s.RunWeddingConversion,
		s.RunRecurringPayments,
		s.RunBarMitzvahCheck,
	}
}

// RunDaily runs the daily jobs for every active owner. Disabled jobs are
// skipped unless force is set. It stops between owners when ctx is done.
func (s *Service) RunDaily(ctx context.Context, force bool) ([]*Summary, error) {
	return s.forOwners(ctx, func(ctx context.Context, ownerID int64) ([]*Summary, error) {
		var summaries []*Summary
		var result *multierror.Error
		for _, job := range s.dailyJobs() {
			if ctx.Err() != nil {
				break
			}
			sum, err := job(ctx, ownerID, force)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			summaries = append(summaries, sum)
		}
		return summaries, result.ErrorOrNil()
	})
}

// RunMonthly issues the statements for the calendar month before today.
func (s *Service) RunMonthly(ctx context.Context, force bool) ([]*Summary, error) {
	prev := clock.FirstOfMonth(clock.Today(s.clock)).AddDate(0, -1, 0)
	return s.forOwners(ctx, func(ctx context.Context, ownerID int64) ([]*Summary, error) {
		sum, err := s.GenerateMonthlyStatements(ctx, ownerID, prev.Year(), prev.Month(), force)
		if err != nil {
			return nil, err
		}
		return []*Summary{sum}, nil
	})
}

// RunNamed runs one job, or the daily or monthly set, for every owner.
// Manual runs are forced and ignore the automation toggles.
func (s *Service) RunNamed(ctx context.Context, name string) ([]*Summary, error) {
	var job ownerJob
	switch strings.ToLower(strings.TrimSpace(name)) {
	case RunDailyJobs:
		return s.RunDaily(ctx, true)
	case RunMonthlyJobs:
		return s.RunMonthly(ctx, true)
	case RunCycle:
		job = s.RunCycleRollover
	case RunRecurring:
		job = s.RunRecurringPayments
	case RunWedding:
		job = s.RunWeddingConversion
	case RunBarMitzvah:
		job = s.RunBarMitzvahCheck
	default:
		return nil, &models.ValidationError{Field: "job", Message: fmt.Sprintf("unknown job %q", name)}
	}
	return s.forOwners(ctx, func(ctx context.Context, ownerID int64) ([]*Summary, error) {
		sum, err := job(ctx, ownerID, true)
		if err != nil {
			return nil, err
		}
		return []*Summary{sum}, nil
	})
}

func (s *Service) forOwners(ctx context.Context, fn func(ctx context.Context, ownerID int64) ([]*Summary, error)) ([]*Summary, error) {
	owners, err := s.Users.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}

	var summaries []*Summary
	var result *multierror.Error
	for _, owner := range owners {
		if ctx.Err() != nil {
			break
		}
		sums, err := fn(ctx, owner.ID)
		summaries = append(summaries, sums...)
		if err != nil {
			s.logger.WithError(err).WithField("owner_id", owner.ID).Error("Automation run failed for owner")
			result = multierror.Append(result, fmt.Errorf("owner %d: %w", owner.ID, err))
		}
	}
	return summaries, result.ErrorOrNil()
}

// schedulerState remembers which calendar days were already run
type schedulerState struct {
	lastDaily   time.Time
	lastMonthly time.Time
}

// StartAutomationScheduler runs a background loop that checks every
// interval whether today's jobs have run. The daily jobs run once per
// calendar day and the statement job on the first of the month. It blocks
// until the context is cancelled, so it should be launched in a separate
// goroutine.
func (s *Service) StartAutomationScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickEvery
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.WithField("interval", interval.String()).Info("Automation scheduler started")

	var st schedulerState
	s.tick(ctx, &st)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Automation scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx, &st)
		}
	}
}

// tick runs whatever is due today and has not run yet.
func (s *Service) tick(ctx context.Context, st *schedulerState) {
	today := clock.Today(s.clock)

	if !st.lastDaily.Equal(today) {
		if _, err := s.RunDaily(ctx, false); err != nil {
			s.logger.WithError(err).Error("Daily automation finished with errors")
		}
		if ctx.Err() == nil {
			st.lastDaily = today
		}
	}

	if today.Day() == 1 && !st.lastMonthly.Equal(today) {
		if _, err := s.RunMonthly(ctx, false); err != nil {
			s.logger.WithError(err).Error("Monthly automation finished with errors")
		}
		if ctx.Err() == nil {
			st.lastMonthly = today
		}
	}
}
