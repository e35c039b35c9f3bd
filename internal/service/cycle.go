package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/repository"
)

// CycleWork is the rollover still owed by one family: every anniversary
// after the last applied one, up to and including today, oldest first.
type CycleWork struct {
	FamilyID      int64
	PlanNumber    int
	Previous      *time.Time
	Anniversaries []time.Time
}

// Anniversary returns the cycle date of cfg in the given year. A day past
// the month end falls on the month's last day.
func Anniversary(cfg *models.CycleConfig, year int) time.Time {
	return clock.ClampedDate(year, time.Month(cfg.CycleStartMonth), cfg.CycleStartDay)
}

// LatestAnniversary returns the most recent anniversary on or before day
func LatestAnniversary(cfg *models.CycleConfig, day time.Time) time.Time {
	a := Anniversary(cfg, day.Year())
	if a.After(day) {
		a = Anniversary(cfg, day.Year()-1)
	}
	return a
}

// PlanCycleWork decides which families roll over on today. It reads nothing
// but its arguments. A family is due for each anniversary strictly after
// its last applied cycle date (or its plan assignment date if it never
// rolled over) and on or before today. A family with neither date only
// owes the latest anniversary.
func PlanCycleWork(cfg *models.CycleConfig, families []*models.Family, today time.Time) []CycleWork {
	if cfg == nil || !cfg.IsActive || cfg.Validate() != nil {
		return nil
	}
	today = clock.Day(today)
	latest := LatestAnniversary(cfg, today)

	var work []CycleWork
	for _, f := range families {
		if f.Archived || !f.HasPlan() {
			continue
		}

		bound := f.LastCycleAppliedDate
		if bound == nil {
			bound = f.PlanAssignedAt
		}

		var due []time.Time
		if bound == nil {
			due = []time.Time{latest}
		} else {
			after := clock.Day(*bound)
			for year := after.Year(); year <= today.Year(); year++ {
				a := Anniversary(cfg, year)
				if a.After(after) && !a.After(today) {
					due = append(due, a)
				}
			}
		}
		if len(due) == 0 {
			continue
		}

		work = append(work, CycleWork{
			FamilyID:      f.ID,
			PlanNumber:    f.PlanNumber,
			Previous:      f.LastCycleAppliedDate,
			Anniversaries: due,
		})
	}
	return work
}

// RunCycleRollover charges one year of plan cost to every family of the
// owner whose anniversary has arrived. The stamped last-applied date is
// the idempotency key: re-running for the same day changes nothing.
func (s *Service) RunCycleRollover(ctx context.Context, ownerID int64, force bool) (*Summary, error) {
	settings, err := s.AutomationSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !force && !settings.EnableCycleRollover {
		return s.disabled(JobCycleRollover, ownerID), nil
	}

	cfg, err := s.Settings.GetCycleConfig(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle config for owner %d: %w", ownerID, err)
	}
	if cfg == nil || !cfg.IsActive {
		s.logger.WithField("owner_id", ownerID).Info("No active cycle configuration, skipping rollover")
		return newSummary(JobCycleRollover, ownerID), nil
	}

	families, err := s.Families.ListByOwner(ctx, ownerID, repository.FamilyFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list families of owner %d: %w", ownerID, err)
	}
	catalog, err := s.Catalog(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	work := PlanCycleWork(cfg, families, clock.Today(s.clock))
	items := make([]workItem, 0, len(work))
	for _, w := range work {
		items = append(items, workItem{
			fields: logrus.Fields{"family_id": w.FamilyID},
			run: func(ctx context.Context) error {
				return s.applyCycle(ctx, w, catalog.YearlyPrice(w.PlanNumber))
			},
		})
	}
	return s.runJob(ctx, JobCycleRollover, ownerID, items), nil
}

// applyCycle records each owed anniversary in its own transaction, so a
// crash part way keeps what was already applied.
func (s *Service) applyCycle(ctx context.Context, w CycleWork, yearly decimal.Decimal) error {
	if !yearly.IsPositive() {
		return &models.ValidationError{Field: "plan_number", Message: fmt.Sprintf("plan %d has no price", w.PlanNumber)}
	}

	prev := w.Previous
	applied := 0
	for _, anniversary := range w.Anniversaries {
		err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := s.PlanCharges.Create(ctx, &models.PlanCharge{
				FamilyID:   w.FamilyID,
				CycleDate:  anniversary,
				PlanNumber: w.PlanNumber,
				Amount:     yearly,
				Kind:       models.PlanChargeCycle,
			}); err != nil {
				return err
			}
			return s.Families.StampCycle(ctx, w.FamilyID, prev, anniversary)
		})
		if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrConflict) {
			// A concurrent run got here first.
			return fmt.Errorf("cycle %s of family %d: %w", anniversary.Format(dateLayout), w.FamilyID, models.ErrIdempotencyConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to apply cycle %s to family %d: %w", anniversary.Format(dateLayout), w.FamilyID, err)
		}

		stamped := anniversary
		prev = &stamped
		applied++
		s.notify(ctx, notify.EventCycleApplied, notify.Payload{
			"family_id":   w.FamilyID,
			"cycle_date":  anniversary.Format(dateLayout),
			"plan_number": w.PlanNumber,
			"amount":      yearly.StringFixed(2),
		})
	}

	s.logger.WithFields(logrus.Fields{
		"family_id": w.FamilyID,
		"applied":   applied,
		"last":      prev.Format(dateLayout),
	}).Info("Cycle rollover applied")
	return nil
}
