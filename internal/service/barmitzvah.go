package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/hebrew"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/plans"
	"github.com/Kerhoff/kasa/internal/repository"
)

// defaultBarMitzvahAmount is used when no bar_mitzvah event type is configured
var defaultBarMitzvahAmount = decimal.NewFromInt(1800)

// BarMitzvahWork is one member the check has to touch
type BarMitzvahWork struct {
	Member *models.Member
	// Backfill is the Hebrew birth date to cache, when none is cached yet.
	Backfill string
	// Due is set when the member turned 13 and has no event yet.
	Due  bool
	Date time.Time
}

// PlanBarMitzvahWork picks the members whose cached Hebrew birth date is
// missing or who reached Hebrew age 13 without a recorded event.
func PlanBarMitzvahWork(members []*models.Member, today time.Time) []BarMitzvahWork {
	today = clock.Day(today)
	var work []BarMitzvahWork
	for _, m := range members {
		if !m.IsActive() {
			continue
		}
		birth, ok := plans.HebrewBirthDate(m)
		if !ok {
			continue
		}

		w := BarMitzvahWork{Member: m}
		if m.HebrewBirthDate == "" {
			w.Backfill = birth.String()
		}
		if !m.BarMitzvahEventAdded {
			if age, ok := hebrew.Age(birth, today); ok && age >= hebrew.BarMitzvahAge {
				if date, ok := hebrew.BarMitzvahDate(birth); ok {
					w.Due = true
					w.Date = date
				}
			}
		}
		if w.Backfill != "" || w.Due {
			work = append(work, w)
		}
	}
	return work
}

// RunBarMitzvahCheck records a bar or bat mitzvah event for every member of
// the owner that turned 13 in the Hebrew calendar.
func (s *Service) RunBarMitzvahCheck(ctx context.Context, ownerID int64, force bool) (*Summary, error) {
	settings, err := s.AutomationSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !force && !settings.EnableBarMitzvahCheck {
		return s.disabled(JobBarMitzvahCheck, ownerID), nil
	}

	members, err := s.Members.ListWithBirthDate(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of owner %d: %w", ownerID, err)
	}

	work := PlanBarMitzvahWork(members, clock.Today(s.clock))
	items := make([]workItem, 0, len(work))
	for _, w := range work {
		items = append(items, workItem{
			fields: logrus.Fields{"member_id": w.Member.ID, "family_id": w.Member.FamilyID},
			run: func(ctx context.Context) error {
				return s.applyBarMitzvah(ctx, w)
			},
		})
	}
	return s.runJob(ctx, JobBarMitzvahCheck, ownerID, items), nil
}

func (s *Service) applyBarMitzvah(ctx context.Context, w BarMitzvahWork) error {
	m := *w.Member
	if w.Backfill != "" {
		m.HebrewBirthDate = w.Backfill
	}

	var created bool
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if w.Due {
			ok, err := s.addBarMitzvahEvent(ctx, &m, w.Date)
			if err != nil {
				return err
			}
			created = ok
			m.BarMitzvahEventAdded = true
		}
		return s.Members.UpdateBarMitzvah(ctx, m.ID, w.Backfill, w.Due)
	})
	if err != nil {
		return fmt.Errorf("failed to apply bar mitzvah check to member %d: %w", m.ID, err)
	}

	if !w.Due {
		return nil
	}
	if !created {
		return fmt.Errorf("bar mitzvah of member %d: %w", m.ID, models.ErrIdempotencyConflict)
	}
	s.notify(ctx, notify.EventBarMitzvahReached, notify.Payload{
		"member_id": m.ID,
		"family_id": m.FamilyID,
		"name":      m.FullName(),
		"date":      w.Date.Format(dateLayout),
	})
	return nil
}

// addBarMitzvahEvent reports false when the member already had the event
func (s *Service) addBarMitzvahEvent(ctx context.Context, m *models.Member, date time.Time) (bool, error) {
	amount := defaultBarMitzvahAmount
	if cfg, ok := s.EventType(models.EventBarMitzvah); ok && cfg.Amount.IsPositive() {
		amount = cfg.Amount
	}
	kind := "Bar"
	if m.Gender == models.GenderFemale {
		kind = "Bat"
	}

	memberID := m.ID
	_, err := s.Events.Create(ctx, &models.LifecycleEvent{
		FamilyID: m.FamilyID,
		MemberID: &memberID,
		Type:     models.EventBarMitzvah,
		Amount:   amount,
		Date:     date,
		Year:     date.Year(),
		Notes:    fmt.Sprintf("Auto-added: %s Mitzvah for %s (turned 13 in Hebrew calendar)", kind, m.FullName()),
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create bar mitzvah event for member %d: %w", m.ID, err)
	}
	return true, nil
}
