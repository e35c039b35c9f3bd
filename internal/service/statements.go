package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/repository"
	"github.com/Kerhoff/kasa/internal/statement"
)

// maxSequenceAttempts bounds the retries when a concurrent issue took the
// next statement sequence number.
const maxSequenceAttempts = 3

// PreviewStatement builds the family statement for [from, to) without
// storing it.
func (s *Service) PreviewStatement(ctx context.Context, familyID int64, from, to time.Time) (*models.Statement, error) {
	snap, err := s.LoadSnapshot(ctx, familyID)
	if err != nil {
		return nil, err
	}
	return statement.Generate(snap, clock.Day(from), clock.Day(to))
}

// IssueStatement builds, numbers and stores the family statement for
// [from, to). Periods never overlap: issuing the latest period again is an
// ErrIdempotencyConflict and a period starting before the latest one ended
// is a ValidationError. A statement that would break the chain with the
// previous one is rejected with a ReconciliationError. In each case nothing
// is stored.
func (s *Service) IssueStatement(ctx context.Context, familyID int64, from, to time.Time) (*models.Statement, error) {
	return s.issue(ctx, familyID, nil, clock.Day(from), clock.Day(to))
}

// IssueMemberStatement is IssueStatement for a single member's ledger.
func (s *Service) IssueMemberStatement(ctx context.Context, memberID int64, from, to time.Time) (*models.Statement, error) {
	member, err := s.member(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, member.FamilyID, &member.ID, clock.Day(from), clock.Day(to))
}

func (s *Service) issue(ctx context.Context, familyID int64, memberID *int64, from, to time.Time) (*models.Statement, error) {
	var issued *models.Statement
	var err error
	for attempt := 0; attempt < maxSequenceAttempts; attempt++ {
		err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
			st, err := s.buildStatement(ctx, familyID, memberID, from, to)
			if err != nil {
				return err
			}

			prev, err := s.Statements.Latest(ctx, familyID, memberID)
			if err != nil {
				return fmt.Errorf("failed to get latest statement of family %d: %w", familyID, err)
			}
			if err := statement.CheckChain(prev, st); err != nil {
				return err
			}

			seq, err := s.Statements.NextSequence(ctx, familyID, memberID)
			if err != nil {
				return fmt.Errorf("failed to get next statement sequence of family %d: %w", familyID, err)
			}
			st.Sequence = seq
			if memberID != nil {
				st.Number = statement.MemberNumber(*memberID, seq)
			} else {
				st.Number = statement.Number(familyID, seq)
			}

			issued, err = s.Statements.Create(ctx, st)
			return err
		})
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to number statement of family %d: %w", familyID, err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"family_id": familyID,
		"statement": issued.Number,
		"from":      from.Format(dateLayout),
		"to":        to.Format(dateLayout),
	}).Info("Statement issued")
	return issued, nil
}

func (s *Service) buildStatement(ctx context.Context, familyID int64, memberID *int64, from, to time.Time) (*models.Statement, error) {
	snap, err := s.LoadSnapshot(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if memberID == nil {
		return statement.Generate(snap, from, to)
	}
	member, err := s.member(ctx, *memberID)
	if err != nil {
		return nil, err
	}
	return statement.GenerateForMember(snap, member, from, to)
}

// ListStatements returns the issued statements of a family
func (s *Service) ListStatements(ctx context.Context, familyID int64) ([]*models.Statement, error) {
	if _, err := s.family(ctx, familyID); err != nil {
		return nil, err
	}
	list, err := s.Statements.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements of family %d: %w", familyID, err)
	}
	return list, nil
}

// GenerateMonthlyStatements issues one statement per active family of the
// owner for the given calendar month. Families that already have a
// statement starting on the first of that month are skipped.
func (s *Service) GenerateMonthlyStatements(ctx context.Context, ownerID int64, year int, month time.Month, force bool) (*Summary, error) {
	settings, err := s.AutomationSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !force && !settings.EnableStatementGeneration {
		return s.disabled(JobMonthlyStatements, ownerID), nil
	}

	families, err := s.Families.ListByOwner(ctx, ownerID, repository.FamilyFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list families of owner %d: %w", ownerID, err)
	}

	from := clock.Date(year, month, 1)
	to := from.AddDate(0, 1, 0)

	items := make([]workItem, 0, len(families))
	for _, family := range families {
		items = append(items, workItem{
			fields: logrus.Fields{"family_id": family.ID},
			run: func(ctx context.Context) error {
				exists, err := s.Statements.ExistsFrom(ctx, family.ID, from)
				if err != nil {
					return fmt.Errorf("failed to check statements of family %d: %w", family.ID, err)
				}
				if exists {
					return fmt.Errorf("statement from %s: %w", from.Format(dateLayout), models.ErrIdempotencyConflict)
				}
				st, err := s.IssueStatement(ctx, family.ID, from, to)
				if err != nil {
					return err
				}
				if settings.EnableStatementEmails {
					s.notify(ctx, notify.EventStatementIssued, notify.Payload{
						"family_id":        family.ID,
						"statement_number": st.Number,
						"closing_balance":  st.ClosingBalance.StringFixed(2),
						"email":            family.Email,
					})
				}
				return nil
			},
		})
	}
	return s.runJob(ctx, JobMonthlyStatements, ownerID, items), nil
}
