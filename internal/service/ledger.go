package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/ledger"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/plans"
)

// CurrentAsOf is the as-of date of a "current" balance: tomorrow, so that
// everything dated today is counted.
func (s *Service) CurrentAsOf() time.Time {
	return clock.Today(s.clock).AddDate(0, 0, 1)
}

func (s *Service) asOf(t time.Time) time.Time {
	if t.IsZero() {
		return s.CurrentAsOf()
	}
	return clock.Day(t)
}

// LoadSnapshot reads everything the ledger needs for one family.
func (s *Service) LoadSnapshot(ctx context.Context, familyID int64) (ledger.Snapshot, error) {
	family, err := s.family(ctx, familyID)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	payments, err := s.Payments.ListByFamily(ctx, familyID)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to list payments of family %d: %w", familyID, err)
	}
	withdrawals, err := s.Withdrawals.ListByFamily(ctx, familyID)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to list withdrawals of family %d: %w", familyID, err)
	}
	events, err := s.Events.ListByFamily(ctx, familyID)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to list lifecycle events of family %d: %w", familyID, err)
	}
	charges, err := s.PlanCharges.ListByFamily(ctx, familyID)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to list plan charges of family %d: %w", familyID, err)
	}
	catalog, err := s.Catalog(ctx, family.OwnerID)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	return ledger.Snapshot{
		Family:      family,
		Payments:    payments,
		Withdrawals: withdrawals,
		Events:      events,
		PlanCharges: charges,
		Prices:      catalog,
	}, nil
}

// FamilyBalance computes the family balance as of asOf. A zero asOf means
// the current balance.
func (s *Service) FamilyBalance(ctx context.Context, familyID int64, asOf time.Time) (ledger.Balance, error) {
	snap, err := s.LoadSnapshot(ctx, familyID)
	if err != nil {
		return ledger.Balance{}, err
	}
	return ledger.ComputeFamilyBalance(snap, s.asOf(asOf)), nil
}

// MemberBalance computes the balance of one member as of asOf.
func (s *Service) MemberBalance(ctx context.Context, memberID int64, asOf time.Time) (ledger.Balance, error) {
	member, err := s.member(ctx, memberID)
	if err != nil {
		return ledger.Balance{}, err
	}
	snap, err := s.LoadSnapshot(ctx, member.FamilyID)
	if err != nil {
		return ledger.Balance{}, err
	}
	return ledger.ComputeMemberBalance(snap, member, s.asOf(asOf)), nil
}

// RosterBalance is the balance of one member of a family roster
type RosterBalance struct {
	Member  *models.Member
	Balance ledger.Balance
}

// FamilyRoster returns the balance of every member still on the family's
// roster as of asOf. Members converted into a family of their own are left
// out.
func (s *Service) FamilyRoster(ctx context.Context, familyID int64, asOf time.Time) ([]RosterBalance, error) {
	snap, err := s.LoadSnapshot(ctx, familyID)
	if err != nil {
		return nil, err
	}
	members, err := s.Members.ListActiveByFamily(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of family %d: %w", familyID, err)
	}
	at := s.asOf(asOf)
	roster := make([]RosterBalance, 0, len(members))
	for _, m := range members {
		roster = append(roster, RosterBalance{Member: m, Balance: ledger.ComputeMemberBalance(snap, m, at)})
	}
	return roster, nil
}

// ResolveMemberPlan returns the plan that applies to the member on asOf
// (today when zero) and its annotations.
func (s *Service) ResolveMemberPlan(ctx context.Context, memberID int64, asOf time.Time) (plans.Resolution, error) {
	member, err := s.member(ctx, memberID)
	if err != nil {
		return plans.Resolution{}, err
	}
	if asOf.IsZero() {
		asOf = clock.Today(s.clock)
	}
	return plans.ResolvePlan(member, clock.Day(asOf)), nil
}

// AssignFamilyPlan puts the family on a plan from the given date.
func (s *Service) AssignFamilyPlan(ctx context.Context, familyID int64, planNumber int, from time.Time) (*models.Family, error) {
	family, err := s.family(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPlan(ctx, family.OwnerID, planNumber); err != nil {
		return nil, err
	}

	day := clock.Day(from)
	family.PlanNumber = planNumber
	family.PlanAssignedAt = &day
	updated, err := s.Families.Update(ctx, family)
	if err != nil {
		return nil, fmt.Errorf("failed to assign plan %d to family %d: %w", planNumber, familyID, err)
	}
	return updated, nil
}

// AssignMemberPlan explicitly assigns a plan to a member. Unassigned members
// never carry plan cost.
func (s *Service) AssignMemberPlan(ctx context.Context, memberID int64, planNumber int, from time.Time) (*models.Member, error) {
	member, err := s.member(ctx, memberID)
	if err != nil {
		return nil, err
	}
	family, err := s.family(ctx, member.FamilyID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPlan(ctx, family.OwnerID, planNumber); err != nil {
		return nil, err
	}

	day := clock.Day(from)
	member.PaymentPlanAssigned = true
	member.PlanNumber = planNumber
	member.PlanAssignedAt = &day
	updated, err := s.Members.Update(ctx, member)
	if err != nil {
		return nil, fmt.Errorf("failed to assign plan %d to member %d: %w", planNumber, memberID, err)
	}
	return updated, nil
}

func (s *Service) checkPlan(ctx context.Context, ownerID int64, planNumber int) error {
	catalog, err := s.Catalog(ctx, ownerID)
	if err != nil {
		return err
	}
	if planNumber <= plans.Unassigned || !catalog.YearlyPrice(planNumber).IsPositive() {
		return &models.ValidationError{Field: "plan_number", Message: fmt.Sprintf("%d is not a known plan", planNumber)}
	}
	return nil
}
