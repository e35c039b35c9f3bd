package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

type planRepository struct{ s *Store }

func (r *planRepository) Create(ctx context.Context, plan *models.PaymentPlan) (*models.PaymentPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.data.plans {
		if p.OwnerID == plan.OwnerID && p.Number == plan.Number {
			return nil, repository.ErrDuplicate
		}
	}
	out := *plan
	out.ID = r.s.id()
	out.CreatedAt = r.s.stamp()
	out.UpdatedAt = out.CreatedAt
	put(ctx, r.s.data.plans, out.ID, out)
	return &out, nil
}

func (r *planRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.PaymentPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.PaymentPlan
	for _, p := range r.s.data.plans {
		if p.OwnerID == ownerID {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

type paymentRepository struct{ s *Store }

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.families[payment.FamilyID]; !ok {
		return nil, notFound("family", payment.FamilyID)
	}
	if payment.BillingKey != "" {
		for _, p := range r.s.data.payments {
			if p.BillingKey == payment.BillingKey {
				return nil, repository.ErrDuplicate
			}
		}
	}
	out := *payment
	out.ID = r.s.id()
	out.Refunds = nil
	out.CreatedAt = r.s.stamp()
	out.UpdatedAt = out.CreatedAt
	put(ctx, r.s.data.payments, out.ID, out)
	return r.withRefunds(out), nil
}

// withRefunds must be called with mu held.
func (r *paymentRepository) withRefunds(p models.Payment) *models.Payment {
	p.Refunds = nil
	for _, e := range r.s.data.refunds {
		if e.PaymentID == p.ID {
			p.Refunds = append(p.Refunds, e)
		}
	}
	sort.Slice(p.Refunds, func(i, j int) bool { return p.Refunds[i].ID < p.Refunds[j].ID })
	return &p
}

func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.data.payments[id]
	if !ok {
		return nil, nil
	}
	return r.withRefunds(p), nil
}

func (r *paymentRepository) GetByBillingKey(ctx context.Context, billingKey string) (*models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.data.payments {
		if billingKey != "" && p.BillingKey == billingKey {
			return r.withRefunds(p), nil
		}
	}
	return nil, nil
}

func (r *paymentRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Payment
	for _, p := range r.s.data.payments {
		if p.FamilyID == familyID {
			out = append(out, r.withRefunds(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *paymentRepository) ReserveRefund(ctx context.Context, paymentID int64, entry *models.RefundEntry) (*models.RefundEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.data.payments[paymentID]
	if !ok {
		return nil, notFound("payment", paymentID)
	}
	if !repository.RefundWithinBound(p.Amount, p.RefundedAmount, entry.Amount) {
		return nil, repository.ErrConflict
	}
	p.RefundedAmount = p.RefundedAmount.Add(entry.Amount)
	p.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.payments, paymentID, p)

	out := *entry
	out.ID = r.s.id()
	out.PaymentID = paymentID
	out.Status = models.RefundPending
	out.CreatedAt = p.UpdatedAt
	put(ctx, r.s.data.refunds, out.ID, out)
	return &out, nil
}

func (r *paymentRepository) CompleteRefund(ctx context.Context, refundID int64, externalRefundID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.data.refunds[refundID]
	if !ok {
		return notFound("refund", refundID)
	}
	if e.Status != models.RefundPending {
		return repository.ErrConflict
	}
	e.Status = models.RefundSucceeded
	e.ExternalRefundID = externalRefundID
	put(ctx, r.s.data.refunds, refundID, e)
	return nil
}

func (r *paymentRepository) FailRefund(ctx context.Context, refundID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.data.refunds[refundID]
	if !ok {
		return notFound("refund", refundID)
	}
	if e.Status != models.RefundPending {
		return repository.ErrConflict
	}
	e.Status = models.RefundFailed
	put(ctx, r.s.data.refunds, refundID, e)

	p := r.s.data.payments[e.PaymentID]
	p.RefundedAmount = p.RefundedAmount.Sub(e.Amount)
	p.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.payments, p.ID, p)
	return nil
}

type withdrawalRepository struct{ s *Store }

func (r *withdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) (*models.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.families[w.FamilyID]; !ok {
		return nil, notFound("family", w.FamilyID)
	}
	out := *w
	out.ID = r.s.id()
	out.CreatedAt = r.s.stamp()
	out.UpdatedAt = out.CreatedAt
	put(ctx, r.s.data.withdrawals, out.ID, out)
	return &out, nil
}

func (r *withdrawalRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.Withdrawal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Withdrawal
	for _, w := range r.s.data.withdrawals {
		if w.FamilyID == familyID {
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type eventRepository struct{ s *Store }

func (r *eventRepository) Create(ctx context.Context, e *models.LifecycleEvent) (*models.LifecycleEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.families[e.FamilyID]; !ok {
		return nil, notFound("family", e.FamilyID)
	}
	if e.MemberID != nil {
		for _, existing := range r.s.data.events {
			if existing.Type == e.Type && sameID(existing.MemberID, e.MemberID) {
				return nil, repository.ErrDuplicate
			}
		}
	}
	out := *e
	out.ID = r.s.id()
	out.CreatedAt = r.s.stamp()
	put(ctx, r.s.data.events, out.ID, out)
	return &out, nil
}

func (r *eventRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.LifecycleEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.LifecycleEvent
	for _, e := range r.s.data.events {
		if e.FamilyID == familyID {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type planChargeRepository struct{ s *Store }

func (r *planChargeRepository) Create(ctx context.Context, c *models.PlanCharge) (*models.PlanCharge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.data.charges {
		if existing.FamilyID == c.FamilyID && existing.CycleDate.Equal(c.CycleDate) {
			return nil, repository.ErrDuplicate
		}
	}
	out := *c
	out.ID = r.s.id()
	out.CreatedAt = r.s.stamp()
	put(ctx, r.s.data.charges, out.ID, out)
	return &out, nil
}

func (r *planChargeRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.PlanCharge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.PlanCharge
	for _, c := range r.s.data.charges {
		if c.FamilyID == familyID {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CycleDate.Before(out[j].CycleDate) })
	return out, nil
}

type statementRepository struct{ s *Store }

func (r *statementRepository) Create(ctx context.Context, st *models.Statement) (*models.Statement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.data.statements {
		if existing.FamilyID == st.FamilyID && sameID(existing.MemberID, st.MemberID) &&
			(existing.Sequence == st.Sequence || existing.FromDate.Equal(st.FromDate)) {
			return nil, repository.ErrDuplicate
		}
	}
	out := *st
	out.ID = r.s.id()
	out.LineItems = append([]models.LineItem(nil), st.LineItems...)
	out.CreatedAt = r.s.stamp()
	put(ctx, r.s.data.statements, out.ID, out)
	return &out, nil
}

func (r *statementRepository) GetByID(ctx context.Context, id int64) (*models.Statement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.data.statements[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *statementRepository) scoped(familyID int64, memberID *int64) []*models.Statement {
	var out []*models.Statement
	for _, st := range r.s.data.statements {
		if st.FamilyID == familyID && sameID(st.MemberID, memberID) {
			out = append(out, &st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (r *statementRepository) Latest(ctx context.Context, familyID int64, memberID *int64) (*models.Statement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.scoped(familyID, memberID)
	if len(all) == 0 {
		return nil, nil
	}
	return all[len(all)-1], nil
}

func (r *statementRepository) NextSequence(ctx context.Context, familyID int64, memberID *int64) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.scoped(familyID, memberID)
	if len(all) == 0 {
		return 1, nil
	}
	return all[len(all)-1].Sequence + 1, nil
}

func (r *statementRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.Statement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Statement
	for _, st := range r.s.data.statements {
		if st.FamilyID == familyID {
			out = append(out, &st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *statementRepository) ExistsFrom(ctx context.Context, familyID int64, from time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, st := range r.scoped(familyID, nil) {
		if st.FromDate.Equal(from) {
			return true, nil
		}
	}
	return false, nil
}

type enrollmentRepository struct{ s *Store }

func (r *enrollmentRepository) Create(ctx context.Context, e *models.RecurringEnrollment) (*models.RecurringEnrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.families[e.FamilyID]; !ok {
		return nil, notFound("family", e.FamilyID)
	}
	out := *e
	out.ID = r.s.id()
	out.CreatedAt = r.s.stamp()
	out.UpdatedAt = out.CreatedAt
	put(ctx, r.s.data.enrollments, out.ID, out)
	return &out, nil
}

func (r *enrollmentRepository) ListActiveByOwner(ctx context.Context, ownerID int64) ([]*models.RecurringEnrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.RecurringEnrollment
	for _, e := range r.s.data.enrollments {
		f, ok := r.s.data.families[e.FamilyID]
		if !ok || f.OwnerID != ownerID || f.Archived || !e.Active {
			continue
		}
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *enrollmentRepository) MarkCharged(ctx context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.data.enrollments[id]
	if !ok {
		return notFound("enrollment", id)
	}
	e.LastChargedAt = &at
	e.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.enrollments, id, e)
	return nil
}

type settingsRepository struct{ s *Store }

func (r *settingsRepository) GetCycleConfig(ctx context.Context, ownerID int64) (*models.CycleConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.data.cycles[ownerID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *settingsRepository) SaveCycleConfig(ctx context.Context, c *models.CycleConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := *c
	if existing, ok := r.s.data.cycles[c.OwnerID]; ok {
		out.ID = existing.ID
		out.CreatedAt = existing.CreatedAt
	} else {
		out.ID = r.s.id()
		out.CreatedAt = r.s.stamp()
	}
	out.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.cycles, c.OwnerID, out)
	return nil
}

func (r *settingsRepository) GetAutomationSettings(ctx context.Context, ownerID int64) (*models.AutomationSettings, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.data.automation[ownerID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *settingsRepository) SaveAutomationSettings(ctx context.Context, a *models.AutomationSettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := *a
	out.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.automation, a.OwnerID, out)
	return nil
}
