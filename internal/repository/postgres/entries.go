package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

type paymentPlanRepository struct {
	db *sql.DB
}

// NewPaymentPlanRepository creates a new payment plan repository
func NewPaymentPlanRepository(db *sql.DB) repository.PaymentPlanRepository {
	return &paymentPlanRepository{db: db}
}

func (r *paymentPlanRepository) Create(ctx context.Context, plan *models.PaymentPlan) (*models.PaymentPlan, error) {
	query := `
		INSERT INTO payment_plans (owner_id, plan_number, name, yearly_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		plan.OwnerID,
		plan.Number,
		plan.Name,
		plan.YearlyPrice,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)

	if err != nil {
		return nil, wrap("create payment plan", err)
	}

	return plan, nil
}

func (r *paymentPlanRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.PaymentPlan, error) {
	query := `
		SELECT id, owner_id, plan_number, name, yearly_price, created_at, updated_at
		FROM payment_plans
		WHERE owner_id = $1
		ORDER BY plan_number`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.PaymentPlan
	for rows.Next() {
		plan := &models.PaymentPlan{}
		if err := rows.Scan(
			&plan.ID,
			&plan.OwnerID,
			&plan.Number,
			&plan.Name,
			&plan.YearlyPrice,
			&plan.CreatedAt,
			&plan.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment plan: %w", err)
		}
		plans = append(plans, plan)
	}

	return plans, rows.Err()
}

type withdrawalRepository struct {
	db *sql.DB
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *sql.DB) repository.WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

func (r *withdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) (*models.Withdrawal, error) {
	query := `
		INSERT INTO withdrawals (family_id, amount, withdrawal_date, reason, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		w.FamilyID,
		w.Amount,
		w.Date,
		w.Reason,
		w.Notes,
		w.CreatedAt,
		w.UpdatedAt,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)

	if err != nil {
		return nil, wrap("create withdrawal", err)
	}

	return w, nil
}

func (r *withdrawalRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.Withdrawal, error) {
	query := `
		SELECT id, family_id, amount, withdrawal_date, reason, notes, created_at, updated_at
		FROM withdrawals
		WHERE family_id = $1
		ORDER BY withdrawal_date, id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		w := &models.Withdrawal{}
		if err := rows.Scan(
			&w.ID,
			&w.FamilyID,
			&w.Amount,
			&w.Date,
			&w.Reason,
			&w.Notes,
			&w.CreatedAt,
			&w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}

	return withdrawals, rows.Err()
}

type lifecycleEventRepository struct {
	db *sql.DB
}

// NewLifecycleEventRepository creates a new lifecycle event repository
func NewLifecycleEventRepository(db *sql.DB) repository.LifecycleEventRepository {
	return &lifecycleEventRepository{db: db}
}

func (r *lifecycleEventRepository) Create(ctx context.Context, e *models.LifecycleEvent) (*models.LifecycleEvent, error) {
	query := `
		INSERT INTO lifecycle_events (family_id, member_id, event_type, amount, event_date, year, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	e.CreatedAt = time.Now()
	if e.Year == 0 {
		e.Year = e.Date.Year()
	}

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		e.FamilyID,
		e.MemberID,
		e.Type,
		e.Amount,
		e.Date,
		e.Year,
		e.Notes,
		e.CreatedAt,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		return nil, wrap("create lifecycle event", err)
	}

	return e, nil
}

func (r *lifecycleEventRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.LifecycleEvent, error) {
	query := `
		SELECT id, family_id, member_id, event_type, amount, event_date, year, notes, created_at
		FROM lifecycle_events
		WHERE family_id = $1
		ORDER BY event_date, id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lifecycle events: %w", err)
	}
	defer rows.Close()

	var events []*models.LifecycleEvent
	for rows.Next() {
		e := &models.LifecycleEvent{}
		if err := rows.Scan(
			&e.ID,
			&e.FamilyID,
			&e.MemberID,
			&e.Type,
			&e.Amount,
			&e.Date,
			&e.Year,
			&e.Notes,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lifecycle event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

type planChargeRepository struct {
	db *sql.DB
}

// NewPlanChargeRepository creates a new plan charge repository
func NewPlanChargeRepository(db *sql.DB) repository.PlanChargeRepository {
	return &planChargeRepository{db: db}
}

func (r *planChargeRepository) Create(ctx context.Context, c *models.PlanCharge) (*models.PlanCharge, error) {
	query := `
		INSERT INTO plan_charges (family_id, cycle_date, plan_number, amount, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	c.CreatedAt = time.Now()
	if c.Kind == "" {
		c.Kind = models.PlanChargeCycle
	}

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		c.FamilyID,
		c.CycleDate,
		c.PlanNumber,
		c.Amount,
		c.Kind,
		c.CreatedAt,
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		return nil, wrap("create plan charge", err)
	}

	return c, nil
}

func (r *planChargeRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.PlanCharge, error) {
	query := `
		SELECT id, family_id, cycle_date, plan_number, amount, kind, created_at
		FROM plan_charges
		WHERE family_id = $1
		ORDER BY cycle_date`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan charges: %w", err)
	}
	defer rows.Close()

	var charges []*models.PlanCharge
	for rows.Next() {
		c := &models.PlanCharge{}
		if err := rows.Scan(
			&c.ID,
			&c.FamilyID,
			&c.CycleDate,
			&c.PlanNumber,
			&c.Amount,
			&c.Kind,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan plan charge: %w", err)
		}
		charges = append(charges, c)
	}

	return charges, rows.Err()
}
