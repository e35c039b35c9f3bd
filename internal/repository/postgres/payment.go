package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `id, family_id, member_id, amount, payment_date, year, payment_method, type,
	payment_frequency, notes, external_payment_id, saved_instrument_id, enrollment_id,
	COALESCE(billing_key, ''), refunded_amount, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(
		&p.ID,
		&p.FamilyID,
		&p.MemberID,
		&p.Amount,
		&p.Date,
		&p.Year,
		&p.Method,
		&p.Type,
		&p.Frequency,
		&p.Notes,
		&p.ExternalPaymentID,
		&p.SavedInstrumentID,
		&p.EnrollmentID,
		&p.BillingKey,
		&p.RefundedAmount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	query := `
		INSERT INTO payments (family_id, member_id, amount, payment_date, year, payment_method, type,
			payment_frequency, notes, external_payment_id, saved_instrument_id, enrollment_id,
			billing_key, refunded_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, $14, $15)
		RETURNING id, refunded_amount, created_at, updated_at`

	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if payment.Year == 0 {
		payment.Year = payment.Date.Year()
	}

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		payment.FamilyID,
		payment.MemberID,
		payment.Amount,
		payment.Date,
		payment.Year,
		payment.Method,
		payment.Type,
		payment.Frequency,
		payment.Notes,
		payment.ExternalPaymentID,
		payment.SavedInstrumentID,
		payment.EnrollmentID,
		nullable(payment.BillingKey),
		payment.CreatedAt,
		payment.UpdatedAt,
	).Scan(&payment.ID, &payment.RefundedAmount, &payment.CreatedAt, &payment.UpdatedAt)

	if err != nil {
		return nil, wrap("create payment", err)
	}
	payment.Refunds = nil

	return payment, nil
}

func (r *paymentRepository) getOne(ctx context.Context, where string, arg any) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where

	payment, err := scanPayment(conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if err := r.attachRefunds(ctx, []*models.Payment{payment}); err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *paymentRepository) GetByBillingKey(ctx context.Context, billingKey string) (*models.Payment, error) {
	return r.getOne(ctx, `billing_key = $1`, billingKey)
}

func (r *paymentRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE family_id = $1 ORDER BY payment_date, id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachRefunds(ctx, payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) attachRefunds(ctx context.Context, payments []*models.Payment) error {
	if len(payments) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(payments))
	byID := make(map[int64]*models.Payment, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	query := `
		SELECT id, payment_id, amount, refund_date, reason, external_refund_id, status, refunded_by, notes, created_at
		FROM payment_refunds
		WHERE payment_id = ANY($1)
		ORDER BY id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query refunds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.RefundEntry
		if err := rows.Scan(
			&e.ID,
			&e.PaymentID,
			&e.Amount,
			&e.Date,
			&e.Reason,
			&e.ExternalRefundID,
			&e.Status,
			&e.RefundedBy,
			&e.Notes,
			&e.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan refund: %w", err)
		}
		if p, ok := byID[e.PaymentID]; ok {
			p.Refunds = append(p.Refunds, e)
		}
	}

	return rows.Err()
}

func (r *paymentRepository) ReserveRefund(ctx context.Context, paymentID int64, entry *models.RefundEntry) (*models.RefundEntry, error) {
	if !entry.Amount.IsPositive() {
		return nil, fmt.Errorf("failed to reserve refund: %w", repository.ErrConflict)
	}

	reserve := `
		UPDATE payments
		SET refunded_amount = refunded_amount + $2, updated_at = NOW()
		WHERE id = $1 AND refunded_amount + $2 <= amount`

	insert := `
		INSERT INTO payment_refunds (payment_id, amount, refund_date, reason, external_refund_id, status, refunded_by, notes, created_at)
		VALUES ($1, $2, $3, $4, '', $5, $6, $7, $8)
		RETURNING id, created_at`

	out := *entry
	out.PaymentID = paymentID
	out.Status = models.RefundPending
	out.CreatedAt = time.Now()

	err := NewTransactor(r.db).WithinTx(ctx, func(ctx context.Context) error {
		result, err := conn(ctx, r.db).ExecContext(ctx, reserve, paymentID, entry.Amount)
		if err != nil {
			return fmt.Errorf("failed to reserve refund: %w", err)
		}
		if err := expectOne(result, "reserve refund"); err != nil {
			return err
		}

		return conn(ctx, r.db).QueryRowContext(ctx, insert,
			out.PaymentID,
			out.Amount,
			out.Date,
			out.Reason,
			out.Status,
			out.RefundedBy,
			out.Notes,
			out.CreatedAt,
		).Scan(&out.ID, &out.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *paymentRepository) CompleteRefund(ctx context.Context, refundID int64, externalRefundID string) error {
	query := `
		UPDATE payment_refunds
		SET status = 'succeeded', external_refund_id = $2
		WHERE id = $1 AND status = 'pending'`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, refundID, externalRefundID)
	if err != nil {
		return fmt.Errorf("failed to complete refund: %w", err)
	}

	return expectOne(result, "complete refund")
}

func (r *paymentRepository) FailRefund(ctx context.Context, refundID int64) error {
	markFailed := `
		UPDATE payment_refunds
		SET status = 'failed'
		WHERE id = $1 AND status = 'pending'
		RETURNING payment_id, amount`

	release := `
		UPDATE payments
		SET refunded_amount = refunded_amount - $2, updated_at = NOW()
		WHERE id = $1`

	return NewTransactor(r.db).WithinTx(ctx, func(ctx context.Context) error {
		var entry models.RefundEntry
		err := conn(ctx, r.db).QueryRowContext(ctx, markFailed, refundID).Scan(&entry.PaymentID, &entry.Amount)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to fail refund: %w", repository.ErrConflict)
			}
			return fmt.Errorf("failed to fail refund: %w", err)
		}

		if _, err := conn(ctx, r.db).ExecContext(ctx, release, entry.PaymentID, entry.Amount); err != nil {
			return fmt.Errorf("failed to release refund reservation: %w", err)
		}
		return nil
	})
}
