package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

type enrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository creates a new recurring enrollment repository
func NewEnrollmentRepository(db *sql.DB) repository.EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) Create(ctx context.Context, e *models.RecurringEnrollment) (*models.RecurringEnrollment, error) {
	query := `
		INSERT INTO recurring_enrollments (family_id, member_id, saved_instrument_id, amount, start_date, active, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		e.FamilyID,
		e.MemberID,
		e.SavedInstrumentID,
		e.Amount,
		e.StartDate,
		e.Active,
		e.Notes,
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)

	if err != nil {
		return nil, wrap("create enrollment", err)
	}

	return e, nil
}

func (r *enrollmentRepository) ListActiveByOwner(ctx context.Context, ownerID int64) ([]*models.RecurringEnrollment, error) {
	query := `
		SELECT e.id, e.family_id, e.member_id, e.saved_instrument_id, e.amount, e.start_date, e.active,
			e.notes, e.last_charged_at, e.created_at, e.updated_at
		FROM recurring_enrollments e
		INNER JOIN families f ON f.id = e.family_id
		WHERE f.owner_id = $1 AND f.archived = FALSE AND e.active = TRUE
		ORDER BY e.id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*models.RecurringEnrollment
	for rows.Next() {
		e := &models.RecurringEnrollment{}
		if err := rows.Scan(
			&e.ID,
			&e.FamilyID,
			&e.MemberID,
			&e.SavedInstrumentID,
			&e.Amount,
			&e.StartDate,
			&e.Active,
			&e.Notes,
			&e.LastChargedAt,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}

	return enrollments, rows.Err()
}

func (r *enrollmentRepository) MarkCharged(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE recurring_enrollments
		SET last_charged_at = $2, updated_at = $3
		WHERE id = $1`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, at, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark enrollment charged: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("enrollment with ID %d: %w", id, models.ErrNotFound)
	}

	return nil
}
