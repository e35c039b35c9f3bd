package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

type familyRepository struct {
	db *sql.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *sql.DB) repository.FamilyRepository {
	return &familyRepository{db: db}
}

const familyColumns = `id, owner_id, name, wedding_date, email, phone, address, city, state, zip,
	husband_first_name, husband_last_name, husband_hebrew_name, husband_father_hebrew_name,
	wife_first_name, wife_last_name, wife_hebrew_name, wife_father_hebrew_name,
	plan_number, plan_assigned_at, last_cycle_applied_date, source_member_id, archived,
	created_at, updated_at`

func scanFamily(row interface{ Scan(...any) error }) (*models.Family, error) {
	f := &models.Family{}
	err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.Name,
		&f.WeddingDate,
		&f.Email,
		&f.Phone,
		&f.Address,
		&f.City,
		&f.State,
		&f.Zip,
		&f.HusbandFirstName,
		&f.HusbandLastName,
		&f.HusbandHebrewName,
		&f.HusbandFatherHebrewName,
		&f.WifeFirstName,
		&f.WifeLastName,
		&f.WifeHebrewName,
		&f.WifeFatherHebrewName,
		&f.PlanNumber,
		&f.PlanAssignedAt,
		&f.LastCycleAppliedDate,
		&f.SourceMemberID,
		&f.Archived,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	return f, err
}

func (r *familyRepository) Create(ctx context.Context, family *models.Family) (*models.Family, error) {
	query := `
		INSERT INTO families (owner_id, name, wedding_date, email, phone, address, city, state, zip,
			husband_first_name, husband_last_name, husband_hebrew_name, husband_father_hebrew_name,
			wife_first_name, wife_last_name, wife_hebrew_name, wife_father_hebrew_name,
			plan_number, plan_assigned_at, last_cycle_applied_date, source_member_id, archived,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	family.CreatedAt = now
	family.UpdatedAt = now

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		family.OwnerID,
		family.Name,
		family.WeddingDate,
		family.Email,
		family.Phone,
		family.Address,
		family.City,
		family.State,
		family.Zip,
		family.HusbandFirstName,
		family.HusbandLastName,
		family.HusbandHebrewName,
		family.HusbandFatherHebrewName,
		family.WifeFirstName,
		family.WifeLastName,
		family.WifeHebrewName,
		family.WifeFatherHebrewName,
		family.PlanNumber,
		family.PlanAssignedAt,
		family.LastCycleAppliedDate,
		family.SourceMemberID,
		family.Archived,
		family.CreatedAt,
		family.UpdatedAt,
	).Scan(&family.ID, &family.CreatedAt, &family.UpdatedAt)

	if err != nil {
		return nil, wrap("create family", err)
	}

	return family, nil
}

func (r *familyRepository) GetByID(ctx context.Context, id int64) (*models.Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families WHERE id = $1`

	family, err := scanFamily(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get family by ID: %w", err)
	}

	return family, nil
}

func (r *familyRepository) GetBySourceMember(ctx context.Context, memberID int64) (*models.Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families WHERE source_member_id = $1`

	family, err := scanFamily(conn(ctx, r.db).QueryRowContext(ctx, query, memberID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get family by source member: %w", err)
	}

	return family, nil
}

func (r *familyRepository) ListByOwner(ctx context.Context, ownerID int64, filters repository.FamilyFilters) ([]*models.Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families WHERE owner_id = $1`
	args := []any{ownerID}

	if !filters.IncludeArchived {
		query += ` AND archived = FALSE`
	}
	query += ` ORDER BY id`

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []*models.Family
	for rows.Next() {
		family, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, family)
	}

	return families, rows.Err()
}

func (r *familyRepository) Update(ctx context.Context, family *models.Family) (*models.Family, error) {
	query := `
		UPDATE families
		SET name = $2, wedding_date = $3, email = $4, phone = $5, address = $6, city = $7, state = $8, zip = $9,
			husband_first_name = $10, husband_last_name = $11, husband_hebrew_name = $12, husband_father_hebrew_name = $13,
			wife_first_name = $14, wife_last_name = $15, wife_hebrew_name = $16, wife_father_hebrew_name = $17,
			plan_number = $18, plan_assigned_at = $19, archived = $20, updated_at = $21
		WHERE id = $1
		RETURNING updated_at`

	family.UpdatedAt = time.Now()

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		family.ID,
		family.Name,
		family.WeddingDate,
		family.Email,
		family.Phone,
		family.Address,
		family.City,
		family.State,
		family.Zip,
		family.HusbandFirstName,
		family.HusbandLastName,
		family.HusbandHebrewName,
		family.HusbandFatherHebrewName,
		family.WifeFirstName,
		family.WifeLastName,
		family.WifeHebrewName,
		family.WifeFatherHebrewName,
		family.PlanNumber,
		family.PlanAssignedAt,
		family.Archived,
		family.UpdatedAt,
	).Scan(&family.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("family %d: %w", family.ID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update family: %w", err)
	}

	return family, nil
}

func (r *familyRepository) StampCycle(ctx context.Context, familyID int64, prev *time.Time, next time.Time) error {
	query := `
		UPDATE families
		SET last_cycle_applied_date = $3, updated_at = NOW()
		WHERE id = $1 AND last_cycle_applied_date IS NOT DISTINCT FROM $2::date`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, familyID, prev, next)
	if err != nil {
		return fmt.Errorf("failed to stamp cycle: %w", err)
	}

	return expectOne(result, "stamp cycle")
}
