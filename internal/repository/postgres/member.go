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

type memberRepository struct {
	db *sql.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *sql.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

const memberColumns = `m.id, m.family_id, m.first_name, m.last_name, m.hebrew_name, m.gender,
	m.birth_date, m.hebrew_birth_date, m.wedding_date, m.spouse_name,
	m.email, m.phone, m.address, m.city, m.state, m.zip,
	m.payment_plan_assigned, m.plan_number, m.plan_assigned_at,
	m.conversion_state, m.converted_family_id, m.spouse_of_member_id,
	m.bar_mitzvah_event_added, m.created_at, m.updated_at`

func scanMember(row interface{ Scan(...any) error }) (*models.Member, error) {
	m := &models.Member{}
	err := row.Scan(
		&m.ID,
		&m.FamilyID,
		&m.FirstName,
		&m.LastName,
		&m.HebrewName,
		&m.Gender,
		&m.BirthDate,
		&m.HebrewBirthDate,
		&m.WeddingDate,
		&m.SpouseName,
		&m.Email,
		&m.Phone,
		&m.Address,
		&m.City,
		&m.State,
		&m.Zip,
		&m.PaymentPlanAssigned,
		&m.PlanNumber,
		&m.PlanAssignedAt,
		&m.ConversionState,
		&m.ConvertedFamilyID,
		&m.SpouseOfMemberID,
		&m.BarMitzvahEventAdded,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func (r *memberRepository) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	query := `
		INSERT INTO members (family_id, first_name, last_name, hebrew_name, gender, birth_date,
			hebrew_birth_date, wedding_date, spouse_name, email, phone, address, city, state, zip,
			payment_plan_assigned, plan_number, plan_assigned_at, conversion_state,
			converted_family_id, spouse_of_member_id, bar_mitzvah_event_added, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	member.CreatedAt = now
	member.UpdatedAt = now

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		member.FamilyID,
		member.FirstName,
		member.LastName,
		member.HebrewName,
		member.Gender,
		member.BirthDate,
		member.HebrewBirthDate,
		member.WeddingDate,
		member.SpouseName,
		member.Email,
		member.Phone,
		member.Address,
		member.City,
		member.State,
		member.Zip,
		member.PaymentPlanAssigned,
		member.PlanNumber,
		member.PlanAssignedAt,
		member.ConversionState,
		member.ConvertedFamilyID,
		member.SpouseOfMemberID,
		member.BarMitzvahEventAdded,
		member.CreatedAt,
		member.UpdatedAt,
	).Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt)

	if err != nil {
		return nil, wrap("create member", err)
	}

	return member, nil
}

func (r *memberRepository) get(ctx context.Context, where string, arg any) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members m WHERE ` + where

	member, err := scanMember(conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

func (r *memberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	return r.get(ctx, `m.id = $1`, id)
}

func (r *memberRepository) GetBySpouseOf(ctx context.Context, memberID int64) (*models.Member, error) {
	return r.get(ctx, `m.spouse_of_member_id = $1`, memberID)
}

func (r *memberRepository) list(ctx context.Context, query string, args ...any) ([]*models.Member, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

func (r *memberRepository) ListActiveByFamily(ctx context.Context, familyID int64) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		WHERE m.family_id = $1 AND m.conversion_state <> 'converted'
		ORDER BY m.id`
	return r.list(ctx, query, familyID)
}

func (r *memberRepository) ListWeddingDue(ctx context.Context, ownerID int64, today time.Time) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		INNER JOIN families f ON f.id = m.family_id
		WHERE f.owner_id = $1 AND f.archived = FALSE
			AND m.wedding_date IS NOT NULL AND m.wedding_date <= $2
			AND m.conversion_state <> 'converted'
		ORDER BY m.id`
	return r.list(ctx, query, ownerID, today)
}

func (r *memberRepository) ListWithBirthDate(ctx context.Context, ownerID int64) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		INNER JOIN families f ON f.id = m.family_id
		WHERE f.owner_id = $1 AND f.archived = FALSE
			AND m.birth_date IS NOT NULL
			AND m.conversion_state <> 'converted'
		ORDER BY m.id`
	return r.list(ctx, query, ownerID)
}

func (r *memberRepository) Update(ctx context.Context, member *models.Member) (*models.Member, error) {
	query := `
		UPDATE members
		SET family_id = $2, first_name = $3, last_name = $4, hebrew_name = $5, gender = $6,
			birth_date = $7, hebrew_birth_date = $8, wedding_date = $9, spouse_name = $10,
			email = $11, phone = $12, address = $13, city = $14, state = $15, zip = $16,
			payment_plan_assigned = $17, plan_number = $18, plan_assigned_at = $19,
			bar_mitzvah_event_added = $20, updated_at = $21
		WHERE id = $1
		RETURNING updated_at`

	member.UpdatedAt = time.Now()

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		member.ID,
		member.FamilyID,
		member.FirstName,
		member.LastName,
		member.HebrewName,
		member.Gender,
		member.BirthDate,
		member.HebrewBirthDate,
		member.WeddingDate,
		member.SpouseName,
		member.Email,
		member.Phone,
		member.Address,
		member.City,
		member.State,
		member.Zip,
		member.PaymentPlanAssigned,
		member.PlanNumber,
		member.PlanAssignedAt,
		member.BarMitzvahEventAdded,
		member.UpdatedAt,
	).Scan(&member.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %d: %w", member.ID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	return member, nil
}

func (r *memberRepository) UpdateBarMitzvah(ctx context.Context, memberID int64, hebrewBirthDate string, eventAdded bool) error {
	query := `
		UPDATE members
		SET hebrew_birth_date = COALESCE(NULLIF($2, ''), hebrew_birth_date),
			bar_mitzvah_event_added = bar_mitzvah_event_added OR $3,
			updated_at = NOW()
		WHERE id = $1`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, memberID, hebrewBirthDate, eventAdded)
	if err != nil {
		return fmt.Errorf("failed to update bar mitzvah fields: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member %d: %w", memberID, models.ErrNotFound)
	}
	return nil
}

func (r *memberRepository) TransitionConversion(ctx context.Context, memberID int64, from, to models.ConversionState, convertedFamilyID *int64) error {
	query := `
		UPDATE members
		SET conversion_state = $3,
			converted_family_id = COALESCE($4::bigint, converted_family_id),
			updated_at = NOW()
		WHERE id = $1 AND conversion_state = $2`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, memberID, from, to, convertedFamilyID)
	if err != nil {
		return fmt.Errorf("failed to transition member conversion: %w", err)
	}

	return expectOne(result, "transition member conversion")
}
