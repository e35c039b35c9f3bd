package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

type statementRepository struct {
	db *sql.DB
}

// NewStatementRepository creates a new statement repository
func NewStatementRepository(db *sql.DB) repository.StatementRepository {
	return &statementRepository{db: db}
}

const statementColumns = `id, family_id, member_id, statement_number, sequence, from_date, to_date,
	opening_balance, income, withdrawals, expenses, lifecycle_events, closing_balance, line_items, created_at`

func scanStatement(row interface{ Scan(...any) error }) (*models.Statement, error) {
	st := &models.Statement{}
	var items []byte
	err := row.Scan(
		&st.ID,
		&st.FamilyID,
		&st.MemberID,
		&st.Number,
		&st.Sequence,
		&st.FromDate,
		&st.ToDate,
		&st.OpeningBalance,
		&st.Income,
		&st.Withdrawals,
		&st.Expenses,
		&st.LifecycleEvents,
		&st.ClosingBalance,
		&items,
		&st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &st.LineItems); err != nil {
		return nil, fmt.Errorf("failed to decode line items: %w", err)
	}
	return st, nil
}

func (r *statementRepository) Create(ctx context.Context, st *models.Statement) (*models.Statement, error) {
	query := `
		INSERT INTO statements (family_id, member_id, statement_number, sequence, from_date, to_date,
			opening_balance, income, withdrawals, expenses, lifecycle_events, closing_balance, line_items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	items, err := json.Marshal(st.LineItems)
	if err != nil {
		return nil, fmt.Errorf("failed to encode line items: %w", err)
	}
	st.CreatedAt = time.Now()

	err = conn(ctx, r.db).QueryRowContext(ctx, query,
		st.FamilyID,
		st.MemberID,
		st.Number,
		st.Sequence,
		st.FromDate,
		st.ToDate,
		st.OpeningBalance,
		st.Income,
		st.Withdrawals,
		st.Expenses,
		st.LifecycleEvents,
		st.ClosingBalance,
		items,
		st.CreatedAt,
	).Scan(&st.ID, &st.CreatedAt)

	if err != nil {
		return nil, wrap("create statement", err)
	}

	return st, nil
}

func (r *statementRepository) GetByID(ctx context.Context, id int64) (*models.Statement, error) {
	query := `SELECT ` + statementColumns + ` FROM statements WHERE id = $1`

	st, err := scanStatement(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get statement by ID: %w", err)
	}

	return st, nil
}

func (r *statementRepository) Latest(ctx context.Context, familyID int64, memberID *int64) (*models.Statement, error) {
	query := `
		SELECT ` + statementColumns + `
		FROM statements
		WHERE family_id = $1 AND member_id IS NOT DISTINCT FROM $2::bigint
		ORDER BY sequence DESC
		LIMIT 1`

	st, err := scanStatement(conn(ctx, r.db).QueryRowContext(ctx, query, familyID, memberID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest statement: %w", err)
	}

	return st, nil
}

func (r *statementRepository) NextSequence(ctx context.Context, familyID int64, memberID *int64) (int, error) {
	query := `
		SELECT COALESCE(MAX(sequence), 0) + 1
		FROM statements
		WHERE family_id = $1 AND member_id IS NOT DISTINCT FROM $2::bigint`

	var next int
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, familyID, memberID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to get next statement sequence: %w", err)
	}

	return next, nil
}

func (r *statementRepository) ListByFamily(ctx context.Context, familyID int64) ([]*models.Statement, error) {
	query := `SELECT ` + statementColumns + ` FROM statements WHERE family_id = $1 ORDER BY id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer rows.Close()

	var statements []*models.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		statements = append(statements, st)
	}

	return statements, rows.Err()
}

func (r *statementRepository) ExistsFrom(ctx context.Context, familyID int64, from time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM statements
			WHERE family_id = $1 AND member_id IS NULL AND from_date = $2
		)`

	var exists bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, familyID, from).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check statement period: %w", err)
	}

	return exists, nil
}
