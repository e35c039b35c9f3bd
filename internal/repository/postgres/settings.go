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

type settingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *sql.DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetCycleConfig(ctx context.Context, ownerID int64) (*models.CycleConfig, error) {
	query := `
		SELECT id, owner_id, cycle_start_month, cycle_start_day, description, is_active, created_at, updated_at
		FROM cycle_configs
		WHERE owner_id = $1`

	c := &models.CycleConfig{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, ownerID).Scan(
		&c.ID,
		&c.OwnerID,
		&c.CycleStartMonth,
		&c.CycleStartDay,
		&c.Description,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cycle config: %w", err)
	}

	return c, nil
}

func (r *settingsRepository) SaveCycleConfig(ctx context.Context, c *models.CycleConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO cycle_configs (owner_id, cycle_start_month, cycle_start_day, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (owner_id) DO UPDATE SET
			cycle_start_month = $2, cycle_start_day = $3, description = $4, is_active = $5, updated_at = $6
		RETURNING id, created_at, updated_at`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		c.OwnerID,
		c.CycleStartMonth,
		c.CycleStartDay,
		c.Description,
		c.IsActive,
		time.Now(),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save cycle config: %w", err)
	}

	return nil
}

func (r *settingsRepository) GetAutomationSettings(ctx context.Context, ownerID int64) (*models.AutomationSettings, error) {
	query := `
		SELECT owner_id, enable_monthly_payments, enable_cycle_rollover, enable_wedding_conversion,
			enable_bar_mitzvah_check, enable_statement_generation, enable_statement_emails,
			enable_payment_emails, updated_at
		FROM automation_settings
		WHERE owner_id = $1`

	s := &models.AutomationSettings{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, ownerID).Scan(
		&s.OwnerID,
		&s.EnableMonthlyPayments,
		&s.EnableCycleRollover,
		&s.EnableWeddingConversion,
		&s.EnableBarMitzvahCheck,
		&s.EnableStatementGeneration,
		&s.EnableStatementEmails,
		&s.EnablePaymentEmails,
		&s.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get automation settings: %w", err)
	}

	return s, nil
}

func (r *settingsRepository) SaveAutomationSettings(ctx context.Context, s *models.AutomationSettings) error {
	query := `
		INSERT INTO automation_settings (owner_id, enable_monthly_payments, enable_cycle_rollover,
			enable_wedding_conversion, enable_bar_mitzvah_check, enable_statement_generation,
			enable_statement_emails, enable_payment_emails, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id) DO UPDATE SET
			enable_monthly_payments = $2, enable_cycle_rollover = $3, enable_wedding_conversion = $4,
			enable_bar_mitzvah_check = $5, enable_statement_generation = $6,
			enable_statement_emails = $7, enable_payment_emails = $8, updated_at = $9`

	s.UpdatedAt = time.Now()

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		s.OwnerID,
		s.EnableMonthlyPayments,
		s.EnableCycleRollover,
		s.EnableWeddingConversion,
		s.EnableBarMitzvahCheck,
		s.EnableStatementGeneration,
		s.EnableStatementEmails,
		s.EnablePaymentEmails,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation settings: %w", err)
	}

	return nil
}
