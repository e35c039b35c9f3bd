package models

import "time"

// CycleConfig holds the annual anniversary on which plan cost is applied.
type CycleConfig struct {
	ID              int64     `json:"id" db:"id" yaml:"-"`
	OwnerID         int64     `json:"owner_id" db:"owner_id" yaml:"-"`
	CycleStartMonth int       `json:"cycle_start_month" db:"cycle_start_month" yaml:"cycle_start_month"`
	CycleStartDay   int       `json:"cycle_start_day" db:"cycle_start_day" yaml:"cycle_start_day"`
	Description     string    `json:"description,omitempty" db:"description" yaml:"description,omitempty"`
	IsActive        bool      `json:"is_active" db:"is_active" yaml:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// Validate checks the month and day ranges
func (c *CycleConfig) Validate() error {
	if c.CycleStartMonth < 1 || c.CycleStartMonth > 12 {
		return &ValidationError{Field: "cycle_start_month", Message: "must be between 1 and 12"}
	}
	if c.CycleStartDay < 1 || c.CycleStartDay > 31 {
		return &ValidationError{Field: "cycle_start_day", Message: "must be between 1 and 31"}
	}
	return nil
}

// AutomationSettings toggles the scheduled jobs for one owner. A disabled
// job is skipped on the timer but can still be run manually.
type AutomationSettings struct {
	OwnerID                   int64     `json:"owner_id" db:"owner_id" yaml:"-"`
	EnableMonthlyPayments     bool      `json:"enable_monthly_payments" db:"enable_monthly_payments" yaml:"enable_monthly_payments"`
	EnableCycleRollover       bool      `json:"enable_cycle_rollover" db:"enable_cycle_rollover" yaml:"enable_cycle_rollover"`
	EnableWeddingConversion   bool      `json:"enable_wedding_conversion" db:"enable_wedding_conversion" yaml:"enable_wedding_conversion"`
	EnableBarMitzvahCheck     bool      `json:"enable_bar_mitzvah_check" db:"enable_bar_mitzvah_check" yaml:"enable_bar_mitzvah_check"`
	EnableStatementGeneration bool      `json:"enable_statement_generation" db:"enable_statement_generation" yaml:"enable_statement_generation"`
	EnableStatementEmails     bool      `json:"enable_statement_emails" db:"enable_statement_emails" yaml:"enable_statement_emails"`
	EnablePaymentEmails       bool      `json:"enable_payment_emails" db:"enable_payment_emails" yaml:"enable_payment_emails"`
	UpdatedAt                 time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// DefaultAutomationSettings enables every job
func DefaultAutomationSettings(ownerID int64) *AutomationSettings {
	return &AutomationSettings{
		OwnerID:                   ownerID,
		EnableMonthlyPayments:     true,
		EnableCycleRollover:       true,
		EnableWeddingConversion:   true,
		EnableBarMitzvahCheck:     true,
		EnableStatementGeneration: true,
		EnableStatementEmails:     true,
		EnablePaymentEmails:       true,
	}
}
