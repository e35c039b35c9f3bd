package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Kerhoff/kasa/internal/models"
)

// Seed is the YAML bootstrap file: the owning administrator, the plan
// table, the lifecycle event types and the per-owner automation settings.
type Seed struct {
	Owner           SeedOwner                         `yaml:"owner"`
	Plans           []SeedPlan                        `yaml:"plans"`
	LifecycleEvents []models.LifecycleEventTypeConfig `yaml:"lifecycle_events,omitempty"`
	Cycle           *models.CycleConfig               `yaml:"cycle,omitempty"`
	Automation      *models.AutomationSettings        `yaml:"automation,omitempty"`
}

// SeedOwner identifies the administrator the seeded records belong to.
type SeedOwner struct {
	Email      string `yaml:"email"`
	FirstName  string `yaml:"first_name,omitempty"`
	LastName   string `yaml:"last_name,omitempty"`
	TelegramID *int64 `yaml:"telegram_id,omitempty"`
}

// SeedPlan is one payment plan row. Only the yearly price is configured.
type SeedPlan struct {
	Number      int             `yaml:"number"`
	Name        string          `yaml:"name"`
	YearlyPrice decimal.Decimal `yaml:"yearly_price"`
}

// LoadSeed reads a seed file from disk.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}
	return &seed, nil
}

// SaveSeed writes a seed file.
func SaveSeed(path string, seed *Seed) error {
	data, err := yaml.Marshal(seed)
	if err != nil {
		return fmt.Errorf("marshaling seed file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing seed file: %w", err)
	}
	return nil
}

// Validate checks the seed before anything is written to the store
func (s *Seed) Validate() error {
	if s.Owner.Email == "" {
		return &models.ValidationError{Field: "owner.email", Message: "is required"}
	}
	seen := make(map[int]bool, len(s.Plans))
	for _, p := range s.Plans {
		if p.Number <= 0 {
			return &models.ValidationError{Field: "plans.number", Message: "must be positive"}
		}
		if seen[p.Number] {
			return &models.ValidationError{Field: "plans.number", Message: fmt.Sprintf("%d is listed twice", p.Number)}
		}
		seen[p.Number] = true
		if !p.YearlyPrice.IsPositive() {
			return &models.ValidationError{Field: "plans.yearly_price", Message: fmt.Sprintf("plan %d must have a positive price", p.Number)}
		}
	}
	if s.Cycle != nil {
		if err := s.Cycle.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DefaultSeed returns the seed written by `kasa seed --init`.
func DefaultSeed(ownerEmail string) *Seed {
	return &Seed{
		Owner: SeedOwner{Email: ownerEmail},
		Plans: []SeedPlan{
			{Number: 1, Name: "Plan 1", YearlyPrice: decimal.NewFromInt(1200)},
			{Number: 2, Name: "Plan 2", YearlyPrice: decimal.NewFromInt(1500)},
			{Number: 3, Name: "Plan 3 (Bucher)", YearlyPrice: decimal.NewFromInt(1800)},
			{Number: 4, Name: "Plan 4", YearlyPrice: decimal.NewFromInt(2500)},
		},
		LifecycleEvents: models.DefaultLifecycleEventTypes(),
		Cycle: &models.CycleConfig{
			CycleStartMonth: 9,
			CycleStartDay:   1,
			Description:     "Membership year",
			IsActive:        true,
		},
		Automation: models.DefaultAutomationSettings(0),
	}
}
