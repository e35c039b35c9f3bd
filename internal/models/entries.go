package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal is a family-level debit. It has no refund sub-ledger.
type Withdrawal struct {
	ID        int64           `json:"id" db:"id"`
	FamilyID  int64           `json:"family_id" db:"family_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Date      time.Time       `json:"withdrawal_date" db:"withdrawal_date"`
	Reason    string          `json:"reason,omitempty" db:"reason"`
	Notes     string          `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// LifecycleEventType identifies a life event
type LifecycleEventType string

const (
	EventChasena    LifecycleEventType = "chasena"
	EventBarMitzvah LifecycleEventType = "bar_mitzvah"
	EventBirthBoy   LifecycleEventType = "birth_boy"
	EventBirthGirl  LifecycleEventType = "birth_girl"
)

// LifecycleEvent is a ceremonial charge. It is reported alongside the
// ledger but never changes a balance.
type LifecycleEvent struct {
	ID        int64              `json:"id" db:"id"`
	FamilyID  int64              `json:"family_id" db:"family_id"`
	MemberID  *int64             `json:"member_id,omitempty" db:"member_id"`
	Type      LifecycleEventType `json:"event_type" db:"event_type"`
	Amount    decimal.Decimal    `json:"amount" db:"amount"`
	Date      time.Time          `json:"event_date" db:"event_date"`
	Year      int                `json:"year" db:"year"`
	Notes     string             `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}

// LifecycleEventTypeConfig is the configured display name and default
// amount for an event type.
type LifecycleEventTypeConfig struct {
	Type   LifecycleEventType `json:"type" yaml:"type"`
	Name   string             `json:"name" yaml:"name"`
	Amount decimal.Decimal    `json:"amount" yaml:"amount"`
}

// DefaultLifecycleEventTypes returns the built-in event types
func DefaultLifecycleEventTypes() []LifecycleEventTypeConfig {
	return []LifecycleEventTypeConfig{
		{Type: EventChasena, Name: "Chasena (Wedding)", Amount: decimal.NewFromInt(12180)},
		{Type: EventBarMitzvah, Name: "Bar/Bat Mitzvah", Amount: decimal.NewFromInt(1800)},
		{Type: EventBirthBoy, Name: "Birth Boy", Amount: decimal.NewFromInt(500)},
		{Type: EventBirthGirl, Name: "Birth Girl", Amount: decimal.NewFromInt(500)},
	}
}
