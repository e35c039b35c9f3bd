package models

import (
	"strings"
	"time"
)

// Gender of a member
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Opposite returns the other gender, or the empty gender when unknown
func (g Gender) Opposite() Gender {
	switch g {
	case GenderMale:
		return GenderFemale
	case GenderFemale:
		return GenderMale
	}
	return ""
}

// ConversionState tracks the wedding conversion of a member
type ConversionState string

const (
	ConversionNone       ConversionState = ""
	ConversionConverting ConversionState = "converting"
	ConversionConverted  ConversionState = "converted"
)

// Member belongs to exactly one family at a time.
type Member struct {
	ID              int64      `json:"id" db:"id"`
	FamilyID        int64      `json:"family_id" db:"family_id"`
	FirstName       string     `json:"first_name" db:"first_name"`
	LastName        string     `json:"last_name" db:"last_name"`
	HebrewName      string     `json:"hebrew_name,omitempty" db:"hebrew_name"`
	Gender          Gender     `json:"gender,omitempty" db:"gender"`
	BirthDate       *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	HebrewBirthDate string     `json:"hebrew_birth_date,omitempty" db:"hebrew_birth_date"`
	WeddingDate     *time.Time `json:"wedding_date,omitempty" db:"wedding_date"`
	SpouseName      string     `json:"spouse_name,omitempty" db:"spouse_name"`

	Email   string `json:"email,omitempty" db:"email"`
	Phone   string `json:"phone,omitempty" db:"phone"`
	Address string `json:"address,omitempty" db:"address"`
	City    string `json:"city,omitempty" db:"city"`
	State   string `json:"state,omitempty" db:"state"`
	Zip     string `json:"zip,omitempty" db:"zip"`

	PaymentPlanAssigned bool       `json:"payment_plan_assigned" db:"payment_plan_assigned"`
	PlanNumber          int        `json:"plan_number" db:"plan_number"`
	PlanAssignedAt      *time.Time `json:"plan_assigned_at,omitempty" db:"plan_assigned_at"`

	ConversionState   ConversionState `json:"conversion_state,omitempty" db:"conversion_state"`
	ConvertedFamilyID *int64          `json:"converted_family_id,omitempty" db:"converted_family_id"`
	// SpouseOfMemberID links a spouse created by a wedding conversion to the
	// converted member. Unique.
	SpouseOfMemberID *int64 `json:"spouse_of_member_id,omitempty" db:"spouse_of_member_id"`

	BarMitzvahEventAdded bool `json:"bar_mitzvah_event_added" db:"bar_mitzvah_event_added"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the member's full name
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// IsConverted returns true once the member has become their own family
func (m *Member) IsConverted() bool {
	return m.ConversionState == ConversionConverted
}

// IsActive returns true while the member is on its family's active roster
func (m *Member) IsActive() bool {
	return !m.IsConverted()
}

// HasPlan returns true if the member carries its own plan assignment
func (m *Member) HasPlan() bool {
	return m.PaymentPlanAssigned && m.PlanNumber > 0
}

// PlanEffective reports whether the member's own plan counts on balances
// evaluated as of asOf.
func (m *Member) PlanEffective(asOf time.Time) bool {
	if !m.HasPlan() {
		return false
	}
	return m.PlanAssignedAt == nil || m.PlanAssignedAt.Before(asOf)
}

// WeddingDue reports whether the member's wedding date has arrived by today
func (m *Member) WeddingDue(today time.Time) bool {
	return m.WeddingDate != nil && !m.WeddingDate.After(today)
}
