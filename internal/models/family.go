package models

import "time"

// Family is the billing unit. Families are archived, never deleted, once
// they carry financial history.
type Family struct {
	ID          int64      `json:"id" db:"id"`
	OwnerID     int64      `json:"owner_id" db:"owner_id"`
	Name        string     `json:"name" db:"name"`
	WeddingDate *time.Time `json:"wedding_date,omitempty" db:"wedding_date"`

	Email   string `json:"email,omitempty" db:"email"`
	Phone   string `json:"phone,omitempty" db:"phone"`
	Address string `json:"address,omitempty" db:"address"`
	City    string `json:"city,omitempty" db:"city"`
	State   string `json:"state,omitempty" db:"state"`
	Zip     string `json:"zip,omitempty" db:"zip"`

	HusbandFirstName        string `json:"husband_first_name,omitempty" db:"husband_first_name"`
	HusbandLastName         string `json:"husband_last_name,omitempty" db:"husband_last_name"`
	HusbandHebrewName       string `json:"husband_hebrew_name,omitempty" db:"husband_hebrew_name"`
	HusbandFatherHebrewName string `json:"husband_father_hebrew_name,omitempty" db:"husband_father_hebrew_name"`
	WifeFirstName           string `json:"wife_first_name,omitempty" db:"wife_first_name"`
	WifeLastName            string `json:"wife_last_name,omitempty" db:"wife_last_name"`
	WifeHebrewName          string `json:"wife_hebrew_name,omitempty" db:"wife_hebrew_name"`
	WifeFatherHebrewName    string `json:"wife_father_hebrew_name,omitempty" db:"wife_father_hebrew_name"`

	// PlanNumber is zero while no plan is assigned.
	PlanNumber     int        `json:"plan_number" db:"plan_number"`
	PlanAssignedAt *time.Time `json:"plan_assigned_at,omitempty" db:"plan_assigned_at"`

	LastCycleAppliedDate *time.Time `json:"last_cycle_applied_date,omitempty" db:"last_cycle_applied_date"`

	// SourceMemberID is set on families created by a wedding conversion and
	// is unique across families.
	SourceMemberID *int64 `json:"source_member_id,omitempty" db:"source_member_id"`

	Archived  bool      `json:"archived" db:"archived"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasPlan returns true if a payment plan has been assigned
func (f *Family) HasPlan() bool {
	return f.PlanNumber > 0
}

// PlanEffective reports whether the assigned plan counts as a liability on
// balances evaluated as of asOf. A plan without an assignment date has
// always been in effect.
func (f *Family) PlanEffective(asOf time.Time) bool {
	if !f.HasPlan() {
		return false
	}
	return f.PlanAssignedAt == nil || f.PlanAssignedAt.Before(asOf)
}
