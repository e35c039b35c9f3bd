package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentPlan is a pricing tier. Only the yearly price is stored.
type PaymentPlan struct {
	ID          int64           `json:"id" db:"id"`
	OwnerID     int64           `json:"owner_id" db:"owner_id"`
	Number      int             `json:"plan_number" db:"plan_number"`
	Name        string          `json:"name" db:"name"`
	YearlyPrice decimal.Decimal `json:"yearly_price" db:"yearly_price"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// MonthlyPrice is always derived from the yearly price, rounded to cents.
func (p *PaymentPlan) MonthlyPrice() decimal.Decimal {
	return p.YearlyPrice.Div(decimal.NewFromInt(12)).Round(2)
}

// PlanChargeKind says why a plan charge was recorded
type PlanChargeKind string

const (
	PlanChargeCycle PlanChargeKind = "cycle"
)

// PlanCharge is a dated plan-cost liability written by the cycle rollover.
// At most one exists per family and cycle date.
type PlanCharge struct {
	ID         int64           `json:"id" db:"id"`
	FamilyID   int64           `json:"family_id" db:"family_id"`
	CycleDate  time.Time       `json:"cycle_date" db:"cycle_date"`
	PlanNumber int             `json:"plan_number" db:"plan_number"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Kind       PlanChargeKind  `json:"kind" db:"kind"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
