// Package plans resolves which payment plan applies to a member and what
// it costs.
package plans

import (
	"github.com/shopspring/decimal"

	"github.com/Kerhoff/kasa/internal/models"
)

// Plan tiers by number.
const (
	TierStandard = 1
	TierMid      = 2
	// TierBucher is the tier reserved for young men past bar mitzvah.
	TierBucher = 3
	TierFull   = 4
)

// legacyYearlyPrices is the price table used before plans were stored as
// records. It only answers when the plan store has no record for a number.
var legacyYearlyPrices = map[int]int64{
	1: 1200,
	2: 1500,
	3: 1800,
	4: 2500,
}

// LegacyYearlyPrice returns the legacy price for a plan number.
func LegacyYearlyPrice(planNumber int) (decimal.Decimal, bool) {
	p, ok := legacyYearlyPrices[planNumber]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(p), true
}

// Catalog is the plan records of one owner with the legacy table behind it.
type Catalog struct {
	byNumber map[int]*models.PaymentPlan
}

// NewCatalog indexes the given plan records by number
func NewCatalog(plans []*models.PaymentPlan) *Catalog {
	c := &Catalog{byNumber: make(map[int]*models.PaymentPlan, len(plans))}
	for _, p := range plans {
		c.byNumber[p.Number] = p
	}
	return c
}

// Plan returns the stored record for a plan number, or nil
func (c *Catalog) Plan(planNumber int) *models.PaymentPlan {
	return c.byNumber[planNumber]
}

// YearlyPrice returns the stored yearly price, falling back to the legacy
// table when no record exists. Unknown numbers cost nothing.
func (c *Catalog) YearlyPrice(planNumber int) decimal.Decimal {
	if p, ok := c.byNumber[planNumber]; ok {
		return p.YearlyPrice
	}
	price, _ := LegacyYearlyPrice(planNumber)
	return price
}

// MonthlyPrice is the yearly price divided by twelve, rounded to cents.
func (c *Catalog) MonthlyPrice(planNumber int) decimal.Decimal {
	if p, ok := c.byNumber[planNumber]; ok {
		return p.MonthlyPrice()
	}
	return c.YearlyPrice(planNumber).Div(decimal.NewFromInt(12)).Round(2)
}
