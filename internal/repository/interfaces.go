package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/kasa/internal/models"
)

var (
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrConflict is returned when a guarded update found the row in an
	// unexpected state.
	ErrConflict = errors.New("repository: conflicting update")
)

// Transactor runs fn inside a transaction carried by ctx. Nested calls join
// the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the interface for owner account operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	ListActive(ctx context.Context) ([]*models.User, error)
}

// FamilyRepository defines the interface for family data operations
type FamilyRepository interface {
	// Create returns ErrDuplicate when another family already has the same
	// SourceMemberID.
	Create(ctx context.Context, family *models.Family) (*models.Family, error)
	GetByID(ctx context.Context, id int64) (*models.Family, error)
	GetBySourceMember(ctx context.Context, memberID int64) (*models.Family, error)
	ListByOwner(ctx context.Context, ownerID int64, filters FamilyFilters) ([]*models.Family, error)
	Update(ctx context.Context, family *models.Family) (*models.Family, error)
	// StampCycle moves last_cycle_applied_date from prev to next. It returns
	// ErrConflict when the stored value is no longer prev.
	StampCycle(ctx context.Context, familyID int64, prev *time.Time, next time.Time) error
}

// MemberRepository defines the interface for member data operations
type MemberRepository interface {
	// Create returns ErrDuplicate when a spouse already exists for the same
	// SpouseOfMemberID.
	Create(ctx context.Context, member *models.Member) (*models.Member, error)
	GetByID(ctx context.Context, id int64) (*models.Member, error)
	GetBySpouseOf(ctx context.Context, memberID int64) (*models.Member, error)
	// ListActiveByFamily returns the family's roster: members that were not
	// converted into a family of their own.
	ListActiveByFamily(ctx context.Context, familyID int64) ([]*models.Member, error)
	// ListWeddingDue returns unconverted members of the owner whose wedding
	// date is on or before today.
	ListWeddingDue(ctx context.Context, ownerID int64, today time.Time) ([]*models.Member, error)
	// ListWithBirthDate returns active members of the owner that have a
	// Gregorian birth date.
	ListWithBirthDate(ctx context.Context, ownerID int64) ([]*models.Member, error)
	// Update writes the member's own fields. Conversion state is left alone.
	Update(ctx context.Context, member *models.Member) (*models.Member, error)
	// UpdateBarMitzvah caches the Hebrew birth date, when given, and sets
	// bar_mitzvah_event_added when eventAdded. Other fields are untouched.
	UpdateBarMitzvah(ctx context.Context, memberID int64, hebrewBirthDate string, eventAdded bool) error
	// TransitionConversion moves the conversion state from one value to
	// another, returning ErrConflict if the member is not in state from.
	TransitionConversion(ctx context.Context, memberID int64, from, to models.ConversionState, convertedFamilyID *int64) error
}

// PaymentPlanRepository defines the interface for plan records
type PaymentPlanRepository interface {
	Create(ctx context.Context, plan *models.PaymentPlan) (*models.PaymentPlan, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.PaymentPlan, error)
}

// PaymentRepository defines the interface for payments and their refund
// sub-ledger. Reads return payments with their refund entries.
type PaymentRepository interface {
	// Create returns ErrDuplicate when the billing key is already used.
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	GetByBillingKey(ctx context.Context, billingKey string) (*models.Payment, error)
	ListByFamily(ctx context.Context, familyID int64) ([]*models.Payment, error)
	// ReserveRefund adds amount to refunded_amount only while the total
	// stays within the payment amount, and records a pending refund entry.
	// It returns ErrConflict when the reservation would over-refund.
	ReserveRefund(ctx context.Context, paymentID int64, entry *models.RefundEntry) (*models.RefundEntry, error)
	// CompleteRefund marks a pending entry succeeded.
	CompleteRefund(ctx context.Context, refundID int64, externalRefundID string) error
	// FailRefund marks a pending entry failed and releases its reservation.
	FailRefund(ctx context.Context, refundID int64) error
}

// WithdrawalRepository defines the interface for withdrawals
type WithdrawalRepository interface {
	Create(ctx context.Context, w *models.Withdrawal) (*models.Withdrawal, error)
	ListByFamily(ctx context.Context, familyID int64) ([]*models.Withdrawal, error)
}

// LifecycleEventRepository defines the interface for lifecycle events
type LifecycleEventRepository interface {
	// Create returns ErrDuplicate for a second event of the same type for the
	// same member.
	Create(ctx context.Context, e *models.LifecycleEvent) (*models.LifecycleEvent, error)
	ListByFamily(ctx context.Context, familyID int64) ([]*models.LifecycleEvent, error)
}

// PlanChargeRepository defines the interface for cycle plan charges
type PlanChargeRepository interface {
	// Create returns ErrDuplicate when the family already has a charge for
	// the cycle date.
	Create(ctx context.Context, c *models.PlanCharge) (*models.PlanCharge, error)
	ListByFamily(ctx context.Context, familyID int64) ([]*models.PlanCharge, error)
}

// StatementRepository defines the interface for issued statements
type StatementRepository interface {
	// Create returns ErrDuplicate when the sequence number or the period
	// start is already taken.
	Create(ctx context.Context, st *models.Statement) (*models.Statement, error)
	GetByID(ctx context.Context, id int64) (*models.Statement, error)
	// Latest returns the most recent statement of the family (memberID nil)
	// or member, or nil.
	Latest(ctx context.Context, familyID int64, memberID *int64) (*models.Statement, error)
	NextSequence(ctx context.Context, familyID int64, memberID *int64) (int, error)
	ListByFamily(ctx context.Context, familyID int64) ([]*models.Statement, error)
	ExistsFrom(ctx context.Context, familyID int64, from time.Time) (bool, error)
}

// EnrollmentRepository defines the interface for recurring billing
// enrollments
type EnrollmentRepository interface {
	Create(ctx context.Context, e *models.RecurringEnrollment) (*models.RecurringEnrollment, error)
	ListActiveByOwner(ctx context.Context, ownerID int64) ([]*models.RecurringEnrollment, error)
	MarkCharged(ctx context.Context, id int64, at time.Time) error
}

// SettingsRepository defines the interface for per-owner configuration
type SettingsRepository interface {
	GetCycleConfig(ctx context.Context, ownerID int64) (*models.CycleConfig, error)
	SaveCycleConfig(ctx context.Context, c *models.CycleConfig) error
	GetAutomationSettings(ctx context.Context, ownerID int64) (*models.AutomationSettings, error)
	SaveAutomationSettings(ctx context.Context, s *models.AutomationSettings) error
}

// FamilyFilters represents filters for querying families
type FamilyFilters struct {
	IncludeArchived bool
	Limit           int
	Offset          int
}

// Store bundles every repository together with the transactor that spans
// them.
type Store struct {
	Tx          Transactor
	Users       UserRepository
	Families    FamilyRepository
	Members     MemberRepository
	Plans       PaymentPlanRepository
	Payments    PaymentRepository
	Withdrawals WithdrawalRepository
	Events      LifecycleEventRepository
	PlanCharges PlanChargeRepository
	Statements  StatementRepository
	Enrollments EnrollmentRepository
	Settings    SettingsRepository
}

// RefundWithinBound reports whether adding amount keeps refunded within
// the payment amount.
func RefundWithinBound(amount, refunded, add decimal.Decimal) bool {
	return add.IsPositive() && refunded.Add(add).LessThanOrEqual(amount)
}
