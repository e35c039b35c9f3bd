// Package memory is an in-process implementation of the repositories. It
// backs the tests and the offline demo mode.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

type state struct {
	users       map[int64]models.User
	families    map[int64]models.Family
	members     map[int64]models.Member
	plans       map[int64]models.PaymentPlan
	payments    map[int64]models.Payment
	refunds     map[int64]models.RefundEntry
	withdrawals map[int64]models.Withdrawal
	events      map[int64]models.LifecycleEvent
	charges     map[int64]models.PlanCharge
	statements  map[int64]models.Statement
	enrollments map[int64]models.RecurringEnrollment
	cycles      map[int64]models.CycleConfig
	automation  map[int64]models.AutomationSettings
	nextID      int64
}

func newState() state {
	return state{
		users:       make(map[int64]models.User),
		families:    make(map[int64]models.Family),
		members:     make(map[int64]models.Member),
		plans:       make(map[int64]models.PaymentPlan),
		payments:    make(map[int64]models.Payment),
		refunds:     make(map[int64]models.RefundEntry),
		withdrawals: make(map[int64]models.Withdrawal),
		events:      make(map[int64]models.LifecycleEvent),
		charges:     make(map[int64]models.PlanCharge),
		statements:  make(map[int64]models.Statement),
		enrollments: make(map[int64]models.RecurringEnrollment),
		cycles:      make(map[int64]models.CycleConfig),
		automation:  make(map[int64]models.AutomationSettings),
	}
}

// Store keeps every record in memory behind a single lock. Transactions are
// serialized with each other and roll back by undoing only their own writes,
// so writes made outside a transaction survive its rollback.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data state
	now  func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

// Repositories returns the repository bundle backed by this store
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Tx:          s,
		Users:       &userRepository{s},
		Families:    &familyRepository{s},
		Members:     &memberRepository{s},
		Plans:       &planRepository{s},
		Payments:    &paymentRepository{s},
		Withdrawals: &withdrawalRepository{s},
		Events:      &eventRepository{s},
		PlanCharges: &planChargeRepository{s},
		Statements:  &statementRepository{s},
		Enrollments: &enrollmentRepository{s},
		Settings:    &settingsRepository{s},
	}
}

type txKey struct{}

// txLog records how to undo each write of a transaction
type txLog struct {
	undo []func()
}

// WithinTx runs fn and undoes its writes if it returns an error.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &txLog{}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		s.mu.Lock()
		for i := len(log.undo) - 1; i >= 0; i-- {
			log.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// put stores v under key. Inside a transaction the previous value is
// remembered for rollback. mu must be held for writing.
func put[V any](ctx context.Context, m map[int64]V, key int64, v V) {
	if log, ok := ctx.Value(txKey{}).(*txLog); ok {
		old, existed := m[key]
		log.undo = append(log.undo, func() {
			if existed {
				m[key] = old
			} else {
				delete(m, key)
			}
		})
	}
	m[key] = v
}

// id must be called with mu held for writing.
func (s *Store) id() int64 {
	s.data.nextID++
	return s.data.nextID
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func notFound(kind string, id int64) error {
	return &notFoundError{kind: kind, id: id}
}

type notFoundError struct {
	kind string
	id   int64
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.kind, e.id)
}

func (e *notFoundError) Unwrap() error {
	return models.ErrNotFound
}
