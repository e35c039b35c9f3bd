package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/gateway"
	"github.com/Kerhoff/kasa/internal/metrics"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/plans"
	"github.com/Kerhoff/kasa/internal/repository"
)

// DefaultWorkers is the batch job concurrency when none is configured
const DefaultWorkers = 4

// Deps are the collaborators of the Service. Zero values fall back to the
// system clock, the offline gateway, a logging notifier and no metrics.
type Deps struct {
	Clock      clock.Clock
	Gateway    gateway.Gateway
	Notifier   notify.Notifier
	Metrics    *metrics.Metrics
	Workers    int
	EventTypes []models.LifecycleEventTypeConfig
}

// Service is the central business logic layer. It holds all repositories
// and runs the ledger operations and automation jobs on top of them.
type Service struct {
	*repository.Store

	logger     *logrus.Logger
	clock      clock.Clock
	gateway    gateway.Gateway
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	workers    int
	eventTypes map[models.LifecycleEventType]models.LifecycleEventTypeConfig
}

// New creates a new Service with all required dependencies.
func New(store *repository.Store, logger *logrus.Logger, deps Deps) *Service {
	s := &Service{
		Store:    store,
		logger:   logger,
		clock:    deps.Clock,
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		workers:  deps.Workers,
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.gateway == nil {
		s.gateway = gateway.WithTimeout(gateway.NewOffline(logger), gateway.DefaultTimeout)
	}
	if s.notifier == nil {
		s.notifier = notify.NewLog(logger)
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}

	types := deps.EventTypes
	if len(types) == 0 {
		types = models.DefaultLifecycleEventTypes()
	}
	s.eventTypes = make(map[models.LifecycleEventType]models.LifecycleEventTypeConfig, len(types))
	for _, t := range types {
		s.eventTypes[t.Type] = t
	}
	return s
}

// Clock returns the clock the service reads the current date from
func (s *Service) Clock() clock.Clock {
	return s.clock
}

// OwnerByTelegramID resolves the administrator behind a Telegram account.
func (s *Service) OwnerByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.Users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user (telegram_id=%d): %w", telegramID, err)
	}
	if user == nil || !user.IsActive {
		return nil, fmt.Errorf("user with telegram_id=%d: %w", telegramID, models.ErrNotFound)
	}
	return user, nil
}

// EnsureOwner returns the active user with the given email, creating it if
// it does not exist yet.
func (s *Service) EnsureOwner(ctx context.Context, email, firstName, lastName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, &models.ValidationError{Field: "email", Message: "is required"}
	}

	users, err := s.Users.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}

	user, err := s.Users.Create(ctx, &models.User{
		Email:     email,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		IsActive:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", email, err)
	}
	s.logger.Infof("Created new owner: %s", user.DisplayName())
	return user, nil
}

// Catalog returns the plan catalog of an owner
func (s *Service) Catalog(ctx context.Context, ownerID int64) (*plans.Catalog, error) {
	records, err := s.Plans.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans for owner %d: %w", ownerID, err)
	}
	return plans.NewCatalog(records), nil
}

// AutomationSettings returns the owner's automation toggles, defaulting to
// all jobs enabled when none were saved.
func (s *Service) AutomationSettings(ctx context.Context, ownerID int64) (*models.AutomationSettings, error) {
	settings, err := s.Settings.GetAutomationSettings(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get automation settings for owner %d: %w", ownerID, err)
	}
	if settings == nil {
		return models.DefaultAutomationSettings(ownerID), nil
	}
	return settings, nil
}

// EventType returns the configured event type, or false if it is unknown
func (s *Service) EventType(t models.LifecycleEventType) (models.LifecycleEventTypeConfig, bool) {
	cfg, ok := s.eventTypes[t]
	return cfg, ok
}

func (s *Service) family(ctx context.Context, id int64) (*models.Family, error) {
	family, err := s.Families.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get family %d: %w", id, err)
	}
	if family == nil {
		return nil, fmt.Errorf("family %d: %w", id, models.ErrNotFound)
	}
	return family, nil
}

func (s *Service) member(ctx context.Context, id int64) (*models.Member, error) {
	member, err := s.Members.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get member %d: %w", id, err)
	}
	if member == nil {
		return nil, fmt.Errorf("member %d: %w", id, models.ErrNotFound)
	}
	return member, nil
}

func (s *Service) notify(ctx context.Context, event notify.Event, payload notify.Payload) {
	notify.Send(ctx, s.notifier, s.logger, event, payload)
}
