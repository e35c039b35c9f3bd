package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/config"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

// SeedResult counts what ApplySeed wrote
type SeedResult struct {
	Owner        *models.User
	PlansCreated int
	PlansKept    int
}

// ApplySeed creates the seed's owner and any missing plans, and saves the
// cycle and automation settings. Existing plans keep their stored price so
// re-applying a seed never reprices a running ledger.
func (s *Service) ApplySeed(ctx context.Context, seed *config.Seed) (*SeedResult, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}

	owner, err := s.seedOwner(ctx, seed.Owner)
	if err != nil {
		return nil, err
	}
	res := &SeedResult{Owner: owner}

	for _, p := range seed.Plans {
		_, err := s.Plans.Create(ctx, &models.PaymentPlan{
			OwnerID:     owner.ID,
			Number:      p.Number,
			Name:        p.Name,
			YearlyPrice: p.YearlyPrice,
		})
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			res.PlansKept++
		case err != nil:
			return nil, fmt.Errorf("failed to create plan %d: %w", p.Number, err)
		default:
			res.PlansCreated++
		}
	}

	if seed.Cycle != nil {
		cfg := *seed.Cycle
		cfg.OwnerID = owner.ID
		if err := s.Settings.SaveCycleConfig(ctx, &cfg); err != nil {
			return nil, fmt.Errorf("failed to save cycle config: %w", err)
		}
	}
	if seed.Automation != nil {
		settings := *seed.Automation
		settings.OwnerID = owner.ID
		if err := s.Settings.SaveAutomationSettings(ctx, &settings); err != nil {
			return nil, fmt.Errorf("failed to save automation settings: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"owner_id":      owner.ID,
		"plans_created": res.PlansCreated,
		"plans_kept":    res.PlansKept,
	}).Info("Seed applied")
	return res, nil
}

func (s *Service) seedOwner(ctx context.Context, o config.SeedOwner) (*models.User, error) {
	if o.TelegramID == nil {
		return s.EnsureOwner(ctx, o.Email, o.FirstName, o.LastName)
	}

	user, err := s.Users.GetByTelegramID(ctx, *o.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user (telegram_id=%d): %w", *o.TelegramID, err)
	}
	if user != nil {
		if !strings.EqualFold(user.Email, strings.TrimSpace(o.Email)) {
			return nil, &models.ValidationError{Field: "owner.telegram_id", Message: fmt.Sprintf("already belongs to %s", user.Email)}
		}
		return user, nil
	}

	user, err = s.Users.Create(ctx, &models.User{
		Email:      strings.ToLower(strings.TrimSpace(o.Email)),
		FirstName:  strings.TrimSpace(o.FirstName),
		LastName:   strings.TrimSpace(o.LastName),
		TelegramID: o.TelegramID,
		IsActive:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", o.Email, err)
	}
	s.logger.Infof("Created new owner: %s", user.DisplayName())
	return user, nil
}
