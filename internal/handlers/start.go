package handlers

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/service"
	"github.com/Kerhoff/kasa/internal/telegram"
)

// StartHandler handles the /start command
type StartHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, logger *logrus.Logger) *StartHandler {
	return &StartHandler{svc: svc, logger: logger}
}

// Handle greets a known administrator and tells anyone else their
// Telegram ID so it can be added to the seed file.
func (h *StartHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	owner, err := h.svc.OwnerByTelegramID(context.Background(), message.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		reply(bot, message, fmt.Sprintf(
			"👋 *Welcome to Kasa!*\n\nThis bot is for administrators. Your Telegram ID is `%d`; add it to the owner section of the seed file to get access.",
			message.From.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup owner: %w", err)
	}

	reply(bot, message, fmt.Sprintf(
		"👋 *Welcome back, %s!*\n\nUse /balance, /statement, /run and /hebrew to work with the ledger. /help lists the details.",
		owner.DisplayName()))

	h.logger.WithFields(logrus.Fields{
		"chat_id":  message.Chat.ID,
		"owner_id": owner.ID,
	}).Info("Sent start message")
	return nil
}
