package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/hebrew"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/service"
	"github.com/Kerhoff/kasa/internal/telegram"
)

// ---------------------------------------------------------------------------
// RunHandler – /run <job>
// ---------------------------------------------------------------------------

// RunHandler triggers an automation job by hand.
type RunHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(svc *service.Service, logger *logrus.Logger) *RunHandler {
	return &RunHandler{svc: svc, logger: logger}
}

// Handle processes the /run command.
func (h *RunHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		reply(bot, message, "❌ Usage: `/run <daily|monthly|cycle|recurring|wedding|bar-mitzvah>`")
		return nil
	}
	ctx := context.Background()

	if _, err := h.svc.OwnerByTelegramID(ctx, message.From.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			reply(bot, message, "🔒 This command is for administrators.")
			return nil
		}
		return fmt.Errorf("lookup owner: %w", err)
	}

	summaries, err := h.svc.RunNamed(ctx, args[0])
	if models.IsValidation(err) {
		reply(bot, message, "❌ "+err.Error())
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚙️ *Ran %s*\n\n", args[0]))
	if len(summaries) == 0 {
		sb.WriteString("_Nothing to run._\n")
	}
	for _, sum := range summaries {
		if sum.Disabled {
			sb.WriteString(fmt.Sprintf("• %s: disabled\n", sum.Job))
			continue
		}
		sb.WriteString(fmt.Sprintf("• %s: %d done, %d skipped, %d failed\n",
			sum.Job, sum.Succeeded(), sum.Skipped(), sum.Failed()))
	}
	if err != nil {
		sb.WriteString("\n⚠️ Some owners failed; see the logs.")
	}
	reply(bot, message, sb.String())

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"job":     args[0],
	}).Info("Manual automation run")
	return nil
}

// ---------------------------------------------------------------------------
// HebrewDateHandler – /hebrew <YYYY-MM-DD>
// ---------------------------------------------------------------------------

// HebrewDateHandler converts a Gregorian date to the Hebrew calendar.
type HebrewDateHandler struct {
	logger *logrus.Logger
}

// NewHebrewDateHandler creates a new HebrewDateHandler.
func NewHebrewDateHandler(logger *logrus.Logger) *HebrewDateHandler {
	return &HebrewDateHandler{logger: logger}
}

// Handle processes the /hebrew command.
func (h *HebrewDateHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		reply(bot, message, "❌ Usage: `/hebrew <YYYY-MM-DD>`")
		return nil
	}
	day, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		reply(bot, message, "❌ Date must look like `2011-05-01`.")
		return nil
	}

	d, err := hebrew.FromGregorian(day)
	if err != nil {
		reply(bot, message, "❌ "+err.Error())
		return nil
	}

	text := fmt.Sprintf("📅 %s is *%s*", day.Format("January 2, 2006"), d)
	if bm, ok := hebrew.BarMitzvahDate(d); ok {
		text += fmt.Sprintf("\nBorn that day, bar mitzvah is on %s.", bm.Format("January 2, 2006"))
	}
	reply(bot, message, text)
	return nil
}
