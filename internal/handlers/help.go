package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/telegram"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

const helpText = `📚 *Kasa Help*

*Ledger:*
• /balance <family id> - Current family balance
• /statement <family id> <YYYY-MM> - Preview the statement for a month

*Automations:*
• /run daily - Cycle rollover, weddings, recurring charges, bar mitzvah check
• /run monthly - Statements for last month
• /run <cycle|recurring|wedding|bar-mitzvah> - One job

*Calendar:*
• /hebrew <YYYY-MM-DD> - Hebrew date and bar mitzvah date

_Manual runs ignore the automation settings and are safe to repeat._`

func (h *HelpHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	reply(bot, message, helpText)

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
	}).Info("Sent help message")
	return nil
}
