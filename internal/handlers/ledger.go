package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/service"
	"github.com/Kerhoff/kasa/internal/telegram"
)

// reply sends a Markdown message to the chat the command came from
func reply(bot telegram.Sender, message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ownedFamily resolves the family named by arg, replying and returning nil
// when the sender is not an administrator or the family is not theirs.
func ownedFamily(ctx context.Context, svc *service.Service, bot telegram.Sender, message *tgbotapi.Message, arg string) (*models.Family, error) {
	owner, err := svc.OwnerByTelegramID(ctx, message.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		reply(bot, message, "🔒 This command is for administrators. Send /start to see your Telegram ID.")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		reply(bot, message, "❌ Family ID must be a number.")
		return nil, nil
	}
	family, err := svc.Families.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get family %d: %w", id, err)
	}
	if family == nil || family.OwnerID != owner.ID {
		reply(bot, message, fmt.Sprintf("❌ Family #%d not found.", id))
		return nil, nil
	}
	return family, nil
}

// ---------------------------------------------------------------------------
// BalanceHandler – /balance <family id>
// ---------------------------------------------------------------------------

// BalanceHandler shows the current balance of a family.
type BalanceHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(svc *service.Service, logger *logrus.Logger) *BalanceHandler {
	return &BalanceHandler{svc: svc, logger: logger}
}

// Handle processes the /balance command.
func (h *BalanceHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		reply(bot, message, "❌ Usage: `/balance <family id>`")
		return nil
	}
	ctx := context.Background()

	family, err := ownedFamily(ctx, h.svc, bot, message, args[0])
	if err != nil || family == nil {
		return err
	}

	b, err := h.svc.FamilyBalance(ctx, family.ID, time.Time{})
	if err != nil {
		return fmt.Errorf("compute balance: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💰 *%s* (#%d)\n\n", family.Name, family.ID))
	sb.WriteString(fmt.Sprintf("Payments: `%s`\n", money(b.TotalPayments)))
	if b.RefundedTotal.IsPositive() {
		sb.WriteString(fmt.Sprintf("Refunded: `%s`\n", money(b.RefundedTotal)))
	}
	if b.TotalWithdrawals.IsPositive() {
		sb.WriteString(fmt.Sprintf("Withdrawals: `%s`\n", money(b.TotalWithdrawals)))
	}
	sb.WriteString(fmt.Sprintf("Plan cost: `%s`\n", money(b.PlanCost)))
	sb.WriteString(fmt.Sprintf("\n*Balance:* `%s`", money(b.Balance)))
	if b.TotalLifecyclePayments.IsPositive() {
		sb.WriteString(fmt.Sprintf("\n_Lifecycle events (not in balance): %s_", money(b.TotalLifecyclePayments)))
	}

	roster, err := h.svc.FamilyRoster(ctx, family.ID, time.Time{})
	if err != nil {
		return fmt.Errorf("compute member balances: %w", err)
	}
	if len(roster) > 0 {
		sb.WriteString("\n\n*Members:*")
		for _, r := range roster {
			sb.WriteString(fmt.Sprintf("\n• %s (#%d): `%s`", r.Member.FullName(), r.Member.ID, money(r.Balance.Balance)))
		}
	}
	reply(bot, message, sb.String())

	h.logger.WithFields(logrus.Fields{
		"chat_id":   message.Chat.ID,
		"family_id": family.ID,
	}).Info("Sent balance")
	return nil
}

// ---------------------------------------------------------------------------
// StatementHandler – /statement <family id> <YYYY-MM>
// ---------------------------------------------------------------------------

// StatementHandler previews a family's statement for one calendar month.
// Nothing is stored; issuing is left to the monthly automation.
type StatementHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStatementHandler creates a new StatementHandler.
func NewStatementHandler(svc *service.Service, logger *logrus.Logger) *StatementHandler {
	return &StatementHandler{svc: svc, logger: logger}
}

// Handle processes the /statement command.
func (h *StatementHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 2 {
		reply(bot, message, "❌ Usage: `/statement <family id> <YYYY-MM>`")
		return nil
	}
	month, err := time.Parse("2006-01", args[1])
	if err != nil {
		reply(bot, message, "❌ Month must look like `2024-05`.")
		return nil
	}
	ctx := context.Background()

	family, err := ownedFamily(ctx, h.svc, bot, message, args[0])
	if err != nil || family == nil {
		return err
	}

	st, err := h.svc.PreviewStatement(ctx, family.ID, month, month.AddDate(0, 1, 0))
	if err != nil {
		return fmt.Errorf("preview statement: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📄 *%s* — %s\n\n", family.Name, month.Format("January 2006")))
	sb.WriteString(fmt.Sprintf("Opening balance: `%s`\n", money(st.OpeningBalance)))
	sb.WriteString(fmt.Sprintf("Income: `%s`\n", money(st.Income)))
	sb.WriteString(fmt.Sprintf("Withdrawals: `%s`\n", money(st.Withdrawals)))
	sb.WriteString(fmt.Sprintf("Expenses: `%s`\n", money(st.Expenses)))
	sb.WriteString(fmt.Sprintf("*Closing balance:* `%s`\n", money(st.ClosingBalance)))

	if len(st.LineItems) > 0 {
		sb.WriteString("\n")
		for _, item := range st.LineItems {
			line := fmt.Sprintf("%s %s `%s`", item.Date.Format("01/02"), item.Description, money(item.Amount))
			if item.Informational {
				line = "_" + line + "_"
			}
			sb.WriteString("• " + line + "\n")
		}
	}
	reply(bot, message, sb.String())

	h.logger.WithFields(logrus.Fields{
		"chat_id":   message.Chat.ID,
		"family_id": family.ID,
		"month":     args[1],
	}).Info("Sent statement preview")
	return nil
}
