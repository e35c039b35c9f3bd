package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/kasa/internal/api"
	"github.com/Kerhoff/kasa/internal/handlers"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var inMemory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and the automation scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), inMemory)
		},
	}

	cmd.Flags().BoolVar(&inMemory, "memory", false, "keep the ledger in memory instead of PostgreSQL")

	return cmd
}

func runServe(parent context.Context, inMemory bool) error {
	a, err := openApp(inMemory)
	if err != nil {
		return err
	}
	defer a.Close()
	l := a.logger
	l.Info("Starting Kasa...")

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Telegram bot
	var bot *telegram.Bot
	var adminNotifier notify.Notifier
	if a.cfg.TelegramToken != "" {
		if bot, err = telegram.NewBot(a.cfg.TelegramToken, a.cfg.TelegramTimeout, l); err != nil {
			return err
		}
		if a.cfg.TelegramAdminChatID != 0 {
			adminNotifier = notify.Filter{
				Next:   telegram.NewNotifier(bot.API(), a.cfg.TelegramAdminChatID, a.cfg.TelegramTimeout),
				Events: telegram.AdminEvents,
			}
		}
	} else {
		l.Warn("TELEGRAM_TOKEN is not set; the bot is disabled")
	}

	svc := a.service(adminNotifier)
	if err := a.applySeed(ctx, svc); err != nil {
		return err
	}

	if bot != nil {
		bot.RegisterCommand("start", handlers.NewStartHandler(svc, l))
		bot.RegisterCommand("help", handlers.NewHelpHandler(l))
		bot.RegisterCommand("balance", handlers.NewBalanceHandler(svc, l))
		bot.RegisterCommand("statement", handlers.NewStatementHandler(svc, l))
		bot.RegisterCommand("run", handlers.NewRunHandler(svc, l))
		bot.RegisterCommand("hebrew", handlers.NewHebrewDateHandler(l))

		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	}

	// Automation scheduler
	go svc.StartAutomationScheduler(ctx, a.cfg.SchedulerInterval)

	// HTTP API
	apiServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           api.NewServer(svc, l).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              ":" + a.cfg.PrometheusPort,
		Handler:           a.metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	for _, srv := range []*http.Server{apiServer, metricsServer} {
		go func(srv *http.Server) {
			l.Infof("HTTP server listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Errorf("HTTP server error on %s: %v", srv.Addr, err)
				cancel()
			}
		}(srv)
	}

	l.Info("Kasa started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP servers...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	apiServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	l.Info("Kasa stopped")
	return nil
}
