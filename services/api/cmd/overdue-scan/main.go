// Command overdue-scan runs a single overdue sweep and exits. It is meant to be
// started by cron or a Kubernetes CronJob when the API runs without its own
// scan interval.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/cimillas/bookloan/services/api/internal/app"
	"github.com/cimillas/bookloan/services/api/internal/clock"
	"github.com/cimillas/bookloan/services/api/internal/config"
	"github.com/cimillas/bookloan/services/api/internal/notify"
	"github.com/cimillas/bookloan/services/api/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load(slog.Default())
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect to db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	db, err := sqlx.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("open query db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	scanner := app.NewOverdueScanner(
		postgres.NewBorrowQuery(db),
		postgres.NewTitleRepository(pool),
		notify.New(cfg.TelegramBotToken, cfg.TelegramChatID, logger),
		clock.NewSystem(),
		app.WithScannerLogger(logger),
	)
	report, err := scanner.Sweep(ctx)
	if err != nil {
		logger.Error("overdue sweep", "error", err)
		os.Exit(1)
	}
	logger.Info("overdue sweep finished",
		"day", report.Day.Format(time.DateOnly),
		"overdue", report.Overdue,
		"notified", report.Notified,
		"failed", report.Failed,
	)
	if report.Failed > 0 {
		os.Exit(2)
	}
}
