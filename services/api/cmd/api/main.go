package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/cimillas/bookloan/services/api/internal/app"
	"github.com/cimillas/bookloan/services/api/internal/clock"
	"github.com/cimillas/bookloan/services/api/internal/config"
	"github.com/cimillas/bookloan/services/api/internal/notify"
	"github.com/cimillas/bookloan/services/api/internal/payment"
	"github.com/cimillas/bookloan/services/api/internal/storage/postgres"
	transporthttp "github.com/cimillas/bookloan/services/api/internal/transport/http"
	"github.com/cimillas/bookloan/services/api/migrations"
)

func main() {
	cfg, err := config.Load(slog.Default())
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect to db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Error("db ping", "error", err)
		os.Exit(1)
	}
	applied, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		logger.Error("apply migrations", "error", err)
		os.Exit(1)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "names", applied)
	}

	db, err := sqlx.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("open query db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	clk := clock.NewSystem()
	notifier := notify.New(cfg.TelegramBotToken, cfg.TelegramChatID, logger)

	titles := postgres.NewTitleRepository(pool)
	query := postgres.NewBorrowQuery(db)
	catalog := app.NewCatalogService(titles, clk)
	payments := app.NewPaymentService(
		postgres.NewPaymentRepository(pool),
		titles,
		newGateway(cfg, logger),
		clk,
		app.WithPaymentLogger(logger),
	)
	borrows := app.NewBorrowService(
		postgres.NewBorrowRepository(pool),
		app.NewInventoryLedger(titles),
		titles,
		query,
		payments,
		clk,
		app.WithBorrowLogger(logger),
		app.WithBorrowNotifier(notifier),
	)
	scanner := app.NewOverdueScanner(query, titles, notifier, clk, app.WithScannerLogger(logger))

	mux := http.NewServeMux()
	mux.Handle("/health", transporthttp.HealthHandler(pool))
	mux.Handle("/titles", transporthttp.HandleTitles(catalog))
	mux.Handle("/titles/", transporthttp.HandleTitle(catalog))
	mux.Handle("/borrows", transporthttp.HandleBorrows(borrows))
	mux.Handle("/borrows/", transporthttp.HandleBorrow(borrows, payments))
	mux.Handle("/payments", transporthttp.HandlePayments(payments))
	mux.Handle("/payments/", transporthttp.HandlePayment(payments))
	mux.Handle("/payments/success", transporthttp.HandlePaymentSuccess(payments))
	mux.Handle("/payments/success/", transporthttp.HandlePaymentSuccess(payments))
	mux.Handle("/payments/cancel", transporthttp.HandlePaymentCancel(payments))
	mux.Handle("/admin/overdue-scan", transporthttp.HandleOverdueScan(scanner))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OverdueScanInterval > 0 {
		go scanner.Run(stopCtx, cfg.OverdueScanInterval)
		logger.Info("overdue scanner started", "interval", cfg.OverdueScanInterval.String())
	}

	logger.Info("api listening", "port", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func newGateway(cfg config.Config, logger *slog.Logger) app.PaymentGateway {
	gw, err := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:  cfg.StripeSecretKey,
		Currency:   cfg.StripeCurrency,
		SuccessURL: cfg.PaymentSuccessURL,
		CancelURL:  cfg.PaymentCancelURL,
	})
	if err != nil {
		logger.Warn("payments disabled", "reason", err.Error())
		return payment.Unavailable{Reason: err.Error()}
	}
	return gw
}
