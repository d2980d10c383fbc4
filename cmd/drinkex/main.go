package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/lcarva/drinkex/internal/config"
	"github.com/lcarva/drinkex/internal/domain"
	"github.com/lcarva/drinkex/internal/exchange"
	"github.com/lcarva/drinkex/internal/handler"
	"github.com/lcarva/drinkex/internal/recorder"
	"github.com/lcarva/drinkex/internal/scheduler"
	"github.com/lcarva/drinkex/internal/service"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Build the engine and populate it from the seed file.
	ex := exchange.New(cfg.Fee, cfg.MaxUndoDepth)
	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		logger.Error("failed to load seed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, sd := range seed.Drinks {
		d := domain.NewDrink(
			sd.Name,
			decimal.NewFromFloat(sd.Price),
			decimal.NewFromFloat(sd.BasePrice),
			sd.HalfLife,
			decimal.NewFromFloat(sd.Impulse),
		)
		if err := ex.AddDrink(d); err != nil {
			logger.Error("failed to add drink", slog.String("drink", sd.Name), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	for _, name := range seed.Users {
		if err := ex.AddUser(name); err != nil {
			logger.Error("failed to add user", slog.String("user", name), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	logger.Info("exchange seeded",
		slog.Int("drinks", len(seed.Drinks)),
		slog.Int("users", len(seed.Users)),
		slog.String("fee", cfg.Fee.String()),
	)

	// Audit recorder: sqlite when configured, no-op otherwise.
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.AuditDB != "" {
		sqlRec, err := recorder.NewSQLiteRecorder(cfg.AuditDB)
		if err != nil {
			logger.Error("failed to open audit db", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sqlRec.Close()
		rec = sqlRec
		logger.Info("audit recorder opened", slog.String("path", cfg.AuditDB))
	}

	svc := service.NewExchangeService(ex, rec)

	// Optional wall-clock auto-tick.
	if cfg.TickCron != "" {
		ticker, err := scheduler.NewTicker(ex, cfg.TickCron, cfg.TickMinutes, logger)
		if err != nil {
			logger.Error("failed to start auto-tick", slog.String("error", err.Error()))
			os.Exit(1)
		}
		ticker.Start()
		defer ticker.Stop()
	}

	// Router.
	router := handler.NewRouter(svc, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
