// Package main is the entry point for the TradeWire API server. It executes
// trade orders, persists them to the ledger database, and publishes a
// notification per executed trade to the message broker.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quantfold/tradewire/internal/config"
	"github.com/quantfold/tradewire/internal/database"
	"github.com/quantfold/tradewire/internal/modules/trading"
	tradinghandlers "github.com/quantfold/tradewire/internal/modules/trading/handlers"
	"github.com/quantfold/tradewire/internal/notify"
	"github.com/quantfold/tradewire/internal/scheduler"
	"github.com/quantfold/tradewire/internal/server"
	"github.com/quantfold/tradewire/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting TradeWire server")

	// Ledger profile: full fsync on every write, append-only
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	if err := ledgerDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate ledger database")
	}

	// The broker is optional at startup: trade execution must not block on
	// broker availability. When the connection fails we substitute the
	// no-op publisher and keep serving requests.
	var publisher trading.NotificationPublisher
	topology := notify.Topology{Exchange: cfg.Exchange, Queue: cfg.Queue}
	brokerConn, err := notify.Dial(cfg.AMQPURL, topology, log)
	if err != nil {
		log.Error().Err(err).Msg("Broker unreachable, falling back to no-op publisher")
		publisher = notify.NewNoopPublisher(log)
	} else {
		defer brokerConn.Close()
		publisher = notify.NewPublisher(brokerConn, log)
		log.Info().Str("exchange", cfg.Exchange).Str("queue", cfg.Queue).Msg("Broker connected")
	}

	tradeRepo := trading.NewTradeRepository(ledgerDB.Conn(), log)
	executionService := trading.NewExecutionService(tradeRepo, publisher, log)
	handlers := tradinghandlers.NewTradingHandlers(executionService, log)

	srv := server.New(server.Config{
		Log:             log,
		LedgerDB:        ledgerDB,
		Config:          cfg,
		TradingHandlers: handlers,
	})

	sched := scheduler.New(log)
	if err := sched.AddJob("@hourly", scheduler.NewWALCheckpointJob(ledgerDB, log)); err != nil {
		log.Error().Err(err).Msg("Failed to register WAL checkpoint job")
	}
	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("TradeWire server stopped")
}
