// Package main is the entry point for the TradeWire notification consumer.
// It runs as an independent process draining the notification queue with
// manual acknowledgment: processed messages are acked, failures are requeued.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantfold/tradewire/internal/config"
	"github.com/quantfold/tradewire/internal/notify"
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

	log.Info().Msg("Starting TradeWire notification consumer")

	// Unlike the server, the consumer is useless without a broker
	topology := notify.Topology{Exchange: cfg.Exchange, Queue: cfg.Queue}
	brokerConn, err := notify.Dial(cfg.AMQPURL, topology, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to broker")
	}
	defer brokerConn.Close()

	// The handler side effect here is structured logging. Redelivery after
	// a requeue means any real downstream effect must be idempotent;
	// logging the same trade twice is harmless.
	handlerLog := log.With().Str("component", "notification_handler").Logger()
	handler := func(msg notify.Message) error {
		handlerLog.Info().
			Int64("trade_id", msg.ID).
			Str("symbol", msg.Symbol).
			Str("trade_type", msg.TradeType).
			Int64("quantity", msg.Quantity).
			Float64("price", msg.Price).
			Float64("total_value", msg.TotalValue).
			Str("user_id", msg.UserID).
			Str("status", msg.Status).
			Str("executed_at", msg.ExecutedAt).
			Str("published_at", msg.PublishedAt).
			Msg("Trade notification received")
		return nil
	}

	consumer := notify.NewConsumer(brokerConn, handler, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		sig := <-stop
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	if err := consumer.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Consumer stopped with error")
	}

	log.Info().Msg("TradeWire notification consumer stopped")
}
