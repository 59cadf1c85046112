// Worker consumes lifecycle events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, LIFECYCLE_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"ewaste-tracker/backend/internal/config"
	"ewaste-tracker/backend/internal/logging"
	"ewaste-tracker/backend/internal/telemetry/loki"
)

const pushTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("worker: config", "error", err)
		os.Exit(1)
	}
	logging.Setup(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		slog.Error("worker: KAFKA_BROKERS is required")
		os.Exit(1)
	}
	client, err := loki.NewClient(cfg.LokiURL, nil)
	if err != nil {
		slog.Error("worker: LOKI_URL is required", "error", err)
		os.Exit(1)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.LifecycleKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("worker: consuming",
		"topic", cfg.LifecycleKafkaTopic,
		"group", cfg.KafkaGroupID,
		"loki", cfg.LokiURL)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("worker: stopped")
				return
			}
			slog.Warn("worker: kafka read error", "error", err)
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := client.PushEventJSON(pushCtx, msg.Value); err != nil {
			slog.Warn("worker: loki push failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
		cancel()
	}
}
