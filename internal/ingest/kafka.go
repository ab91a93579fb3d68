package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"ncreceiver/internal/config"
	"ncreceiver/internal/model"
	"ncreceiver/internal/relay"
)

// StartKafka consumes one XML notification per message and relays it to the
// configured destination. Failed messages are logged by the relay and skipped.
func StartKafka(ctx context.Context, cfg config.KafkaConfig, processor Processor, logger *slog.Logger) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	dest, ok := model.ParseDestination(cfg.Destination)
	if !ok {
		if logger != nil {
			logger.Error("kafka ingest destination invalid", "destination", cfg.Destination)
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", cfg.Brokers, "topic", cfg.Topic, "group_id", cfg.GroupID, "destination", dest)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				if !BackoffSleep(ctx, time.Second) {
					return
				}
				continue
			}
			_, _ = processor.Process(ctx, relay.Request{
				ID:          uuid.NewString(),
				Source:      "kafka",
				Destination: dest,
				Body:        m.Value,
			})
		}
	}()
}
