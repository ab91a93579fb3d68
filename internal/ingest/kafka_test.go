package ingest

import (
	"context"
	"testing"
	"time"

	"ncreceiver/internal/config"
	"ncreceiver/internal/model"
	"ncreceiver/internal/relay"
)

type countingProcessor struct{ calls int }

func (c *countingProcessor) Process(context.Context, relay.Request) (model.DeliveryReceipt, error) {
	c.calls++
	return model.DeliveryReceipt{}, nil
}

func (c *countingProcessor) Reject(relay.Request, error) error { return nil }

func TestStartKafkaSkipsWhenDisabledOrInvalid(t *testing.T) {
	p := &countingProcessor{}
	StartKafka(context.Background(), config.KafkaConfig{}, p, nil)
	StartKafka(context.Background(), config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "nc", GroupID: "g", Destination: "slack"}, p, nil)
	if p.calls != 0 {
		t.Fatalf("processor should not be called, got %d", p.calls)
	}
}

func TestBackoffSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if BackoffSleep(ctx, time.Minute) {
		t.Fatalf("expected false on cancelled context")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleep did not return promptly")
	}
}
