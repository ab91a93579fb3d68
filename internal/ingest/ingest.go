package ingest

import (
	"context"
	"time"

	"ncreceiver/internal/model"
	"ncreceiver/internal/relay"
)

// Processor runs one inbound notification through the relay pipeline.
// Reject records a request that never reached it.
type Processor interface {
	Process(ctx context.Context, req relay.Request) (model.DeliveryReceipt, error)
	Reject(req relay.Request, cause error) error
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
