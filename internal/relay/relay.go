package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ncreceiver/internal/dispatch"
	"ncreceiver/internal/metrics"
	"ncreceiver/internal/model"
	"ncreceiver/internal/normalize"
	"ncreceiver/internal/outcomes"
	"ncreceiver/internal/render"
)

// ErrBodyUnreadable marks a request whose body could not be read in full.
var ErrBodyUnreadable = errors.New("request body unreadable")

// Sender delivers a rendered message to its destination webhook.
type Sender interface {
	Send(ctx context.Context, msg render.Message) (model.DeliveryReceipt, error)
}

// Error tags a relay failure with the pipeline stage that produced it.
type Error struct {
	Stage model.Stage
	Err   error
}

func (e *Error) Error() string { return string(e.Stage) + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

type Request struct {
	ID          string
	Source      string
	Destination model.Destination
	Body        []byte
}

type Relay struct {
	renderer *render.Renderer
	sender   Sender
	loc      *time.Location
	metrics  *metrics.Store
	outcomes *outcomes.Store
	logger   *slog.Logger
}

func New(renderer *render.Renderer, sender Sender, loc *time.Location, metricsStore *metrics.Store, outcomeStore *outcomes.Store, logger *slog.Logger) *Relay {
	if loc == nil {
		loc = time.UTC
	}
	return &Relay{
		renderer: renderer,
		sender:   sender,
		loc:      loc,
		metrics:  metricsStore,
		outcomes: outcomeStore,
		logger:   logger,
	}
}

// Process normalizes req.Body, renders it for req.Destination and performs
// one delivery attempt. Failures are logged here; callers only map them to
// a response.
func (r *Relay) Process(ctx context.Context, req Request) (model.DeliveryReceipt, error) {
	receipt, err := r.process(ctx, req)
	r.record(req, receipt, err)
	return receipt, err
}

// Reject records a request that failed before its body reached the
// pipeline. cause is wrapped with ErrBodyUnreadable.
func (r *Relay) Reject(req Request, cause error) error {
	err := &Error{Stage: model.StageReceive, Err: fmt.Errorf("%w: %v", ErrBodyUnreadable, cause)}
	r.record(req, model.DeliveryReceipt{}, err)
	return err
}

func (r *Relay) record(req Request, receipt model.DeliveryReceipt, err error) {
	outcome := model.DeliveryOutcome{
		Timestamp:   time.Now().UTC(),
		RequestID:   req.ID,
		Source:      req.Source,
		Destination: req.Destination,
		Success:     err == nil,
		StatusCode:  receipt.StatusCode,
	}
	if err != nil {
		var re *Error
		if errors.As(err, &re) {
			outcome.Stage = re.Stage
		}
		outcome.Error = errorClass(err)
		var de *dispatch.DeliveryError
		if errors.As(err, &de) {
			outcome.StatusCode = de.StatusCode
		}
		if r.logger != nil {
			r.logger.Error("relay failed",
				"request_id", req.ID,
				"source", req.Source,
				"destination", req.Destination,
				"stage", outcome.Stage,
				"err", err,
			)
		}
	} else if r.logger != nil {
		r.logger.Info("notification relayed",
			"request_id", req.ID,
			"source", req.Source,
			"destination", req.Destination,
			"status", receipt.StatusCode,
		)
	}
	if r.metrics != nil {
		r.metrics.Record(outcome)
	}
	if r.outcomes != nil {
		r.outcomes.Add(outcome)
	}
}

func (r *Relay) process(ctx context.Context, req Request) (model.DeliveryReceipt, error) {
	rec, err := normalize.Normalize(req.Body, r.loc)
	if err != nil {
		return model.DeliveryReceipt{}, &Error{Stage: model.StageNormalize, Err: err}
	}
	msg, err := r.renderer.Render(rec, req.Destination)
	if err != nil {
		return model.DeliveryReceipt{}, &Error{Stage: model.StageRender, Err: err}
	}
	receipt, err := r.sender.Send(ctx, msg)
	if err != nil {
		return model.DeliveryReceipt{}, &Error{Stage: model.StageDeliver, Err: err}
	}
	return receipt, nil
}

// errorClass names the failure kind without leaking payload content.
func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrBodyUnreadable):
		return "body_unreadable"
	case errors.Is(err, normalize.ErrMalformedXML):
		return "malformed_xml"
	case errors.Is(err, normalize.ErrUnrecognizedNotificationType):
		return "unrecognized_notification_type"
	case errors.Is(err, normalize.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, render.ErrUnsupportedNotificationType):
		return "unsupported_notification_type"
	case errors.Is(err, dispatch.ErrNoEndpoint):
		return "no_endpoint"
	}
	var de *dispatch.DeliveryError
	if errors.As(err, &de) {
		return "delivery_error"
	}
	return "internal_error"
}
