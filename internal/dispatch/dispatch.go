package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"ncreceiver/internal/config"
	"ncreceiver/internal/model"
	"ncreceiver/internal/render"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 10
	userAgent      = "ncreceiver/1"
)

var ErrNoEndpoint = errors.New("no webhook endpoint configured")

// DeliveryError reports a failed webhook POST. StatusCode is zero when no
// response was received.
type DeliveryError struct {
	Destination model.Destination
	StatusCode  int
	Body        string
	Err         error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("deliver to %s: webhook returned HTTP %d", e.Destination, e.StatusCode)
	}
	return fmt.Sprintf("deliver to %s: %v", e.Destination, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Dispatcher performs a single synchronous POST per message. It never retries.
type Dispatcher struct {
	client    *http.Client
	endpoints map[model.Destination]string
	logger    *slog.Logger
}

func New(cfg config.DispatchConfig, logger *slog.Logger) *Dispatcher {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		endpoints: map[model.Destination]string{
			model.DestinationDiscord: cfg.DiscordWebhookURL,
			model.DestinationTeams:   cfg.TeamsWebhookURL,
		},
		logger: logger,
	}
}

// Configured reports whether a webhook URL is set for dest.
func (d *Dispatcher) Configured(dest model.Destination) bool {
	return d.endpoints[dest] != ""
}

// Send delivers msg to the webhook configured for its destination.
func (d *Dispatcher) Send(ctx context.Context, msg render.Message) (model.DeliveryReceipt, error) {
	endpoint := d.endpoints[msg.Destination]
	if endpoint == "" {
		return model.DeliveryReceipt{}, &DeliveryError{Destination: msg.Destination, Err: ErrNoEndpoint}
	}
	return d.Deliver(ctx, msg, endpoint)
}

func (d *Dispatcher) Deliver(ctx context.Context, msg render.Message, endpoint string) (model.DeliveryReceipt, error) {
	payload := msg.Payload()
	if payload == nil {
		return model.DeliveryReceipt{}, &DeliveryError{Destination: msg.Destination, Err: errors.New("empty message")}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return model.DeliveryReceipt{}, &DeliveryError{Destination: msg.Destination, Err: fmt.Errorf("marshal payload: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return model.DeliveryReceipt{}, &DeliveryError{Destination: msg.Destination, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := d.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return model.DeliveryReceipt{}, &DeliveryError{Destination: msg.Destination, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.DeliveryReceipt{}, &DeliveryError{
			Destination: msg.Destination,
			StatusCode:  resp.StatusCode,
			Body:        string(respBody),
			Err:         fmt.Errorf("webhook returned HTTP %d", resp.StatusCode),
		}
	}
	if d.logger != nil {
		d.logger.Debug("webhook delivered",
			"destination", msg.Destination,
			"url", RedactURL(endpoint),
			"status", resp.StatusCode,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return model.DeliveryReceipt{
		Destination: msg.Destination,
		StatusCode:  resp.StatusCode,
		Body:        string(respBody),
		Duration:    elapsed,
	}, nil
}

// RedactURL masks credentials in a URL for safe logging. Webhook URLs carry
// their secret in the path, so everything after the host is hidden.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.Host == "" {
		return "<invalid-url>"
	}
	return u.Scheme + "://" + u.Host + "/REDACTED"
}
