package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ncreceiver/internal/config"
	"ncreceiver/internal/metrics"
	"ncreceiver/internal/model"
	"ncreceiver/internal/outcomes"
)

type staticTargets map[model.Destination]bool

func (s staticTargets) Configured(dest model.Destination) bool { return s[dest] }

func newTestServer() (*Server, *metrics.Store, *outcomes.Store) {
	m := metrics.NewStore()
	o := outcomes.NewStore(10)
	cfg := config.DefaultConfig()
	return NewServer(cfg, "/etc/ncreceiver.yaml", m, o, staticTargets{model.DestinationDiscord: true}, nil, "test"), m, o
}

func TestStatus(t *testing.T) {
	s, _, _ := newTestServer()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status code %d", rr.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != "test" || !resp.Destinations.Discord || resp.Destinations.Teams {
		t.Fatalf("unexpected status: %+v", resp)
	}
	if resp.Receiver.RateLimitPerMinute != 5 {
		t.Fatalf("rate limit: %d", resp.Receiver.RateLimitPerMinute)
	}
}

func TestStatsAndDeliveries(t *testing.T) {
	s, m, o := newTestServer()
	outcome := model.DeliveryOutcome{Timestamp: time.Now().UTC(), RequestID: "r1", Destination: model.DestinationTeams, Stage: model.StageDeliver, StatusCode: 503}
	m.Record(outcome)
	o.Add(outcome)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats/teams", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"delivery_failures":1`) {
		t.Fatalf("unexpected stats response %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats/discord", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for destination without stats, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deliveries?limit=5", nil))
	var resp struct {
		Deliveries []model.DeliveryOutcome `json:"deliveries"`
		Count      int                     `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Deliveries[0].RequestID != "r1" {
		t.Fatalf("unexpected deliveries: %+v", resp)
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deliveries?since=yesterday", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad since, got %d", rr.Code)
	}
}

func TestClear(t *testing.T) {
	s, m, o := newTestServer()
	outcome := model.DeliveryOutcome{RequestID: "r1", Destination: model.DestinationDiscord, Success: true}
	m.Record(outcome)
	o.Add(outcome)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/clear", strings.NewReader(`{"target":"deliveries"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("clear status %d", rr.Code)
	}
	if len(o.List(0)) != 0 {
		t.Fatalf("deliveries not cleared")
	}
	if _, ok := m.Get(model.DestinationDiscord); !ok {
		t.Fatalf("stats should survive deliveries clear")
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/clear", strings.NewReader(`{"target":"bogus"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
