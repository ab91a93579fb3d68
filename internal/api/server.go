package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ncreceiver/internal/config"
	"ncreceiver/internal/metrics"
	"ncreceiver/internal/model"
	"ncreceiver/internal/outcomes"
)

// Targets reports which destinations have a webhook URL.
type Targets interface {
	Configured(dest model.Destination) bool
}

type Server struct {
	cfg        *config.Config
	configPath string
	metrics    *metrics.Store
	outcomes   *outcomes.Store
	targets    Targets
	logger     *slog.Logger
	version    string
	started    time.Time
}

type statusResponse struct {
	Status       string            `json:"status"`
	Time         string            `json:"time"`
	Uptime       string            `json:"uptime"`
	Version      string            `json:"version"`
	ConfigPath   string            `json:"config_path"`
	Receiver     receiverStatus    `json:"receiver"`
	Destinations destinationStatus `json:"destinations"`
	Kafka        kafkaStatus       `json:"kafka"`
}

type receiverStatus struct {
	Addr               string `json:"addr"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	LegacyTeamsStatus  bool   `json:"legacy_teams_status"`
}

type destinationStatus struct {
	Discord bool `json:"discord"`
	Teams   bool `json:"teams"`
}

type kafkaStatus struct {
	Enabled     bool   `json:"enabled"`
	Topic       string `json:"topic,omitempty"`
	Destination string `json:"destination,omitempty"`
}

func NewServer(cfg *config.Config, configPath string, metricsStore *metrics.Store, outcomeStore *outcomes.Store, targets Targets, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		metrics:    metricsStore,
		outcomes:   outcomeStore,
		targets:    targets,
		logger:     logger,
		version:    version,
		started:    time.Now().UTC(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/stats/", s.handleStats)
	mux.HandleFunc("/deliveries", s.handleDeliveries)
	mux.HandleFunc("/admin/clear", s.handleClear)
	return mux
}

func Start(ctx context.Context, server *Server) *http.Server {
	if server == nil || server.cfg == nil {
		return nil
	}
	current := server.cfg.API
	if !current.Enabled {
		if server.logger != nil {
			server.logger.Info("api disabled")
		}
		return nil
	}
	if server.logger != nil {
		server.logger.Info("api enabled", "addr", current.Addr)
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if server.logger != nil {
				server.logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	now := time.Now().UTC()
	resp := statusResponse{
		Status:     "ok",
		Time:       now.Format(time.RFC3339Nano),
		Uptime:     now.Sub(s.started).Truncate(time.Second).String(),
		Version:    s.version,
		ConfigPath: s.configPath,
		Receiver: receiverStatus{
			Addr:               s.cfg.Receiver.Addr,
			RateLimitPerMinute: s.cfg.Receiver.RateLimitPerMinute,
			LegacyTeamsStatus:  s.cfg.Receiver.LegacyTeamsStatus,
		},
		Kafka: kafkaStatus{Enabled: s.cfg.Kafka.Enabled},
	}
	if s.cfg.Kafka.Enabled {
		resp.Kafka.Topic = s.cfg.Kafka.Topic
		resp.Kafka.Destination = s.cfg.Kafka.Destination
	}
	if s.targets != nil {
		resp.Destinations = destinationStatus{
			Discord: s.targets.Configured(model.DestinationDiscord),
			Teams:   s.targets.Configured(model.DestinationTeams),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/stats")
	path = strings.TrimPrefix(path, "/")
	if path != "" {
		dest, ok := model.ParseDestination(path)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		stats, found := s.metrics.Get(dest)
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"destination": dest,
			"stats":       stats,
		})
		return
	}
	all := s.metrics.GetAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": all,
		"count": len(all),
	})
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.DeliveryOutcome
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.outcomes.Since(ts)
	} else {
		list = s.outcomes.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deliveries": list,
		"count":      len(list),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		s.metrics.Clear()
		s.outcomes.Clear()
	case "stats":
		s.metrics.Clear()
	case "deliveries":
		s.outcomes.Clear()
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.logger != nil {
		s.logger.Info("history cleared", "target", target)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
