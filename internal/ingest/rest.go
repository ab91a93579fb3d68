package ingest

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ncreceiver/internal/config"
	"ncreceiver/internal/ingest/web"
	"ncreceiver/internal/model"
	"ncreceiver/internal/relay"
)

type receiverResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type receiverRoute struct {
	destination   model.Destination
	okMessage     string
	failMessage   string
	failureStatus int
}

// Configured reports which destinations have a webhook URL.
type Configured interface {
	Configured(dest model.Destination) bool
}

type RESTServer struct {
	cfg       config.ReceiverConfig
	processor Processor
	targets   Configured
	limiter   *callerLimiter
	home      *template.Template
	logger    *slog.Logger
}

func NewRESTServer(cfg config.ReceiverConfig, processor Processor, targets Configured, logger *slog.Logger) (*RESTServer, error) {
	home, err := template.ParseFS(web.FS, "home.html")
	if err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	return &RESTServer{
		cfg:       cfg,
		processor: processor,
		targets:   targets,
		limiter:   newCallerLimiter(cfg.RateLimitPerMinute),
		home:      home,
		logger:    logger,
	}, nil
}

func (s *RESTServer) Handler() http.Handler {
	teamsFailure := http.StatusInternalServerError
	if s.cfg.LegacyTeamsStatus {
		teamsFailure = http.StatusOK
	}
	discord := receiverRoute{
		destination:   model.DestinationDiscord,
		okMessage:     "XML data received and processed successfully for Discord",
		failMessage:   "Error processing request",
		failureStatus: http.StatusInternalServerError,
	}
	teams := receiverRoute{
		destination:   model.DestinationTeams,
		okMessage:     "XML data received and processed successfully for Teams",
		failMessage:   "Error processing SOAP request for Teams",
		failureStatus: teamsFailure,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/receiver_discord", s.limited("receiver_discord", s.receiver(discord)))
	mux.HandleFunc("/receiver_teams", s.limited("receiver_teams", s.receiver(teams)))
	mux.HandleFunc("/home", s.limited("home", s.handleHome))
	mux.HandleFunc("/", s.limited("home", s.handleHome))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

func StartREST(ctx context.Context, cfg config.ReceiverConfig, processor Processor, targets Configured, logger *slog.Logger) (*http.Server, error) {
	server, err := NewRESTServer(cfg, processor, targets, logger)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("receiver enabled", "addr", cfg.Addr, "rate_limit_per_minute", cfg.RateLimitPerMinute)
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				server.limiter.Evict(10 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("receiver server error", "err", err)
			}
		}
	}()
	return httpServer, nil
}

func (s *RESTServer) receiver(route receiverRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		req := relay.Request{
			ID:          requestID,
			Source:      "http",
			Destination: route.destination,
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
		if err != nil {
			_ = s.processor.Reject(req, err)
			writeJSON(w, route.failureStatus, receiverResponse{Success: false, Message: route.failMessage})
			return
		}
		req.Body = body
		_, err = s.processor.Process(r.Context(), req)
		if err != nil {
			writeJSON(w, route.failureStatus, receiverResponse{Success: false, Message: route.failMessage})
			return
		}
		writeJSON(w, http.StatusOK, receiverResponse{Success: true, Message: route.okMessage})
	}
}

func (s *RESTServer) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/home" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data := struct {
		Title     string
		Discord   bool
		Teams     bool
		RateLimit int
	}{
		Title:     s.cfg.Title,
		RateLimit: s.cfg.RateLimitPerMinute,
	}
	if s.targets != nil {
		data.Discord = s.targets.Configured(model.DestinationDiscord)
		data.Teams = s.targets.Configured(model.DestinationTeams)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.home.Execute(w, data); err != nil && s.logger != nil {
		s.logger.Error("render homepage", "err", err)
	}
}

// limited applies the per-caller limit to one route. Each route key has its
// own bucket per caller.
func (s *RESTServer) limited(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(route + "|" + callerAddr(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, 60/max(1, s.cfg.RateLimitPerMinute))))
			writeJSON(w, http.StatusTooManyRequests, receiverResponse{Success: false, Message: "Rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

func callerAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
