package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/THRAUR/line-speech-to-text/internal/auth"
	"github.com/THRAUR/line-speech-to-text/internal/bot"
	"github.com/THRAUR/line-speech-to-text/internal/config"
	"github.com/THRAUR/line-speech-to-text/internal/line"
	"github.com/THRAUR/line-speech-to-text/internal/metrics"
	"github.com/THRAUR/line-speech-to-text/internal/session"
)

// maxWebhookBodyBytes bounds how much of a webhook request body is read.
const maxWebhookBodyBytes = 1 << 20

// HTTPServer serves the webhook callback and monitoring endpoints.
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	lineAPI   *line.Client
	handler   *bot.Handler
	sessions  *session.Store
	validator *auth.Validator
	metrics   *metrics.Metrics

	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates the HTTP server with all routes configured.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config,
	lineAPI *line.Client, handler *bot.Handler, sessions *session.Store,
	validator *auth.Validator, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		lineAPI:   lineAPI,
		handler:   handler,
		sessions:  sessions,
		validator: validator,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP routes.
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Webhook callback from the messaging platform
	mux.HandleFunc("/callback", h.withMetrics("/callback", h.handleCallback))

	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection.
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server", slog.String("address", h.server.Addr))

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

// handleCallback implements the webhook endpoint. The signature is verified
// before any parsing; a mismatch is rejected with 401 and never retried by
// us. Event handling itself returns quickly — audio pipelines run in the
// background — so the acknowledgment stays inside the platform's budget.
func (h *HTTPServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	if !h.lineAPI.ValidateSignature(body, signature) {
		h.logger.Warn("Webhook signature mismatch")
		h.metrics.RecordSignatureFailure()
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	req, err := line.ParseWebhook(body)
	if err != nil {
		h.logger.Error("Webhook parse error", slog.String("error", err.Error()))
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	h.logger.Info("Received webhook request", slog.Int("events", len(req.Events)))

	for _, event := range req.Events {
		h.handler.HandleEvent(r.Context(), event)
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// handleHealth implements the /health endpoint.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": now.UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "line-speech-to-text",
			"version": "1.0.0",
		},
		"active_sessions":     h.sessions.ActiveCount(now),
		"today_password_hint": h.validator.Expected(now),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStats implements the /stats endpoint.
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": now.UTC(),
		"sessions": map[string]interface{}{
			"active_count": h.sessions.ActiveCount(now),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleConfig implements the /config endpoint with secrets omitted.
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitized := map[string]interface{}{
		"http": map[string]interface{}{
			"port":    h.config.HTTP.Port,
			"address": h.config.HTTP.Address,
		},
		"auth": map[string]interface{}{
			"session_ttl": h.config.Auth.SessionTTL,
			"timezone":    h.config.Auth.Timezone,
		},
		"audio": map[string]interface{}{
			"max_chunk_seconds":        h.config.Audio.MaxChunkSeconds,
			"silence_lookback_seconds": h.config.Audio.SilenceLookbackSeconds,
			"max_recording_bytes":      h.config.Audio.MaxRecordingBytes,
			"pipeline_timeout":         h.config.Audio.PipelineTimeout,
		},
		"transcription": map[string]interface{}{
			"endpoint":       h.config.Transcription.Endpoint,
			"model":          h.config.Transcription.Model,
			"language":       h.config.Transcription.Language,
			"timeout":        h.config.Transcription.Timeout,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			// API key intentionally omitted
		},
		"summary": map[string]interface{}{
			"base_url":        h.config.Summary.BaseURL,
			"model":           h.config.Summary.Model,
			"max_tokens":      h.config.Summary.MaxTokens,
			"max_input_chars": h.config.Summary.MaxInputChars,
			"timeout":         h.config.Summary.Timeout,
			"max_retries":     h.config.Summary.MaxRetries,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitized)
}

// handleRoot implements the / endpoint with API documentation.
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Meeting Transcription & Summary Bot",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"POST /callback": "Messaging platform webhook",
			"GET /health":    "Service health check",
			"GET /stats":     "Service statistics",
			"GET /config":    "Sanitized service configuration",
			"GET /metrics":   "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
