package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"wabot/internal/command"
	"wabot/internal/domain"
	"wabot/internal/metrics"

	"github.com/google/uuid"
)

const (
	livenessText = "It's working."
	ackText      = "Ok"
	maxBodyBytes = 1 << 20
)

// BatchHandler processes the messages of one webhook delivery.
type BatchHandler interface {
	HandleBatch(ctx context.Context, requestID string, msgs []domain.InboundMessage) command.BatchResult
}

// WebhookConfig configures the gateway webhook server.
type WebhookConfig struct {
	Addr        string
	Path        string // webhook URL path (default: /webhook)
	FilesDir    string // served as-is under /; empty disables static files
	Handler     BatchHandler
	MetricsPath string       // empty disables the metrics endpoint
	Metrics     http.Handler // required when MetricsPath is set
	Logger      *slog.Logger
}

// Webhook receives message batches from the chat-api gateway and serves
// the bot's attachment files.
type Webhook struct {
	addr        string
	path        string
	filesDir    string
	handler     BatchHandler
	metricsPath string
	metrics     http.Handler
	logger      *slog.Logger
	server      *http.Server
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":80"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Webhook{
		addr:        cfg.Addr,
		path:        cfg.Path,
		filesDir:    cfg.FilesDir,
		handler:     cfg.Handler,
		metricsPath: cfg.MetricsPath,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Handler returns the complete HTTP handler, middleware included.
func (w *Webhook) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", w.handleLiveness)
	mux.HandleFunc("POST "+w.path, w.handleWebhook)
	if w.metricsPath != "" && w.metrics != nil {
		mux.Handle("GET "+w.metricsPath, w.metrics)
	}
	if w.filesDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(w.filesDir)))
	}
	return w.recoverer(w.requestLogger(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *Webhook) Start(ctx context.Context) error {
	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("webhook server starting", "addr", w.addr, "path", w.path, "files", w.filesDir)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *Webhook) handleLiveness(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(rw, livenessText)
}

// handleWebhook always answers 200 "Ok"; decode and dispatch problems are
// only logged.
func (w *Webhook) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	metrics.WebhookBatches.Inc()

	defer func() {
		if p := recover(); p != nil {
			metrics.PanicsRecovered.Inc()
			w.logger.Error("webhook panic", "request_id", requestID, "panic", p)
		}
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rw.WriteHeader(http.StatusOK)
		io.WriteString(rw, ackText)
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		w.logger.Warn("webhook body read failed", "request_id", requestID, "err", err)
		return
	}
	if len(body) > maxBodyBytes {
		w.logger.Warn("webhook body too large", "request_id", requestID, "limit", maxBodyBytes)
		return
	}

	var payload domain.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		w.logger.Warn("webhook bad payload", "request_id", requestID, "err", err, "body_len", len(body))
		return
	}

	// Replies must not be cut short if the gateway hangs up early.
	ctx := context.WithoutCancel(r.Context())
	res := w.handler.HandleBatch(ctx, requestID, payload.Messages)

	w.logger.Info("webhook handled",
		"request_id", requestID,
		"messages", res.Seen,
		"skipped", res.Skipped,
		"dispatched", res.Dispatched,
		"failed", res.Failed,
	)
}

func (w *Webhook) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(rw, r)
		w.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// recoverer turns a panic in any non-webhook route into a logged 500.
func (w *Webhook) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				metrics.PanicsRecovered.Inc()
				w.logger.Error("http panic", "method", r.Method, "path", r.URL.Path, "panic", p)
				http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(rw, r)
	})
}
