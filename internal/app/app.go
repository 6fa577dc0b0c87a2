// Package app wires configuration into the logger, SMS sender and HTTP router
// shared by the server and the operator CLI.
package app

import (
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/smstodo/smstodo/internal/config"
	"github.com/smstodo/smstodo/internal/handler"
	"github.com/smstodo/smstodo/internal/middleware"
	"github.com/smstodo/smstodo/internal/sms"
)

// InboundPath is where the provider posts incoming SMS.
const InboundPath = "/webhooks/inbound-sms"

// NewLogger builds the process logger from config and installs it as default.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h).With("service", "smstodo", "env", cfg.AppEnv)
	slog.SetDefault(logger)
	return logger
}

// ParseLogLevel converts string log level to slog.Level.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewSender returns the Vonage client wrapped in retries, or a logging
// dry-run sender when SMS_DRY_RUN is set.
func NewSender(cfg *config.Config, logger *slog.Logger) sms.Sender {
	if cfg.SMSDryRun {
		logger.Warn("sms_dry_run_enabled")
		return sms.NewDryRunSender(logger)
	}
	client := sms.NewVonageClient(
		cfg.VonageAPIKey,
		cfg.VonageAPISecret,
		cfg.VonageAPIURL,
		sms.NewHTTPClient(cfg.SMSTimeout),
	)
	return sms.NewRetryingSender(client, cfg.SMSMaxAttempts, logger)
}

// Handlers are the HTTP endpoints mounted by NewRouter.
type Handlers struct {
	Health  *handler.HealthHandler
	Metrics *handler.MetricsHandler
	Inbound *handler.InboundHandler
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg *config.Config, h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.SecureHeaders(cfg.IsDevelopment()))

	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Get("/metrics", h.Metrics.Metrics)

	if cfg.VonageSignatureSecret == "" {
		logger.Warn("webhook_signature_secret_missing",
			"detail", "inbound webhooks are accepted without verification")
	}

	// Any method reaches the signature middleware so it can answer 405 itself.
	r.With(
		middleware.MaxBodySize(cfg.MaxRequestBodySize),
		middleware.VerifySignature(http.MethodPost, cfg.VonageSignatureSecret, logger),
	).HandleFunc(InboundPath, h.Inbound.Inbound)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// SanitizeError renders err with any of the given connection strings masked.
func SanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, secret, "[redacted]")
	}
	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
