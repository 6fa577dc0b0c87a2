package app

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smstodo/smstodo/internal/config"
	"github.com/smstodo/smstodo/internal/handler"
	"github.com/smstodo/smstodo/internal/metrics"
	"github.com/smstodo/smstodo/internal/phone"
	"github.com/smstodo/smstodo/internal/service"
	"github.com/smstodo/smstodo/internal/sms"
	"github.com/smstodo/smstodo/internal/store/memstore"
)

func testConfig(t *testing.T, extra map[string]string) *config.Config {
	t.Helper()
	environ := map[string]string{
		"DATABASE_URL": "postgres://localhost/todo",
		"REDIS_URL":    "redis://localhost:6379",
		"SMS_DRY_RUN":  "true",
	}
	for k, v := range extra {
		environ[k] = v
	}
	cfg, err := config.LoadFrom(environ)
	require.NoError(t, err)
	return cfg
}

func testRouter(t *testing.T, cfg *config.Config) (http.Handler, *sms.DryRunSender, *memstore.Store) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	st := memstore.New()
	sender := sms.NewDryRunSender(logger)
	phones := phone.NewNormalizer(cfg.DefaultRegion)
	rec := metrics.NewInMemory()

	svc := service.NewTodoService(st, sender, phones, logger, rec, service.Options{})
	router := NewRouter(cfg, Handlers{
		Health:  handler.NewHealthHandler(nil, nil),
		Metrics: handler.NewMetricsHandler(rec),
		Inbound: handler.NewInboundHandler(svc, phones, nil, nil, handler.InboundConfig{}, logger, rec),
	}, logger)
	return router, sender, st
}

func TestRouter_Routes(t *testing.T) {
	router, _, _ := testRouter(t, testConfig(t, nil))

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, InboundPath, http.StatusMethodNotAllowed},
		{http.MethodPut, InboundPath, http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, "/healthz", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouter_InboundWithoutSignature(t *testing.T) {
	router, sender, _ := testRouter(t, testConfig(t, nil))

	req := httptest.NewRequest(http.MethodPost, InboundPath,
		strings.NewReader(`{"msisdn":"16502530001","to":"16502530999","text":"help","messageId":"r-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer unverified")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	msgs := sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "+16502530001", msgs[0].To)
	assert.Equal(t, "+16502530999", msgs[0].From)
}

func TestRouter_InboundRequiresSignatureWhenConfigured(t *testing.T) {
	router, sender, _ := testRouter(t, testConfig(t, map[string]string{
		"VONAGE_SIGNATURE_SECRET": "sig",
	}))

	req := httptest.NewRequest(http.MethodPost, InboundPath,
		strings.NewReader(`{"msisdn":"16502530001","to":"16502530999","text":"help"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing signature token")
	assert.Empty(t, sender.Messages())
}

func TestRouter_InboundBodyTooLarge(t *testing.T) {
	router, _, _ := testRouter(t, testConfig(t, map[string]string{
		"MAX_REQUEST_BODY_SIZE": "16",
	}))

	req := httptest.NewRequest(http.MethodPost, InboundPath,
		strings.NewReader(`{"msisdn":"16502530001","to":"16502530999","text":"help"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNewSender(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	dry := NewSender(testConfig(t, nil), logger)
	assert.IsType(t, &sms.DryRunSender{}, dry)

	live := NewSender(testConfig(t, map[string]string{
		"SMS_DRY_RUN":       "false",
		"VONAGE_API_KEY":    "k",
		"VONAGE_API_SECRET": "s",
	}), logger)
	assert.IsType(t, &sms.RetryingSender{}, live)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(testConfig(t, map[string]string{"LOG_LEVEL": "warn"}), &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"service":"smstodo"`)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("chatty"))
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://todo:hunter2@db:5432/todo"
	err := errors.New("dial " + dsn + ": refused; password=hunter2 sslmode=disable")

	got := SanitizeError(err, dsn)
	assert.NotContains(t, got, "hunter2")
	assert.Contains(t, got, "[redacted]")
	assert.Empty(t, SanitizeError(nil, dsn))
}
