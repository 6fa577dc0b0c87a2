package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/smstodo/smstodo/internal/auth"
	"github.com/smstodo/smstodo/internal/cache"
	"github.com/smstodo/smstodo/internal/metrics"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/service"
)

// ErrInvalidPayload is returned when an inbound webhook cannot be decoded.
var ErrInvalidPayload = errors.New("invalid inbound payload")

// MessageProcessor runs one inbound SMS through the command pipeline.
type MessageProcessor interface {
	HandleMessage(ctx context.Context, msg model.InboundMessage) (*service.Outcome, error)
}

// Deduper remembers provider message ids.
type Deduper interface {
	MarkMessageSeen(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
}

// SenderLimiter throttles inbound traffic per sending number.
type SenderLimiter interface {
	CheckSenderRateLimit(ctx context.Context, phone string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// InboundConfig tunes the inbound webhook.
type InboundConfig struct {
	DedupeTTL          time.Duration
	RateLimitEnabled   bool
	RateLimitPerMinute int
	RateLimitBurst     int
}

// InboundHandler receives SMS webhooks from the provider.
type InboundHandler struct {
	processor MessageProcessor
	phones    service.PhoneNormalizer
	dedupe    Deduper
	limiter   SenderLimiter
	cfg       InboundConfig
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// NewInboundHandler creates a new InboundHandler.
// dedupe and limiter may be nil to disable those checks.
func NewInboundHandler(
	processor MessageProcessor,
	phones service.PhoneNormalizer,
	dedupe Deduper,
	limiter SenderLimiter,
	cfg InboundConfig,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *InboundHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &InboundHandler{
		processor: processor,
		phones:    phones,
		dedupe:    dedupe,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
		metrics:   recorder,
	}
}

// inboundPayload covers both the JSON and the form encoding of a provider
// webhook. JSON bodies use from/message_uuid, form bodies msisdn/messageId.
type inboundPayload struct {
	From        string `json:"from"`
	Msisdn      string `json:"msisdn"`
	To          string `json:"to"`
	Text        string `json:"text"`
	MessageUUID string `json:"message_uuid"`
	MessageID   string `json:"messageId"`
}

func (p inboundPayload) sender() string {
	if p.From != "" {
		return p.From
	}
	return p.Msisdn
}

func (p inboundPayload) id() string {
	switch {
	case p.MessageUUID != "":
		return p.MessageUUID
	case p.MessageID != "":
		return p.MessageID
	default:
		return model.UnknownMessageID
	}
}

// Inbound handles POST /webhooks/inbound-sms.
//
// Every request that gets past signature verification is acknowledged with
// 200, including bad payloads and business failures, so the provider does not
// retry them.
func (h *InboundHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		h.logger.Error("inbound_sms_unconfigured")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "message pipeline not configured",
		})
		return
	}

	payload, err := decodeInbound(r)
	if err != nil {
		h.metrics.IncMessage(metrics.MessageInvalid)
		h.logger.Warn("inbound_sms_invalid_payload", "error", err)
		h.ack(w)
		return
	}

	logger := h.logger.With("message_id", payload.id())
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil && claims.ApplicationID != "" {
		logger = logger.With("application_id", claims.ApplicationID)
	}

	from, okFrom := h.phones.Normalize(payload.sender())
	to, okTo := h.phones.Normalize(payload.To)
	if !okFrom || !okTo {
		h.metrics.IncMessage(metrics.MessageInvalid)
		logger.Warn("inbound_sms_invalid_number",
			"from_valid", okFrom,
			"to_valid", okTo,
		)
		h.ack(w)
		return
	}

	msg := model.InboundMessage{
		From:      from,
		To:        to,
		Text:      payload.Text,
		MessageID: payload.id(),
	}
	logger = logger.With("sender", msg.From)
	h.metrics.IncMessage(metrics.MessageReceived)

	// The pipeline mutates lists and sends SMS; a provider hanging up must not
	// abort it halfway.
	ctx := context.WithoutCancel(r.Context())

	if h.dedupe != nil {
		first, err := h.dedupe.MarkMessageSeen(ctx, msg.MessageID, h.cfg.DedupeTTL)
		if err != nil {
			logger.Warn("inbound_sms_dedupe_failed", "error", err)
		}
		if !first {
			h.metrics.IncMessage(metrics.MessageDuplicate)
			logger.Info("inbound_sms_duplicate")
			h.ack(w)
			return
		}
	}

	if h.limiter != nil && h.cfg.RateLimitEnabled {
		res, err := h.limiter.CheckSenderRateLimit(ctx, msg.From, h.cfg.RateLimitPerMinute, h.cfg.RateLimitBurst)
		if err != nil {
			logger.Warn("inbound_sms_ratelimit_failed", "error", err)
		} else if !res.Allowed {
			h.metrics.IncMessage(metrics.MessageRateLimited)
			logger.Warn("inbound_sms_rate_limited", "retry_after", res.RetryAfter)
			h.ack(w)
			return
		}
	}

	if _, err := h.processor.HandleMessage(ctx, msg); err != nil {
		logger.Error("inbound_sms_failed", "error", err)
	}
	h.ack(w)
}

func (h *InboundHandler) ack(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeInbound reads a JSON or form-encoded webhook body.
func decodeInbound(r *http.Request) (inboundPayload, error) {
	var p inboundPayload

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p = inboundPayload{
			From:        r.Form.Get("from"),
			Msisdn:      r.Form.Get("msisdn"),
			To:          r.Form.Get("to"),
			Text:        r.Form.Get("text"),
			MessageUUID: r.Form.Get("message_uuid"),
			MessageID:   r.Form.Get("messageId"),
		}
	}

	if strings.TrimSpace(p.sender()) == "" || strings.TrimSpace(p.To) == "" {
		return p, fmt.Errorf("%w: missing sender or recipient", ErrInvalidPayload)
	}
	return p, nil
}
