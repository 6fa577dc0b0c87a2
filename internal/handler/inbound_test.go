package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smstodo/smstodo/internal/auth"
	"github.com/smstodo/smstodo/internal/cache"
	"github.com/smstodo/smstodo/internal/metrics"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/phone"
	"github.com/smstodo/smstodo/internal/service"
	"github.com/smstodo/smstodo/internal/sms"
	"github.com/smstodo/smstodo/internal/store/memstore"
)

const (
	testChannel = "+16502530999"
	testSender  = "+16502530001"
)

type recordingProcessor struct {
	mu   sync.Mutex
	msgs []model.InboundMessage
	err  error
}

func (p *recordingProcessor) HandleMessage(ctx context.Context, msg model.InboundMessage) (*service.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return &service.Outcome{}, p.err
}

func (p *recordingProcessor) received() []model.InboundMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.InboundMessage(nil), p.msgs...)
}

type mapDeduper struct {
	seen map[string]bool
	err  error
}

func (d *mapDeduper) MarkMessageSeen(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if d.err != nil {
		return true, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

type countingLimiter struct {
	allow int
	calls int
}

func (l *countingLimiter) CheckSenderRateLimit(ctx context.Context, phone string, perMinute, burst int) (*cache.RateLimitResult, error) {
	l.calls++
	return &cache.RateLimitResult{Allowed: l.calls <= l.allow, RetryAfter: time.Second}, nil
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound-sms", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound-sms", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return req
}

func serve(h *InboundHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Inbound(rec, req)
	return rec
}

func TestInbound_DecodesPayloads(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
		want model.InboundMessage
	}{
		{
			name: "json",
			req:  jsonRequest(`{"from":"16502530001","to":"16502530999","text":"list1: add Buy milk","message_uuid":"abc-1"}`),
			want: model.InboundMessage{From: testSender, To: testChannel, Text: "list1: add Buy milk", MessageID: "abc-1"},
		},
		{
			name: "json msisdn",
			req:  jsonRequest(`{"msisdn":"16502530001","to":"16502530999","text":"lists","messageId":"m-2"}`),
			want: model.InboundMessage{From: testSender, To: testChannel, Text: "lists", MessageID: "m-2"},
		},
		{
			name: "form",
			req: formRequest(url.Values{
				"msisdn":    {"16502530001"},
				"to":        {"16502530999"},
				"text":      {"help"},
				"messageId": {"m-3"},
			}),
			want: model.InboundMessage{From: testSender, To: testChannel, Text: "help", MessageID: "m-3"},
		},
		{
			name: "form without id",
			req: formRequest(url.Values{
				"msisdn": {"+16502530001"},
				"to":     {"+16502530999"},
				"text":   {"help"},
			}),
			want: model.InboundMessage{From: testSender, To: testChannel, Text: "help", MessageID: model.UnknownMessageID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &recordingProcessor{}
			h := NewInboundHandler(proc, phone.NewNormalizer("US"), nil, nil, InboundConfig{}, nil, nil)

			rec := serve(h, tt.req)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}

			got := proc.received()
			if len(got) != 1 {
				t.Fatalf("expected 1 message, got %d", len(got))
			}
			if got[0] != tt.want {
				t.Errorf("message = %+v, want %+v", got[0], tt.want)
			}
		})
	}
}

func TestInbound_RejectedInputIsAcknowledged(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"malformed json", jsonRequest(`{"from":`)},
		{"missing sender", jsonRequest(`{"to":"16502530999","text":"help"}`)},
		{"invalid sender", jsonRequest(`{"from":"12","to":"16502530999","text":"help"}`)},
		{"invalid channel", formRequest(url.Values{"msisdn": {"16502530001"}, "to": {"abc"}, "text": {"help"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &recordingProcessor{}
			rm := metrics.NewInMemory()
			h := NewInboundHandler(proc, phone.NewNormalizer("US"), nil, nil, InboundConfig{}, nil, rm)

			rec := serve(h, tt.req)
			if rec.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rec.Code)
			}
			if n := len(proc.received()); n != 0 {
				t.Errorf("expected no processed messages, got %d", n)
			}
			if got := rm.Snapshot().Messages[metrics.MessageInvalid]; got != 1 {
				t.Errorf("invalid counter = %d, want 1", got)
			}
		})
	}
}

func TestInbound_NotConfigured(t *testing.T) {
	h := NewInboundHandler(nil, phone.NewNormalizer("US"), nil, nil, InboundConfig{}, nil, nil)

	rec := serve(h, jsonRequest(`{"from":"16502530001","to":"16502530999","text":"help"}`))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}

func TestInbound_ProcessorErrorStillAcknowledged(t *testing.T) {
	proc := &recordingProcessor{err: errors.New("boom")}
	h := NewInboundHandler(proc, phone.NewNormalizer("US"), nil, nil, InboundConfig{}, nil, nil)

	rec := serve(h, jsonRequest(`{"from":"16502530001","to":"16502530999","text":"help"}`))
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestInbound_LogsVerifiedApplication(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	proc := &recordingProcessor{err: errors.New("boom")}
	h := NewInboundHandler(proc, phone.NewNormalizer("US"), nil, nil, InboundConfig{}, logger, nil)

	req := jsonRequest(`{"from":"16502530001","to":"16502530999","text":"help","message_uuid":"m-9"}`)
	req = req.WithContext(auth.ContextWithClaims(req.Context(), &auth.Claims{ApplicationID: "app-1"}))
	serve(h, req)

	if !strings.Contains(buf.String(), `"application_id":"app-1"`) {
		t.Errorf("expected application_id in log, got %s", buf.String())
	}

	buf.Reset()
	serve(h, jsonRequest(`{"from":"16502530001","to":"16502530999","text":"help","message_uuid":"m-10"}`))
	if strings.Contains(buf.String(), "application_id") {
		t.Errorf("unverified request logged an application_id: %s", buf.String())
	}
}

func TestInbound_DuplicateSkipped(t *testing.T) {
	proc := &recordingProcessor{}
	rm := metrics.NewInMemory()
	h := NewInboundHandler(proc, phone.NewNormalizer("US"), &mapDeduper{seen: map[string]bool{}}, nil,
		InboundConfig{DedupeTTL: time.Hour}, nil, rm)

	body := `{"from":"16502530001","to":"16502530999","text":"add x","message_uuid":"dup-1"}`
	serve(h, jsonRequest(body))
	rec := serve(h, jsonRequest(body))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if n := len(proc.received()); n != 1 {
		t.Errorf("expected 1 processed message, got %d", n)
	}
	snap := rm.Snapshot()
	if snap.Messages[metrics.MessageReceived] != 2 || snap.Messages[metrics.MessageDuplicate] != 1 {
		t.Errorf("unexpected counters: %+v", snap.Messages)
	}
}

func TestInbound_DedupeFailureFailsOpen(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewInboundHandler(proc, phone.NewNormalizer("US"), &mapDeduper{err: errors.New("redis down")}, nil,
		InboundConfig{}, nil, nil)

	serve(h, jsonRequest(`{"from":"16502530001","to":"16502530999","text":"help","message_uuid":"x"}`))
	if n := len(proc.received()); n != 1 {
		t.Errorf("expected message to be processed, got %d", n)
	}
}

func TestInbound_RateLimited(t *testing.T) {
	proc := &recordingProcessor{}
	limiter := &countingLimiter{allow: 2}
	rm := metrics.NewInMemory()
	cfg := InboundConfig{RateLimitEnabled: true, RateLimitPerMinute: 10, RateLimitBurst: 2}
	h := NewInboundHandler(proc, phone.NewNormalizer("US"), nil, limiter, cfg, nil, rm)

	for i := 0; i < 3; i++ {
		rec := serve(h, jsonRequest(`{"from":"16502530001","to":"16502530999","text":"help"}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, rec.Code)
		}
	}

	if n := len(proc.received()); n != 2 {
		t.Errorf("expected 2 processed messages, got %d", n)
	}
	if got := rm.Snapshot().Messages[metrics.MessageRateLimited]; got != 1 {
		t.Errorf("rate limited counter = %d, want 1", got)
	}
}

func TestInbound_RateLimitDisabled(t *testing.T) {
	proc := &recordingProcessor{}
	limiter := &countingLimiter{allow: 0}
	h := NewInboundHandler(proc, phone.NewNormalizer("US"), nil, limiter, InboundConfig{}, nil, nil)

	serve(h, jsonRequest(`{"from":"16502530001","to":"16502530999","text":"help"}`))
	if limiter.calls != 0 {
		t.Errorf("limiter should not be consulted when disabled")
	}
	if n := len(proc.received()); n != 1 {
		t.Errorf("expected 1 processed message, got %d", n)
	}
}

func TestInbound_EndToEnd(t *testing.T) {
	st := memstore.New()
	st.PutList(&model.List{ID: "l1", Alias: "list1", Members: []string{testSender}})
	st.PutUser(&model.User{Phone: testSender, MemberOfLists: []string{"l1"}})

	sender := sms.NewDryRunSender(nil)
	phones := phone.NewNormalizer("US")
	svc := service.NewTodoService(st, sender, phones, nil, nil, service.Options{})
	h := NewInboundHandler(svc, phones, nil, nil, InboundConfig{}, nil, nil)

	rec := serve(h, formRequest(url.Values{
		"msisdn":    {"16502530001"},
		"to":        {"16502530999"},
		"text":      {"list1: add Buy milk"},
		"messageId": {"e2e-1"},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	l, err := st.GetList(context.Background(), "l1")
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if len(l.Tasks) != 1 || l.Tasks[0] != "Buy milk" {
		t.Errorf("tasks = %v, want [Buy milk]", l.Tasks)
	}

	sent := sender.Messages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 outbound SMS, got %d", len(sent))
	}
	want := model.OutboundMessage{To: testSender, From: testChannel, Text: "list1: Added: Buy milk"}
	if sent[0] != want {
		t.Errorf("outbound = %+v, want %+v", sent[0], want)
	}
}
