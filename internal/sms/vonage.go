package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/smstodo/smstodo/internal/model"
)

// DefaultVonageURL is the Vonage SMS API endpoint.
const DefaultVonageURL = "https://rest.nexmo.com/sms/json"

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 64 << 10

// vonageThrottled is the per-message status Vonage returns when the account
// is sending faster than its allowed rate.
const vonageThrottled = "1"

// VonageClient sends SMS through the Vonage SMS API.
type VonageClient struct {
	apiKey    string
	apiSecret string
	endpoint  string
	client    *http.Client
}

// NewVonageClient creates a VonageClient. An empty endpoint uses DefaultVonageURL
// and a nil client uses NewHTTPClient(DefaultTimeout).
func NewVonageClient(apiKey, apiSecret, endpoint string, client *http.Client) *VonageClient {
	if endpoint == "" {
		endpoint = DefaultVonageURL
	}
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}
	return &VonageClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		endpoint:  endpoint,
		client:    client,
	}
}

type vonageResponse struct {
	MessageCount string `json:"message-count"`
	Messages     []struct {
		To        string `json:"to"`
		MessageID string `json:"message-id"`
		Status    string `json:"status"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

// Send posts msg to Vonage. Numbers are sent without the leading '+'.
func (c *VonageClient) Send(ctx context.Context, msg model.OutboundMessage) error {
	if err := checkEndpoints(msg); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("api_secret", c.apiSecret)
	form.Set("from", strings.TrimPrefix(msg.From, "+"))
	form.Set("to", strings.TrimPrefix(msg.To, "+"))
	form.Set("text", msg.Text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to send sms: %w", ErrTemporary, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read sms response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: http status %d", ErrTemporary, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: http status %d", ErrRejected, resp.StatusCode)
	}

	var out vonageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("failed to decode sms response: %w", err)
	}
	if len(out.Messages) == 0 {
		return fmt.Errorf("%w: empty response", ErrRejected)
	}
	for _, m := range out.Messages {
		if m.Status == vonageThrottled {
			return fmt.Errorf("%w: throttled: %s", ErrTemporary, m.ErrorText)
		}
		if m.Status != "0" {
			return fmt.Errorf("%w: status %s: %s", ErrRejected, m.Status, m.ErrorText)
		}
	}
	return nil
}
