package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smstodo/smstodo/internal/auth"
)

const testSecret = "signature-secret"

func signToken(t *testing.T, secret string, claims auth.Claims) string {
	t.Helper()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func payloadHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// echoBody replies with the request body and reports whether claims reached
// the handler.
func echoBody(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if auth.ClaimsFromContext(r.Context()) != nil {
			w.Header().Set("X-Claims", "yes")
		}
		_, _ = w.Write(body)
	})
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	const body = `{"msisdn":"16502530001","to":"16502530999","text":"help"}`

	tests := []struct {
		name    string
		method  string
		auth    string
		status  int
		message string
	}{
		{
			name:   "valid token",
			method: http.MethodPost,
			auth:   "Bearer " + signToken(t, testSecret, auth.Claims{}),
			status: http.StatusOK,
		},
		{
			name:   "valid token with payload hash",
			method: http.MethodPost,
			auth:   "Bearer " + signToken(t, testSecret, auth.Claims{PayloadHash: payloadHash(body)}),
			status: http.StatusOK,
		},
		{
			name:    "wrong method",
			method:  http.MethodGet,
			auth:    "Bearer " + signToken(t, testSecret, auth.Claims{}),
			status:  http.StatusMethodNotAllowed,
			message: "method not allowed",
		},
		{
			name:    "missing header",
			method:  http.MethodPost,
			status:  http.StatusUnauthorized,
			message: msgMissingSignature,
		},
		{
			name:    "basic scheme",
			method:  http.MethodPost,
			auth:    "Basic dXNlcjpwYXNz",
			status:  http.StatusUnauthorized,
			message: msgMissingSignature,
		},
		{
			name:    "wrong secret",
			method:  http.MethodPost,
			auth:    "Bearer " + signToken(t, "other-secret", auth.Claims{}),
			status:  http.StatusUnauthorized,
			message: msgInvalidSignature,
		},
		{
			name:    "garbage token",
			method:  http.MethodPost,
			auth:    "Bearer not.a.jwt",
			status:  http.StatusUnauthorized,
			message: msgInvalidSignature,
		},
		{
			name:    "tampered body",
			method:  http.MethodPost,
			auth:    "Bearer " + signToken(t, testSecret, auth.Claims{PayloadHash: payloadHash("something else")}),
			status:  http.StatusUnauthorized,
			message: msgInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := VerifySignature(http.MethodPost, testSecret, slog.New(slog.DiscardHandler))(echoBody(t))

			req := httptest.NewRequest(tt.method, "/webhooks/inbound-sms", strings.NewReader(body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			if tt.status == http.StatusOK {
				if rec.Body.String() != body {
					t.Errorf("body not restored: %q", rec.Body.String())
				}
				if rec.Header().Get("X-Claims") != "yes" {
					t.Error("claims missing from request context")
				}
				return
			}

			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["error"] != tt.message {
				t.Errorf("error = %q, want %q", resp["error"], tt.message)
			}
		})
	}
}

func TestVerifySignature_NoSecretSkipsCheck(t *testing.T) {
	t.Parallel()

	logger, buf := captureLogger()
	h := VerifySignature(http.MethodPost, "", logger)(echoBody(t))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound-sms", strings.NewReader("x"))
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "signature_verification_disabled") {
		t.Errorf("expected a warning, got %s", buf.String())
	}
}

func TestVerifySignature_NoSecretStillRequiresToken(t *testing.T) {
	t.Parallel()

	logger, _ := captureLogger()
	h := VerifySignature(http.MethodPost, "", logger)(echoBody(t))

	for _, header := range []string{"", "Bearer", "Token abc"} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound-sms", strings.NewReader("x"))
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status 401, got %d", header, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), msgMissingSignature) {
			t.Errorf("header %q: unexpected body %s", header, rec.Body.String())
		}
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Bearer", ""},
		{"Token abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", tt.header)
		if got := bearerToken(req); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
