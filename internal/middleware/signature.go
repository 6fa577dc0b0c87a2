package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/smstodo/smstodo/internal/auth"
)

// Messages returned on signature failures.
const (
	msgMissingSignature = "Unauthorized: Missing signature token"
	msgInvalidSignature = "Unauthorized: Invalid signature"
)

// VerifySignature authenticates provider webhooks signed as HS256 bearer
// tokens. Only the given method is accepted. A bearer token is always
// required; with an empty secret it is not verified and a warning is logged
// for every request.
func VerifySignature(method, secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				w.Header().Set("Allow", method)
				writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}

			token := bearerToken(r)
			if token == "" {
				logger.Warn("signature_rejected",
					"request_id", GetRequestID(r.Context()),
					"remote_addr", r.RemoteAddr,
					"error", auth.ErrMissingToken,
				)
				writeError(w, http.StatusUnauthorized, msgMissingSignature)
				return
			}

			if secret == "" {
				logger.Warn("signature_verification_disabled",
					"request_id", GetRequestID(r.Context()),
					"path", r.URL.Path,
				)
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(token, secret)
			if err != nil {
				msg := msgInvalidSignature
				if errors.Is(err, auth.ErrMissingToken) {
					msg = msgMissingSignature
				}
				logger.Warn("signature_rejected",
					"request_id", GetRequestID(r.Context()),
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				writeError(w, http.StatusUnauthorized, msg)
				return
			}

			if claims.PayloadHash != "" {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					logger.Warn("signature_body_unreadable",
						"request_id", GetRequestID(r.Context()),
						"error", err,
					)
					writeError(w, http.StatusBadRequest, "unreadable request body")
					return
				}
				_ = r.Body.Close()
				r.Body = io.NopCloser(bytes.NewReader(body))

				if err := claims.VerifyPayload(body); err != nil {
					logger.Warn("signature_rejected",
						"request_id", GetRequestID(r.Context()),
						"remote_addr", r.RemoteAddr,
						"error", err,
					)
					writeError(w, http.StatusUnauthorized, msgInvalidSignature)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Other schemes yield an empty token.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
