package translate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/loqalabs/loqa-interpret/internal/ratelimit"
)

const maxRequestBody = 64 << 10

// Messages returned in the error field of failed responses.
const (
	MessageBadRequest = "Bad request"
	MessageRateLimit  = "Rate limit"
	MessageFailed     = "Translate failed"
)

// StatusFor maps a Translator error to an HTTP status and a terse message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, MessageBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, MessageRateLimit
	default:
		return http.StatusInternalServerError, MessageFailed
	}
}

// ErrorFor is the inverse of StatusFor.
func ErrorFor(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrProvider
	}
}

// Handler serves POST /translate. The caller's key comes from the first
// X-Forwarded-For entry, falling back to "local"; the rate limit is checked
// before the body is read.
func Handler(translator Translator, limiter *ratelimit.Limiter, logger *slog.Logger) http.HandlerFunc {
	logger = logger.With(slog.String("component", "translate-http"))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := keyFromForwardedFor(r.Header.Get("X-Forwarded-For"))
		if !limiter.Allow(ctx, key) {
			recordOutcome(ctx, outcomeRateLimited)
			logger.Info("rate limit exceeded", slog.String("client", key))
			writeError(w, ErrRateLimited)
			return
		}

		var req Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			recordOutcome(ctx, outcomeInvalid)
			writeError(w, &ValidationError{Field: "body", Reason: err.Error()})
			return
		}

		res, err := translator.Translate(WithClientKey(ctx, key), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := StatusFor(err)
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
