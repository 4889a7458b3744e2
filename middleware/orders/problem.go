package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"orders-gateway/middleware/orders/domain"
)

const problemTypeBase = "https://example.com/problems/"

// Problem é o corpo application/problem+json devolvido em todo erro.
type Problem struct {
	Type       string              `json:"type"`
	Title      string              `json:"title"`
	Status     int                 `json:"status"`
	Detail     string              `json:"detail"`
	Instance   string              `json:"instance"`
	RetryAfter int                 `json:"retryAfter,omitempty"`
	Errors     []domain.FieldError `json:"errors,omitempty"`
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, detail string, retryAfter time.Duration, errs []domain.FieldError) {
	p := Problem{
		Type:     problemTypeBase + code,
		Title:    detail,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.RequestURI(),
		Errors:   errs,
	}
	if retryAfter > 0 {
		secs := domain.CeilSeconds(retryAfter)
		p.RetryAfter = secs
		w.Header().Set("Retry-After", formatInt(secs))
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeError traduz um erro do núcleo para status + problem.
// Erros sem código viram 500 e são logados; o detalhe interno não vaza.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	retry := domain.RetryAfterOf(err)

	switch domain.CodeOf(err) {
	case domain.CodeInvalidInput:
		writeProblem(w, r, http.StatusBadRequest, "invalid-input", messageOf(err), 0, nil)
	case domain.CodeRateLimited:
		writeProblem(w, r, http.StatusTooManyRequests, "rate-limited", "Tenant quota exhausted for the current window.", retry, nil)
	case domain.CodeConflictInProgress:
		writeProblem(w, r, http.StatusConflict, "conflict-in-progress", "A request with this Idempotency-Key is still in progress.", retry, nil)
	case domain.CodeStoreUnavailable:
		logger.Error("store unavailable", "path", r.URL.Path, "err", err)
		writeProblem(w, r, http.StatusServiceUnavailable, "store-unavailable", "Backing store unavailable, try again later.", retry, nil)
	case domain.CodeNotFound:
		writeProblem(w, r, http.StatusNotFound, "not-found", "Order not found.", 0, nil)
	case domain.CodeUnauthorized:
		writeProblem(w, r, http.StatusUnauthorized, "unauthorized", messageOf(err), 0, nil)
	case domain.CodeForbidden:
		writeProblem(w, r, http.StatusForbidden, "forbidden", messageOf(err), 0, nil)
	default:
		logger.Error("unhandled error", "path", r.URL.Path, "err", err)
		writeProblem(w, r, http.StatusInternalServerError, "internal", "Internal server error.", 0, nil)
	}
}

func messageOf(err error) string {
	var e *domain.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
