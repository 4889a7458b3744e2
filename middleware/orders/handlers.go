package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"orders-gateway/middleware/orders/application"
	"orders-gateway/middleware/orders/domain"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// OrderCreator é o WriteCoordinator visto pelo handler.
type OrderCreator interface {
	HandleCreate(ctx context.Context, tenantID, idempotencyKey string, in domain.CreateInput) (application.CreateResult, error)
}

// OrderQuerier atende GET por id e listagem.
type OrderQuerier interface {
	Get(ctx context.Context, tenantID, id string) (domain.Order, error)
	List(ctx context.Context, tenantID string, limit int, cursor string) ([]domain.Order, error)
}

// Pinger é usado pelo /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ListResponse é o corpo do GET /v1/orders.
type ListResponse struct {
	Data       []domain.Order `json:"data"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

type handler struct {
	creator OrderCreator
	querier OrderQuerier
	health  Pinger
	stats   domain.StatsStore
	logger  *slog.Logger
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)

	in, fieldErrs := decodeCreateInput(r)
	if len(fieldErrs) > 0 {
		writeProblem(w, r, http.StatusUnprocessableEntity, "validation-error", "Invalid request body.", 0, fieldErrs)
		return
	}

	res, err := h.creator.HandleCreate(r.Context(), tenant, idempotencyKey(r), in)
	setRateLimitHeaders(w, res.Decision)
	if res.Decision.Allowed || domain.CodeOf(err) == domain.CodeRateLimited {
		recordStats(r, h.stats, h.logger, tenant, res.Decision)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	replay := "true"
	if res.Created {
		status = http.StatusCreated
		replay = "false"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotent-Replay", replay)
	w.WriteHeader(status)
	// bytes exatamente como gravados no store; replay nunca re-serializa
	_, _ = w.Write(res.Body)
}

func decodeCreateInput(r *http.Request) (domain.CreateInput, []domain.FieldError) {
	var in domain.CreateInput
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return in, []domain.FieldError{{Name: typeErr.Field, Reason: "expected " + typeErr.Type.String()}}
		}
		return in, []domain.FieldError{{Name: "body", Reason: "must be a JSON object"}}
	}
	return in, in.Validate()
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.querier.Get(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeProblem(w, r, http.StatusBadRequest, "invalid-query", "Invalid query parameters.", 0, nil)
			return
		}
		limit = n
	}

	list, err := h.querier.List(r.Context(), tenantID(r), limit, strings.TrimSpace(q.Get("cursor")))
	if err != nil {
		switch domain.CodeOf(err) {
		case domain.CodeInvalidInput, domain.CodeNotFound:
			writeProblem(w, r, http.StatusBadRequest, "invalid-query", "Invalid query parameters.", 0, nil)
		default:
			writeError(w, r, h.logger, err)
		}
		return
	}

	if list == nil {
		list = []domain.Order{}
	}
	resp := ListResponse{Data: list}
	if limit == 0 {
		limit = application.DefaultListLimit
	}
	if len(list) == limit {
		resp.NextCursor = list[len(list)-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
