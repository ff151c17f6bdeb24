package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wareflow/wareflow/internal/platform/httpx"
	"github.com/wareflow/wareflow/internal/shared"
)

// Handler wires HTTP endpoints for the stock engine.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	executor *Executor
	validate *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service, executor *Executor) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		executor: executor,
		validate: validator.New(),
	}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/movements", func(r chi.Router) {
		r.Post("/", h.createMovement)
		r.Get("/", h.listMovements)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getMovement)
			r.Patch("/", h.updateMovement)
			r.Post("/cancel", h.cancelMovement)
			r.Post("/execute", h.executeMovement)
		})
	})
	r.Post("/adjustments", h.createAdjustment)
	r.Get("/ledger", h.queryLedger)
}

func (h *Handler) createMovement(w http.ResponseWriter, r *http.Request) {
	var req CreateMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mov, err := h.service.Create(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, "create movement", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mov)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	skip, limit = shared.ListWindow(skip, limit, 100, 500)
	filter := MovementFilter{
		Type:   MovementType(q.Get("type")),
		Status: MovementStatus(q.Get("status")),
		Skip:   skip,
		Limit:  limit,
	}
	movements, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) getMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	mov, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get movement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mov)
}

func (h *Handler) updateMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req UpdateMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mov, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, "update movement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mov)
}

func (h *Handler) cancelMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	mov, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "cancel movement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mov)
}

func (h *Handler) executeMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	mov, err := h.executor.Execute(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, "execute movement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mov)
}

func (h *Handler) createAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.executor.CreateAdjustment(r.Context(), req, shared.ActorFromContext(r.Context()), r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondError(w, r, "create adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) queryLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	skip, limit = shared.ListWindow(skip, limit, 100, 500)
	filter := LedgerFilter{
		ProductSKU:   q.Get("sku"),
		MovementType: MovementType(q.Get("type")),
		Skip:         skip,
		Limit:        limit,
	}
	if raw := q.Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product_id")
			return
		}
		filter.ProductID = id
	}
	var ok bool
	if filter.From, ok = h.parseDate(w, q.Get("from"), false); !ok {
		return
	}
	if filter.To, ok = h.parseDate(w, q.Get("to"), true); !ok {
		return
	}
	entries, err := h.service.QueryLedger(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "query ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid movement id")
		return 0, false
	}
	return id, true
}

func (h *Handler) parseDate(w http.ResponseWriter, raw string, endOfDay bool) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date: "+raw)
			return time.Time{}, false
		}
		return t, true
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case IsValidation(err):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyExecuted):
		httpx.Problem(w, http.StatusConflict, "Already Executed", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case IsInsufficientStock(err):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
