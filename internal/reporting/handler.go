package reporting

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wareflow/wareflow/internal/platform/httpx"
)

// Handler serves the read-only stock projections.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the reporting endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stock", func(r chi.Router) {
		r.Get("/products", h.allProductStock)
		r.Get("/products/{id}", h.productStock)
		r.Get("/locations", h.allLocationSummaries)
		r.Get("/locations/{id}", h.locationSummary)
	})
	r.Get("/dashboard/kpis", h.dashboardKPIs)
}

func (h *Handler) productStock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	stock, err := h.service.GetProductLocationStock(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) allProductStock(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.GetAllProductsLocationStock(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if stocks == nil {
		stocks = []ProductLocationStock{}
	}
	httpx.JSON(w, http.StatusOK, stocks)
}

func (h *Handler) locationSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.GetLocationStockSummary(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) allLocationSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.GetAllLocationsStockSummary(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []LocationStockSummary{}
	}
	httpx.JSON(w, http.StatusOK, summaries)
}

func (h *Handler) dashboardKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := h.service.DashboardKPIs(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if kpis.PendingMovements == nil {
		kpis.PendingMovements = map[string]int64{}
	}
	httpx.JSON(w, http.StatusOK, kpis)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "resource not found")
		return
	}
	h.logger.Error("reporting request failed",
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
}
