package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wareflow/wareflow/internal/masterdata/locations"
	"github.com/wareflow/wareflow/internal/masterdata/products"
	"github.com/wareflow/wareflow/internal/masterdata/warehouses"
	"github.com/wareflow/wareflow/internal/observability"
	"github.com/wareflow/wareflow/internal/reporting"
	"github.com/wareflow/wareflow/internal/stock"
	"github.com/wareflow/wareflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	StockHandler      *stock.Handler
	ReportingHandler  *reporting.Handler
	ProductsHandler   *products.Handler
	WarehousesHandler *warehouses.Handler
	LocationsHandler  *locations.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	Pool              *pgxpool.Pool
}

// NewRouter constructs the chi.Router with Wareflow defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		params.StockHandler.MountRoutes(r)
		if params.ReportingHandler != nil {
			params.ReportingHandler.MountRoutes(r)
		}
		if params.ProductsHandler != nil {
			params.ProductsHandler.MountRoutes(r)
		}
		if params.WarehousesHandler != nil {
			params.WarehousesHandler.MountRoutes(r)
		}
		if params.LocationsHandler != nil {
			params.LocationsHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
