package jobs

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestJobsRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	return r
}

func TestEnqueueEndpointsRequireClient(t *testing.T) {
	h := NewHandler(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := newTestJobsRouter(h)

	for _, path := range []string{"/jobs/lowstock-scan", "/jobs/ledger-verify"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestEnqueueLedgerVerifyRejectsBadProductID(t *testing.T) {
	client := &Client{}
	h := NewHandler(nil, client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := newTestJobsRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/ledger-verify?product_id=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/ledger-verify?product_id=-3", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := newTestJobsRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
