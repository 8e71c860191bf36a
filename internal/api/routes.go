package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Batches
	mux.Handle("GET /api/v1/batches", chain(http.HandlerFunc(h.ListBatches)))
	mux.Handle("POST /api/v1/batches", chain(http.HandlerFunc(h.CreateBatch)))
	mux.Handle("GET /api/v1/batches/{id}", chain(http.HandlerFunc(h.GetBatch)))
	mux.Handle("POST /api/v1/batches/{id}/cancel", chain(http.HandlerFunc(h.CancelBatch)))
	mux.Handle("POST /api/v1/batches/{id}/retry", chain(http.HandlerFunc(h.RetryBatch)))
	mux.Handle("GET /api/v1/statistics", chain(http.HandlerFunc(h.GetStatistics)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/steps", chain(http.HandlerFunc(h.ListRunSteps)))
}
