package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// CreateBatch ставит новый batch job в очередь.
// POST /api/v1/batches
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		BadRequest(w, "items must not be empty")
		return
	}

	items := make([]domain.BatchItem, len(req.Items))
	for i, item := range req.Items {
		if item.PhotoRef == "" {
			BadRequest(w, "item photo_ref must not be empty")
			return
		}
		items[i] = domain.BatchItem{PhotoRef: item.PhotoRef}
		if item.Mode != "" {
			items[i].Mode = domain.ParseMode(item.Mode)
		}
	}

	job, err := h.manager.Submit(r.Context(),
		items,
		domain.ParseMode(req.DefaultMode),
		time.Duration(req.DelayMs)*time.Millisecond,
	)
	if HandleManagerError(w, h.logger, err) {
		return
	}

	Created(w, BatchFromDomain(job))
}

// GetBatch возвращает batch job по ID.
// GET /api/v1/batches/{id}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid batch id")
		return
	}

	job, err := h.manager.Get(id)
	if HandleManagerError(w, h.logger, err) {
		return
	}

	Success(w, BatchFromDomain(job))
}

// ListBatches возвращает batch jobs, известные менеджеру.
// GET /api/v1/batches
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	jobs := h.manager.List()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	result := make([]BatchResponse, len(jobs))
	for i, job := range jobs {
		result[i] = BatchFromDomain(job)
	}

	List(w, result, len(result))
}

// CancelBatch отменяет batch job.
// POST /api/v1/batches/{id}/cancel
func (h *Handler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid batch id")
		return
	}

	if HandleManagerError(w, h.logger, h.manager.Cancel(r.Context(), id)) {
		return
	}

	job, err := h.manager.Get(id)
	if HandleManagerError(w, h.logger, err) {
		return
	}

	Success(w, BatchFromDomain(job))
}

// RetryBatch перезапускает завершённый batch job целиком.
// POST /api/v1/batches/{id}/retry
func (h *Handler) RetryBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid batch id")
		return
	}

	if HandleManagerError(w, h.logger, h.manager.Retry(r.Context(), id)) {
		return
	}

	job, err := h.manager.Get(id)
	if HandleManagerError(w, h.logger, err) {
		return
	}

	Success(w, BatchFromDomain(job))
}

// GetStatistics возвращает сводку по менеджеру.
// GET /api/v1/statistics
func (h *Handler) GetStatistics(w http.ResponseWriter, _ *http.Request) {
	Success(w, h.manager.Stats())
}
