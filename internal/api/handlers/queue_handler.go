package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "courier/internal/api/context"
	"courier/internal/engine/webhooks"
	"courier/internal/pkg/errors"
	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

type QueueHandler struct {
	queue     *repositories.QueueRepository
	scheduler webhooks.Scheduler
}

func NewQueueHandler(queue *repositories.QueueRepository, scheduler webhooks.Scheduler) *QueueHandler {
	return &QueueHandler{queue: queue, scheduler: scheduler}
}

func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	entries, err := h.queue.List(repositories.QueueFilter{
		EnterpriseID: q.Get("enterprise_id"),
		Status:       q.Get("status"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if entries == nil {
		entries = []*models.QueueEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// Cancel releases the entry's deduplication key. Only pending and failed
// entries can be cancelled; in-flight and delivered ones cannot.
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}

	if entry.Status != models.StatusPending && entry.Status != models.StatusFailed {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Only pending or failed entries can be cancelled", nil)
		return
	}

	if err := h.queue.Cancel(entry.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	entry.Status = models.StatusCancelled
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// Retry resets a terminally failed entry and submits it for delivery.
func (h *QueueHandler) Retry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}

	if entry.Status != models.StatusFailed {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Only failed entries can be retried", nil)
		return
	}

	if err := h.queue.ResetForRetry(entry.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	h.scheduler.Submit(entry.ID, 0)

	entry.Status = models.StatusPending
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *QueueHandler) load(w http.ResponseWriter, r *http.Request) (*models.QueueEntry, bool) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("entry_id")

	entry, err := h.queue.GetByID(id)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return nil, false
	}
	if entry == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Queue entry not found", nil)
		return nil, false
	}
	return entry, true
}
