package handler

import (
	"context"
	"net/http"

	"github.com/iho/txstats/internal/adapter/http/dto"
	"github.com/iho/txstats/internal/domain"
)

// StatisticsService defines the behavior needed by StatisticsHandler.
type StatisticsService interface {
	GetStatistics(ctx context.Context, taskID string) (*domain.StatisticsSnapshot, error)
	ClearCache(ctx context.Context) error
}

// RecomputeTrigger queues an asynchronous statistics recompute.
type RecomputeTrigger interface {
	Trigger(ctx context.Context) (string, error)
}

// StatisticsHandler handles statistics HTTP requests.
type StatisticsHandler struct {
	statisticsUC StatisticsService
	recompute    RecomputeTrigger
}

// NewStatisticsHandler creates a new StatisticsHandler.
func NewStatisticsHandler(statisticsUC StatisticsService, recompute RecomputeTrigger) *StatisticsHandler {
	return &StatisticsHandler{
		statisticsUC: statisticsUC,
		recompute:    recompute,
	}
}

// Get returns the snapshot cached for ?task_id, or a freshly computed one.
func (h *StatisticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.statisticsUC.GetStatistics(r.Context(), r.URL.Query().Get("task_id"))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to compute statistics", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.StatisticsFromDomain(snap))
}

// Recompute queues a recompute task.
func (h *StatisticsHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	taskID, err := h.recompute.Trigger(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to queue recompute", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, dto.RecomputeResponse{
		Message: "Statistics recompute queued",
		TaskID:  taskID,
	})
}

// ClearCache drops every cached snapshot.
func (h *StatisticsHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.statisticsUC.ClearCache(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear statistics cache", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
