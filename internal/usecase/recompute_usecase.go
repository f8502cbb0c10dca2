package usecase

import (
	"context"
	"time"

	"github.com/iho/txstats/internal/domain"
)

// RecomputeUseCase creates recompute tasks and hands them to the queue.
type RecomputeUseCase struct {
	queue TaskQueue
	idGen IDGenerator
	now   func() time.Time
}

// NewRecomputeUseCase creates a new RecomputeUseCase.
func NewRecomputeUseCase(queue TaskQueue, idGen IDGenerator) *RecomputeUseCase {
	return &RecomputeUseCase{
		queue: queue,
		idGen: idGen,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Trigger enqueues a fresh task and returns its ID. The ID is returned even
// when the enqueue fails so callers that treat dispatch as fire-and-forget
// can still report it.
func (uc *RecomputeUseCase) Trigger(ctx context.Context) (string, error) {
	task := domain.NewRecomputeTask(uc.idGen.Generate(), uc.now())
	return task.ID, uc.queue.Enqueue(ctx, task)
}
