package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/txstats/internal/domain"
	"github.com/iho/txstats/internal/infrastructure/metrics"
	"github.com/iho/txstats/internal/usecase"
)

// Computer produces a statistics snapshot from the record store.
type Computer interface {
	Compute(ctx context.Context) (*domain.StatisticsSnapshot, error)
}

// Recoverer is implemented by queues that can requeue tasks claimed by a
// worker that never acknowledged them.
type Recoverer interface {
	Recover(ctx context.Context) (int, error)
}

// DepthReporter is implemented by queues that expose their backlog.
type DepthReporter interface {
	Depth(ctx context.Context) (ready, processing, delayed int64, err error)
}

// Worker consumes recompute tasks, computes statistics and caches the
// snapshot under the task ID.
type Worker struct {
	queue       usecase.TaskQueue
	computer    Computer
	cache       usecase.StatisticsCache
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	concurrency int
	interval    time.Duration
	cacheTTL    time.Duration
	maxRetries  int
	retryDelay  time.Duration
}

// Config for Worker.
type Config struct {
	Queue       usecase.TaskQueue
	Computer    Computer
	Cache       usecase.StatisticsCache
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	Concurrency int           // Number of consumer goroutines
	Interval    time.Duration // Polling interval when the queue is empty
	CacheTTL    time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// New creates a new Worker.
func New(cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = usecase.StatisticsCacheTTL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Worker{
		queue:       cfg.Queue,
		computer:    cfg.Computer,
		cache:       cfg.Cache,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		interval:    cfg.Interval,
		cacheTTL:    cfg.CacheTTL,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}
}

// Start requeues stranded tasks and runs the consumers until ctx is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if r, ok := w.queue.(Recoverer); ok {
		n, err := r.Recover(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to recover in-flight tasks")
		} else if n > 0 {
			w.logger.Warn().Int("count", n).Msg("requeued unacknowledged tasks")
		}
	}

	w.logger.Info().
		Int("concurrency", w.concurrency).
		Dur("interval", w.interval).
		Int("max_retries", w.maxRetries).
		Dur("retry_delay", w.retryDelay).
		Msg("recompute worker started")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		id := i
		g.Go(func() error {
			return w.consume(ctx, id)
		})
	}

	err := g.Wait()
	w.logger.Info().Msg("recompute worker shutting down")
	return err
}

func (w *Worker) consume(ctx context.Context, id int) error {
	logger := w.logger.With().Int("consumer", id).Logger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Drain immediately on start
	w.drain(ctx, logger)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx, logger)
		}
	}
}

// drain processes tasks until the queue reports none ready.
func (w *Worker) drain(ctx context.Context, logger zerolog.Logger) {
	for ctx.Err() == nil {
		processed, err := w.processNext(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("error processing recompute task")
			break
		}
		if !processed {
			break
		}
	}

	w.reportDepth(ctx)
}

// processNext handles one task and reports whether there was one.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if task == nil {
		return false, nil
	}

	return true, w.process(ctx, task)
}

func (w *Worker) process(ctx context.Context, task *domain.RecomputeTask) error {
	logger := w.logger.With().Str("task_id", task.ID).Int("retries", task.Retries).Logger()

	if err := task.Start(); err != nil {
		logger.Error().Err(err).Msg("dropping task in unexpected state")
		return w.queue.Ack(ctx, task)
	}

	start := time.Now()
	err := w.run(ctx, task)
	if w.metrics != nil {
		w.metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	}

	if err == nil {
		task.Succeed()
		w.recordState(task.State)
		logger.Info().Dur("duration", time.Since(start)).Msg("statistics recomputed")
		return w.queue.Ack(ctx, task)
	}

	// Interrupted by shutdown: leave the claim in place so Recover
	// redelivers it without spending a retry.
	if ctx.Err() != nil {
		logger.Warn().Err(err).Msg("recompute interrupted by shutdown")
		return nil
	}

	if task.Fail(err, w.maxRetries) {
		w.recordState(task.State)
		logger.Warn().
			Err(err).
			Int("attempt", task.Retries).
			Dur("retry_in", w.retryDelay).
			Msg("statistics recompute failed, scheduling retry")
		return w.queue.Nack(ctx, task, w.retryDelay)
	}

	w.recordState(task.State)
	logger.Error().
		Err(fmt.Errorf("%w: %w", domain.ErrTaskRetryExhausted, err)).
		Msg("statistics recompute failed permanently")
	return w.queue.Ack(ctx, task)
}

func (w *Worker) run(ctx context.Context, task *domain.RecomputeTask) error {
	snapshot, err := w.computer.Compute(ctx)
	if err != nil {
		return err
	}

	if err := w.cache.Store(ctx, task.ID, snapshot, w.cacheTTL); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}

	return nil
}

func (w *Worker) recordState(state domain.TaskState) {
	if w.metrics != nil {
		w.metrics.RecomputeTasks.WithLabelValues(string(state)).Inc()
	}
}

func (w *Worker) reportDepth(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	dr, ok := w.queue.(DepthReporter)
	if !ok {
		return
	}

	ready, processing, delayed, err := dr.Depth(ctx)
	if err != nil {
		return
	}

	w.metrics.TaskQueueDepth.WithLabelValues("ready").Set(float64(ready))
	w.metrics.TaskQueueDepth.WithLabelValues("processing").Set(float64(processing))
	w.metrics.TaskQueueDepth.WithLabelValues("delayed").Set(float64(delayed))
}
