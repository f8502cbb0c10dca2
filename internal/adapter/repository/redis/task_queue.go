package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/txstats/internal/domain"
)

const (
	defaultQueuePrefix = "tasks:statistics:"
	promoteBatchSize   = 100
	reclaimBatchSize   = 100

	// DefaultVisibilityTimeout is how long a claimed task may stay
	// unacknowledged before another Dequeue hands it out again.
	DefaultVisibilityTimeout = 10 * time.Minute
)

// promoteScript moves due entries from the delayed set (KEYS[1]) to the
// ready list (KEYS[2]).
var promoteScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, payload in ipairs(due) do
	redis.call("ZREM", KEYS[1], payload)
	redis.call("LPUSH", KEYS[2], payload)
end
return #due
`)

// claimScript moves the oldest ready task (KEYS[1]) to the processing list
// (KEYS[2]) and records the claim time ARGV[1] in the claims set (KEYS[3]).
var claimScript = redis.NewScript(`
local payload = redis.call("RPOPLPUSH", KEYS[1], KEYS[2])
if not payload then
	return false
end
redis.call("ZADD", KEYS[3], ARGV[1], payload)
return payload
`)

// reclaimScript returns claims made at or before ARGV[1] from the processing
// list (KEYS[2]) to the head of the ready list (KEYS[3]).
var reclaimScript = redis.NewScript(`
local stale = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
local reclaimed = 0
for _, payload in ipairs(stale) do
	redis.call("ZREM", KEYS[1], payload)
	if redis.call("LREM", KEYS[2], 1, payload) > 0 then
		redis.call("RPUSH", KEYS[3], payload)
		reclaimed = reclaimed + 1
	end
end
return reclaimed
`)

// TaskQueue implements usecase.TaskQueue on Redis.
//
// Ready tasks live in a list. Dequeue moves a task into a processing list
// where it stays until Ack or Nack, so a crashed worker does not lose it.
// Each claim is timestamped; a claim older than the visibility timeout is
// handed out again, which covers a failed Ack or Nack. Retries wait in a
// sorted set scored by their due time in milliseconds.
type TaskQueue struct {
	client     *redis.Client
	ready      string
	processing string
	claims     string
	delayed    string
	visibility time.Duration
	now        func() time.Time
}

// NewTaskQueue creates a new TaskQueue.
func NewTaskQueue(client *redis.Client) *TaskQueue {
	return &TaskQueue{
		client:     client,
		ready:      defaultQueuePrefix + "ready",
		processing: defaultQueuePrefix + "processing",
		claims:     defaultQueuePrefix + "claims",
		delayed:    defaultQueuePrefix + "delayed",
		visibility: DefaultVisibilityTimeout,
		now:        time.Now,
	}
}

// SetVisibilityTimeout sets how long a claim is honoured. It must exceed the
// longest expected recompute, or a running task is delivered twice.
func (q *TaskQueue) SetVisibilityTimeout(d time.Duration) {
	if d > 0 {
		q.visibility = d
	}
}

// Enqueue appends a task to the ready list.
func (q *TaskQueue) Enqueue(ctx context.Context, task *domain.RecomputeTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}

	return q.client.LPush(ctx, q.ready, payload).Err()
}

// Dequeue reclaims expired claims, promotes due retries and claims the
// oldest ready task. It returns nil when nothing is ready.
func (q *TaskQueue) Dequeue(ctx context.Context) (*domain.RecomputeTask, error) {
	if _, err := q.ReclaimStale(ctx); err != nil {
		return nil, err
	}
	if _, err := q.PromoteDue(ctx); err != nil {
		return nil, err
	}

	payload, err := claimScript.Run(ctx, q.client,
		[]string{q.ready, q.processing, q.claims},
		q.now().UnixMilli(),
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	task, err := decodeTask(payload)
	if err != nil {
		// Unreadable payloads would be redelivered forever.
		q.release(ctx, q.client.TxPipeline(), payload)
		return nil, err
	}

	return task, nil
}

// Ack removes a claimed task from the processing list.
func (q *TaskQueue) Ack(ctx context.Context, task *domain.RecomputeTask) error {
	payload, err := q.findProcessing(ctx, task.ID)
	if err != nil {
		return err
	}
	if payload == "" {
		return nil
	}

	return q.release(ctx, q.client.TxPipeline(), payload)
}

// Nack releases a claimed task and schedules it to become ready after delay.
// The stored copy reflects the task's current state and retry count.
func (q *TaskQueue) Nack(ctx context.Context, task *domain.RecomputeTask, delay time.Duration) error {
	claimed, err := q.findProcessing(ctx, task.ID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}

	due := q.now().Add(delay).UnixMilli()

	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, q.delayed, redis.Z{Score: float64(due), Member: payload})
	if claimed == "" {
		_, err = pipe.Exec(ctx)
		return err
	}

	return q.release(ctx, pipe, claimed)
}

// release drops a claim together with whatever is already queued on pipe.
func (q *TaskQueue) release(ctx context.Context, pipe redis.Pipeliner, payload string) error {
	pipe.LRem(ctx, q.processing, 1, payload)
	pipe.ZRem(ctx, q.claims, payload)
	_, err := pipe.Exec(ctx)
	return err
}

// ReclaimStale makes tasks claimed longer than the visibility timeout ago
// ready again and returns how many it moved.
func (q *TaskQueue) ReclaimStale(ctx context.Context) (int64, error) {
	cutoff := strconv.FormatInt(q.now().Add(-q.visibility).UnixMilli(), 10)
	return reclaimScript.Run(ctx, q.client,
		[]string{q.claims, q.processing, q.ready},
		cutoff, reclaimBatchSize,
	).Int64()
}

// PromoteDue moves retries whose delay has elapsed to the ready list.
func (q *TaskQueue) PromoteDue(ctx context.Context) (int64, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	return promoteScript.Run(ctx, q.client, []string{q.delayed, q.ready}, now, promoteBatchSize).Int64()
}

// Recover requeues every task left in the processing list by a worker that
// died before acknowledging it. Call it before any worker starts dequeuing;
// afterwards expired claims are handled by ReclaimStale.
func (q *TaskQueue) Recover(ctx context.Context) (int, error) {
	recovered := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.ready, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return recovered, q.client.Del(ctx, q.claims).Err()
		}
		if err != nil {
			return recovered, err
		}
		recovered++
	}
}

// Depth returns the number of ready, in-flight and delayed tasks.
func (q *TaskQueue) Depth(ctx context.Context) (ready, processing, delayed int64, err error) {
	pipe := q.client.Pipeline()
	readyCmd := pipe.LLen(ctx, q.ready)
	processingCmd := pipe.LLen(ctx, q.processing)
	delayedCmd := pipe.ZCard(ctx, q.delayed)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, 0, err
	}

	return readyCmd.Val(), processingCmd.Val(), delayedCmd.Val(), nil
}

func (q *TaskQueue) findProcessing(ctx context.Context, taskID string) (string, error) {
	payloads, err := q.client.LRange(ctx, q.processing, 0, -1).Result()
	if err != nil {
		return "", err
	}

	for _, payload := range payloads {
		task, err := decodeTask(payload)
		if err != nil {
			continue
		}
		if task.ID == taskID {
			return payload, nil
		}
	}

	return "", nil
}

func decodeTask(payload string) (*domain.RecomputeTask, error) {
	var task domain.RecomputeTask
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}
