package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/txstats/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestQueue(t *testing.T) (*TaskQueue, *fakeClock) {
	t.Helper()
	client, _ := newTestRedisClient(t)

	clock := &fakeClock{now: time.Date(2024, 12, 12, 12, 0, 0, 0, time.UTC)}
	q := NewTaskQueue(client)
	q.now = clock.Now
	return q, clock
}

func TestTaskQueue_FIFO(t *testing.T) {
	q, clock := newTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, domain.NewRecomputeTask(id, clock.now)))
	}

	for _, want := range []string{"a", "b", "c"} {
		task, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, want, task.ID)
		assert.Equal(t, domain.TaskStateQueued, task.State)
	}

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestTaskQueue_AckRemovesFromProcessing(t *testing.T) {
	q, clock := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.NewRecomputeTask("a", clock.now)))

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)

	_, processing, _, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), processing)

	// State changes after dequeue must not prevent the ack from matching.
	require.NoError(t, task.Start())
	task.Succeed()
	require.NoError(t, q.Ack(ctx, task))

	ready, processing, delayed, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, ready)
	assert.Zero(t, processing)
	assert.Zero(t, delayed)
}

func TestTaskQueue_NackDelaysRedelivery(t *testing.T) {
	q, clock := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.NewRecomputeTask("a", clock.now)))

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, task.Start())
	require.True(t, task.Fail(errors.New("db down"), 3))

	require.NoError(t, q.Nack(ctx, task, 5*time.Minute))

	_, processing, delayed, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
	assert.Equal(t, int64(1), delayed)

	clock.now = clock.now.Add(4 * time.Minute)
	next, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, next, "task must not be redelivered before its delay")

	clock.now = clock.now.Add(time.Minute)
	next, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "a", next.ID)
	assert.Equal(t, 1, next.Retries)
	assert.Equal(t, domain.TaskStateFailedRetrying, next.State)
	assert.Equal(t, "db down", next.LastError)
}

func TestTaskQueue_RecoverRequeuesStrandedTasks(t *testing.T) {
	q, clock := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.NewRecomputeTask("a", clock.now)))
	require.NoError(t, q.Enqueue(ctx, domain.NewRecomputeTask("b", clock.now)))

	// Claimed but never acknowledged.
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)
	_, err = q.Dequeue(ctx)
	require.NoError(t, err)

	recovered, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "a", first.ID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "b", second.ID)
}

func TestTaskQueue_DequeueDropsUndecodablePayload(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.client.LPush(ctx, q.ready, "not-json").Err())

	task, err := q.Dequeue(ctx)
	assert.Error(t, err)
	assert.Nil(t, task)

	_, processing, _, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestTaskQueue_AckUnknownTaskIsNoop(t *testing.T) {
	q, clock := newTestQueue(t)
	assert.NoError(t, q.Ack(context.Background(), domain.NewRecomputeTask("ghost", clock.now)))
}

func TestTaskQueue_ReclaimsExpiredClaim(t *testing.T) {
	q, clock := newTestQueue(t)
	q.SetVisibilityTimeout(time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.NewRecomputeTask("a", clock.now)))

	claimed, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// A failed Nack leaves the claim behind; it is honoured until it expires.
	clock.now = clock.now.Add(59 * time.Second)
	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, task)

	clock.now = clock.now.Add(time.Second)
	task, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "a", task.ID)

	require.NoError(t, q.Ack(ctx, task))

	ready, processing, delayed, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, ready+processing+delayed)

	claims, err := q.client.ZCard(ctx, q.claims).Result()
	require.NoError(t, err)
	assert.Zero(t, claims)
}

func TestTaskQueue_NackClearsClaim(t *testing.T) {
	q, clock := newTestQueue(t)
	q.SetVisibilityTimeout(time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.NewRecomputeTask("a", clock.now)))
	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, task, time.Hour))

	claims, err := q.client.ZCard(ctx, q.claims).Result()
	require.NoError(t, err)
	assert.Zero(t, claims)

	// The retry stays delayed even after the visibility timeout passes.
	clock.now = clock.now.Add(2 * time.Minute)
	task, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, task)
}
