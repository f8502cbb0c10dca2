package mocks

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/iho/txstats/internal/domain"
	"github.com/iho/txstats/internal/usecase"
)

// InMemoryTransactionRepository is an in-memory TransactionRepository.
// Writes made through a transaction are applied immediately; tests that need
// rollback semantics should use the gomock repository instead.
type InMemoryTransactionRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.Transaction

	CountFunc              func(ctx context.Context) (int64, error)
	CurrencyAggregatesFunc func(ctx context.Context) ([]domain.CurrencyAggregate, error)
	ListPageFunc           func(ctx context.Context, offset, limit int) ([]domain.TopEntry, error)

	// PageRequests records every (offset, limit) pair passed to ListPage.
	PageRequests [][2]int
}

func NewInMemoryTransactionRepository() *InMemoryTransactionRepository {
	return &InMemoryTransactionRepository{
		records: make(map[string]*domain.Transaction),
	}
}

// Seed inserts records directly, bypassing duplicate checks.
func (r *InMemoryTransactionRepository) Seed(records ...*domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
}

func (r *InMemoryTransactionRepository) ExistsTx(ctx context.Context, tx usecase.Transaction, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return ok, nil
}

func (r *InMemoryTransactionRepository) CreateTx(ctx context.Context, tx usecase.Transaction, record *domain.Transaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.ID]; ok {
		return false, nil
	}
	r.records[record.ID] = record
	return true, nil
}

func (r *InMemoryTransactionRepository) DeleteAllTx(ctx context.Context, tx usecase.Transaction) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.records))
	r.records = make(map[string]*domain.Transaction)
	return n, nil
}

func (r *InMemoryTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return rec, nil
}

func (r *InMemoryTransactionRepository) Count(ctx context.Context) (int64, error) {
	if r.CountFunc != nil {
		return r.CountFunc(ctx)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.records)), nil
}

func (r *InMemoryTransactionRepository) CurrencyAggregates(ctx context.Context) ([]domain.CurrencyAggregate, error) {
	if r.CurrencyAggregatesFunc != nil {
		return r.CurrencyAggregatesFunc(ctx)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	byCurrency := make(map[domain.Currency]*domain.CurrencyAggregate)
	for _, rec := range r.records {
		agg, ok := byCurrency[rec.Currency]
		if !ok {
			agg = &domain.CurrencyAggregate{Currency: rec.Currency}
			byCurrency[rec.Currency] = agg
		}
		agg.Sum = agg.Sum.Add(rec.Amount)
		agg.Count++
	}

	result := make([]domain.CurrencyAggregate, 0, len(byCurrency))
	for _, agg := range byCurrency {
		result = append(result, *agg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Currency < result[j].Currency })
	return result, nil
}

func (r *InMemoryTransactionRepository) ListPage(ctx context.Context, offset, limit int) ([]domain.TopEntry, error) {
	r.mu.Lock()
	r.PageRequests = append(r.PageRequests, [2]int{offset, limit})
	r.mu.Unlock()

	if r.ListPageFunc != nil {
		return r.ListPageFunc(ctx, offset, limit)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return []domain.TopEntry{}, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	page := make([]domain.TopEntry, 0, end-offset)
	for _, id := range ids[offset:end] {
		page = append(page, domain.TopEntry{ID: id, Amount: r.records[id].Amount})
	}
	return page, nil
}

// StubTransactionManager is a TransactionManager backed by StubTransaction.
type StubTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)

	mu  sync.Mutex
	Txs []*StubTransaction
}

func NewStubTransactionManager() *StubTransactionManager {
	return &StubTransactionManager{}
}

func (m *StubTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	tx := &StubTransaction{}
	m.mu.Lock()
	m.Txs = append(m.Txs, tx)
	m.mu.Unlock()
	return tx, nil
}

// StubTransaction records whether it was committed or rolled back.
// Rollback after Commit is a no-op, matching pgx.
type StubTransaction struct {
	CommitFunc func(ctx context.Context) error

	Committed  bool
	RolledBack bool
}

func (t *StubTransaction) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		if err := t.CommitFunc(ctx); err != nil {
			return err
		}
	}
	t.Committed = true
	return nil
}

func (t *StubTransaction) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// SequenceIDGenerator returns prefix-1, prefix-2, ...
type SequenceIDGenerator struct {
	Prefix string

	mu      sync.Mutex
	counter int
}

func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	prefix := g.Prefix
	if prefix == "" {
		prefix = "task"
	}
	return prefix + "-" + strconv.Itoa(g.counter)
}

// InMemoryTaskQueue is a FIFO TaskQueue. Nacked tasks become ready once the
// queue clock passes their due time.
type InMemoryTaskQueue struct {
	mu      sync.Mutex
	ready   []*domain.RecomputeTask
	delayed []delayedTask

	EnqueueFunc func(ctx context.Context, task *domain.RecomputeTask) error
	Now         func() time.Time

	Acked  []*domain.RecomputeTask
	Nacked []NackRecord
}

// NackRecord captures one Nack call.
type NackRecord struct {
	Task  domain.RecomputeTask
	Delay time.Duration
}

type delayedTask struct {
	due  time.Time
	task *domain.RecomputeTask
}

func NewInMemoryTaskQueue() *InMemoryTaskQueue {
	return &InMemoryTaskQueue{Now: time.Now}
}

func (q *InMemoryTaskQueue) Enqueue(ctx context.Context, task *domain.RecomputeTask) error {
	if q.EnqueueFunc != nil {
		return q.EnqueueFunc(ctx, task)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *task
	q.ready = append(q.ready, &cp)
	return nil
}

func (q *InMemoryTaskQueue) Dequeue(ctx context.Context) (*domain.RecomputeTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.Now()
	pending := q.delayed[:0]
	for _, d := range q.delayed {
		if !d.due.After(now) {
			q.ready = append(q.ready, d.task)
		} else {
			pending = append(pending, d)
		}
	}
	q.delayed = pending

	if len(q.ready) == 0 {
		return nil, nil
	}
	task := q.ready[0]
	q.ready = q.ready[1:]
	return task, nil
}

func (q *InMemoryTaskQueue) Ack(ctx context.Context, task *domain.RecomputeTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *task
	q.Acked = append(q.Acked, &cp)
	return nil
}

func (q *InMemoryTaskQueue) Nack(ctx context.Context, task *domain.RecomputeTask, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *task
	q.Nacked = append(q.Nacked, NackRecord{Task: cp, Delay: delay})
	q.delayed = append(q.delayed, delayedTask{due: q.Now().Add(delay), task: &cp})
	return nil
}

// Pending returns how many tasks are ready or delayed.
func (q *InMemoryTaskQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready) + len(q.delayed)
}

// InMemoryStatisticsCache is a map-backed StatisticsCache that ignores TTLs.
type InMemoryStatisticsCache struct {
	mu      sync.Mutex
	entries map[string]*domain.StatisticsSnapshot

	StoreFunc func(ctx context.Context, taskID string, snapshot *domain.StatisticsSnapshot, ttl time.Duration) error
	ClearFunc func(ctx context.Context) (int64, error)

	LastTTL time.Duration
}

func NewInMemoryStatisticsCache() *InMemoryStatisticsCache {
	return &InMemoryStatisticsCache{entries: make(map[string]*domain.StatisticsSnapshot)}
}

func (c *InMemoryStatisticsCache) Store(ctx context.Context, taskID string, snapshot *domain.StatisticsSnapshot, ttl time.Duration) error {
	if c.StoreFunc != nil {
		return c.StoreFunc(ctx, taskID, snapshot, ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[taskID] = snapshot
	c.LastTTL = ttl
	return nil
}

func (c *InMemoryStatisticsCache) Load(ctx context.Context, taskID string) (*domain.StatisticsSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.entries[taskID]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return snap, nil
}

func (c *InMemoryStatisticsCache) Clear(ctx context.Context) (int64, error) {
	if c.ClearFunc != nil {
		return c.ClearFunc(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := int64(len(c.entries))
	c.entries = make(map[string]*domain.StatisticsSnapshot)
	return n, nil
}

// Len returns the number of cached snapshots.
func (c *InMemoryStatisticsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
