package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/iho/txstats/internal/domain"
	"github.com/iho/txstats/internal/infrastructure/metrics"
	"github.com/iho/txstats/internal/usecase"
	"github.com/iho/txstats/internal/usecase/mocks"
)

func validInput(id string) usecase.CreateTransactionInput {
	return usecase.CreateTransactionInput{
		TransactionID: id,
		UserID:        "user001",
		Amount:        decimal.RequireFromString("100.50"),
		Currency:      "USD",
		Timestamp:     time.Now().UTC(),
	}
}

type fixture struct {
	txMgr *mocks.StubTransactionManager
	repo  *mocks.InMemoryTransactionRepository
	queue *mocks.InMemoryTaskQueue
	cache *mocks.InMemoryStatisticsCache
	uc    *usecase.TransactionUseCase
}

func newFixture() *fixture {
	f := &fixture{
		txMgr: mocks.NewStubTransactionManager(),
		repo:  mocks.NewInMemoryTransactionRepository(),
		queue: mocks.NewInMemoryTaskQueue(),
		cache: mocks.NewInMemoryStatisticsCache(),
	}
	recompute := usecase.NewRecomputeUseCase(f.queue, &mocks.SequenceIDGenerator{})
	f.uc = usecase.NewTransactionUseCase(f.txMgr, f.repo, recompute, f.cache, zerolog.Nop())
	return f
}

func TestTransactionUseCase_CreateTransaction(t *testing.T) {
	f := newFixture()

	taskID, err := f.uc.CreateTransaction(context.Background(), validInput("test123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if taskID != "task-1" {
		t.Fatalf("expected task-1, got %q", taskID)
	}

	if n, _ := f.repo.Count(context.Background()); n != 1 {
		t.Fatalf("expected 1 stored record, got %d", n)
	}

	if len(f.txMgr.Txs) != 1 || !f.txMgr.Txs[0].Committed {
		t.Fatalf("expected one committed transaction")
	}

	task, _ := f.queue.Dequeue(context.Background())
	if task == nil || task.ID != taskID || task.State != domain.TaskStateQueued {
		t.Fatalf("expected queued task %s, got %+v", taskID, task)
	}
}

func TestTransactionUseCase_CreateTransaction_Duplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.uc.CreateTransaction(ctx, validInput("dup")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := validInput("dup")
	second.Amount = decimal.NewFromInt(999)
	_, err := f.uc.CreateTransaction(ctx, second)
	if !errors.Is(err, domain.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}

	if n, _ := f.repo.Count(ctx); n != 1 {
		t.Fatalf("expected store to still hold 1 record, got %d", n)
	}

	top, _ := f.repo.ListPage(ctx, 0, 10)
	if !top[0].Amount.Equal(decimal.RequireFromString("100.50")) {
		t.Fatalf("expected original amount to be kept, got %s", top[0].Amount)
	}

	if !f.txMgr.Txs[1].RolledBack {
		t.Fatal("expected duplicate insert to roll back")
	}

	if f.queue.Pending() != 1 {
		t.Fatalf("expected only the first insert to enqueue a task, got %d", f.queue.Pending())
	}
}

func TestTransactionUseCase_CreateTransaction_ValidationRejectedBeforePersistence(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*usecase.CreateTransactionInput)
		want   error
	}{
		{"zero amount", func(in *usecase.CreateTransactionInput) { in.Amount = decimal.Zero }, domain.ErrInvalidAmount},
		{"negative amount", func(in *usecase.CreateTransactionInput) { in.Amount = decimal.NewFromInt(-1) }, domain.ErrInvalidAmount},
		{"unknown currency", func(in *usecase.CreateTransactionInput) { in.Currency = "XYZ" }, domain.ErrInvalidCurrency},
		{"lowercase currency", func(in *usecase.CreateTransactionInput) { in.Currency = "usd" }, domain.ErrCurrencyNotUppercase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := validInput("x")
			tt.mutate(&in)

			_, err := f.uc.CreateTransaction(context.Background(), in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(f.txMgr.Txs) != 0 {
				t.Fatal("store must not be touched for invalid input")
			}
		})
	}
}

func TestTransactionUseCase_CreateTransaction_EnqueueFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.queue.EnqueueFunc = func(context.Context, *domain.RecomputeTask) error {
		return errors.New("redis down")
	}

	taskID, err := f.uc.CreateTransaction(context.Background(), validInput("1"))
	if err != nil {
		t.Fatalf("expected ingestion to succeed, got %v", err)
	}
	if taskID == "" {
		t.Fatal("expected a task id even when enqueue fails")
	}
	if n, _ := f.repo.Count(context.Background()); n != 1 {
		t.Fatalf("expected record to be persisted, got %d", n)
	}
}

func TestTransactionUseCase_CreateTransaction_StoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	storeErr := errors.New("insert failed")

	txMgr := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	repo := mocks.NewMockTransactionRepository(ctrl)
	queue := mocks.NewMockTaskQueue(ctrl)

	txMgr.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	repo.EXPECT().ExistsTx(gomock.Any(), tx, "1").Return(false, nil)
	repo.EXPECT().CreateTx(gomock.Any(), tx, gomock.Any()).Return(false, storeErr)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	// Nothing is enqueued when the insert fails.
	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	uc := usecase.NewTransactionUseCase(txMgr, repo, usecase.NewRecomputeUseCase(queue, &mocks.SequenceIDGenerator{}), nil, zerolog.Nop())

	_, err := uc.CreateTransaction(context.Background(), validInput("1"))
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestTransactionUseCase_CreateTransaction_LostRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txMgr := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	repo := mocks.NewMockTransactionRepository(ctrl)

	txMgr.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	repo.EXPECT().ExistsTx(gomock.Any(), tx, "1").Return(false, nil)
	repo.EXPECT().CreateTx(gomock.Any(), tx, gomock.Any()).Return(false, nil)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	uc := usecase.NewTransactionUseCase(txMgr, repo, usecase.NewRecomputeUseCase(mocks.NewInMemoryTaskQueue(), &mocks.SequenceIDGenerator{}), nil, zerolog.Nop())

	_, err := uc.CreateTransaction(context.Background(), validInput("1"))
	if !errors.Is(err, domain.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestTransactionUseCase_CreateTransaction_BeginFails(t *testing.T) {
	f := newFixture()
	f.txMgr.BeginFunc = func(context.Context) (usecase.Transaction, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	_, err := f.uc.CreateTransaction(context.Background(), validInput("1"))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestTransactionUseCase_DeleteAllTransactions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if _, err := f.uc.CreateTransaction(ctx, validInput(id)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	_ = f.cache.Store(ctx, "task-1", &domain.StatisticsSnapshot{TotalTransactions: 3}, time.Hour)

	if err := f.uc.DeleteAllTransactions(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := usecase.NewStatisticsUseCase(f.repo, nil, usecase.StatisticsConfig{PageSize: 10, TopK: 3}, zerolog.Nop())
	snap, err := stats.Compute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.TotalTransactions != 0 || len(snap.TopTransactions) != 0 {
		t.Fatalf("expected empty statistics after delete, got %+v", snap)
	}

	if f.cache.Len() != 0 {
		t.Fatalf("expected cache to be cleared, got %d entries", f.cache.Len())
	}
}

func TestTransactionUseCase_DeleteAllTransactions_CacheFailureIgnored(t *testing.T) {
	f := newFixture()
	f.cache.ClearFunc = func(context.Context) (int64, error) { return 0, errors.New("redis down") }

	if err := f.uc.DeleteAllTransactions(context.Background()); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
}

func TestTransactionUseCase_DeleteAllTransactions_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	storeErr := errors.New("delete failed")
	txMgr := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	repo := mocks.NewMockTransactionRepository(ctrl)
	cache := mocks.NewMockStatisticsCache(ctrl)

	txMgr.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	repo.EXPECT().DeleteAllTx(gomock.Any(), tx).Return(int64(0), storeErr)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	cache.EXPECT().Clear(gomock.Any()).Times(0)

	uc := usecase.NewTransactionUseCase(txMgr, repo, usecase.NewRecomputeUseCase(mocks.NewInMemoryTaskQueue(), &mocks.SequenceIDGenerator{}), cache, zerolog.Nop())

	if err := uc.DeleteAllTransactions(context.Background()); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

type countingRetrier struct {
	attempts int
	max      int
}

func (r *countingRetrier) Retry(_ context.Context, operation func() error) error {
	var err error
	for r.attempts < r.max {
		r.attempts++
		if err = operation(); err == nil {
			return nil
		}
	}
	return err
}

func TestTransactionUseCase_CreateTransaction_RetriesTransientFailure(t *testing.T) {
	f := newFixture()
	retrier := &countingRetrier{max: 3}
	f.uc.SetRetrier(retrier)

	calls := 0
	f.txMgr.BeginFunc = func(context.Context) (usecase.Transaction, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("serialization failure")
		}
		tx := &mocks.StubTransaction{}
		f.txMgr.Txs = append(f.txMgr.Txs, tx)
		return tx, nil
	}

	if _, err := f.uc.CreateTransaction(context.Background(), validInput("retry-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if retrier.attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", retrier.attempts)
	}
	if n, _ := f.repo.Count(context.Background()); n != 1 {
		t.Fatalf("expected 1 stored record, got %d", n)
	}
}

func TestTransactionUseCase_GetTransaction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.uc.CreateTransaction(ctx, validInput("get-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := f.uc.GetTransaction(ctx, "get-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "get-1" || !got.Amount.Equal(decimal.RequireFromString("100.50")) {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := f.uc.GetTransaction(ctx, "missing"); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}

	if _, err := f.uc.GetTransaction(ctx, ""); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestTransactionUseCase_RecordsMetrics(t *testing.T) {
	f := newFixture()
	m := metrics.New(prometheus.NewRegistry())
	f.uc.SetMetrics(m)
	ctx := context.Background()

	if _, err := f.uc.CreateTransaction(ctx, validInput("m-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = f.uc.CreateTransaction(ctx, validInput("m-1"))

	bad := validInput("m-2")
	bad.Currency = "usd"
	_, _ = f.uc.CreateTransaction(ctx, bad)

	if err := f.uc.DeleteAllTransactions(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(m.TransactionsIngested); got != 1 {
		t.Fatalf("expected 1 ingested, got %v", got)
	}
	if got := testutil.ToFloat64(m.TransactionsRejected.WithLabelValues("duplicate")); got != 1 {
		t.Fatalf("expected 1 duplicate rejection, got %v", got)
	}
	if got := testutil.ToFloat64(m.TransactionsRejected.WithLabelValues("validation")); got != 1 {
		t.Fatalf("expected 1 validation rejection, got %v", got)
	}
	if got := testutil.ToFloat64(m.TransactionsDeleted); got != 1 {
		t.Fatalf("expected 1 deleted, got %v", got)
	}
}
