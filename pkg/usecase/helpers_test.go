package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// mockVectorIndex wraps the in-memory index with switchable failures so a
// test can break one store operation at a time.
type mockVectorIndex struct {
	*memory.VectorIndex
	upsertErr error
	getErr    error
	deleteErr error
	listErr   error
	searchErr error
	pingErr   error
}

func (m *mockVectorIndex) Upsert(ctx context.Context, mem *model.Memory) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	return m.VectorIndex.Upsert(ctx, mem)
}

func (m *mockVectorIndex) Get(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.VectorIndex.Get(ctx, id)
}

func (m *mockVectorIndex) Delete(ctx context.Context, id types.MemoryID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	return m.VectorIndex.Delete(ctx, id)
}

func (m *mockVectorIndex) Search(ctx context.Context, embedding []float32, limit int, filter *model.SearchFilter) ([]*model.ScoredMemory, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.VectorIndex.Search(ctx, embedding, limit, filter)
}

func (m *mockVectorIndex) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]*model.Memory, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.VectorIndex.ListUpdatedSince(ctx, since, limit)
}

func (m *mockVectorIndex) Ping(ctx context.Context) error {
	if m.pingErr != nil {
		return m.pingErr
	}
	return m.VectorIndex.Ping(ctx)
}

// mockWarehouse wraps the in-memory warehouse with switchable failures
type mockWarehouse struct {
	*memory.Warehouse
	batchErr error
	getErr   error
	readErr  error
	markErr  error
	pingErr  error
}

func (m *mockWarehouse) BatchPut(ctx context.Context, memories []*model.Memory) (*model.BatchResult, error) {
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	return m.Warehouse.BatchPut(ctx, memories)
}

func (m *mockWarehouse) Get(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.Warehouse.Get(ctx, id)
}

func (m *mockWarehouse) ReadSince(ctx context.Context, cursor time.Time, limit int) ([]*model.Memory, time.Time, error) {
	if m.readErr != nil {
		return nil, time.Time{}, m.readErr
	}
	return m.Warehouse.ReadSince(ctx, cursor, limit)
}

func (m *mockWarehouse) MarkDeleted(ctx context.Context, id types.MemoryID, now time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	return m.Warehouse.MarkDeleted(ctx, id, now)
}

func (m *mockWarehouse) Ping(ctx context.Context) error {
	if m.pingErr != nil {
		return m.pingErr
	}
	return m.Warehouse.Ping(ctx)
}

// mockOffsetStore wraps the in-memory offset store with a one-shot hook
// that fires between a pass's read and its compare-and-set, which is how
// tests stage a concurrent pass winning the advance.
type mockOffsetStore struct {
	*memory.OffsetStore
	beforeCAS func()
}

func (m *mockOffsetStore) CompareAndSet(ctx context.Context, old, new *model.SyncOffset) (bool, error) {
	if m.beforeCAS != nil {
		hook := m.beforeCAS
		m.beforeCAS = nil
		hook()
	}
	return m.OffsetStore.CompareAndSet(ctx, old, new)
}

// countingEmbedder records how many times the embedding provider is hit
type countingEmbedder struct {
	interfaces.Embedder
	mu    sync.Mutex
	calls int
	err   error
}

func (m *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.Embedder.Embed(ctx, text)
}

func (m *countingEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockNotifier records delivered alerts
type mockNotifier struct {
	mu           sync.Mutex
	partialSyncs []*model.UpsertResult
	syncFailures []types.SyncDirection
	err          error
}

func (m *mockNotifier) NotifyPartialSync(ctx context.Context, result *model.UpsertResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partialSyncs = append(m.partialSyncs, result)
	return m.err
}

func (m *mockNotifier) NotifySyncFailure(ctx context.Context, direction types.SyncDirection, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncFailures = append(m.syncFailures, direction)
	return m.err
}

func (m *mockNotifier) partialSyncCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.partialSyncs)
}

func (m *mockNotifier) failureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.syncFailures)
}

// fakeClock is a manually advanced clock so tests produce distinct,
// ordered UpdatedAt values without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv bundles the use cases with every injected dependency so tests
// can reach in and fail or inspect any of them.
type testEnv struct {
	vector    *mockVectorIndex
	warehouse *mockWarehouse
	offsets   *mockOffsetStore
	embedder  *countingEmbedder
	notifier  *mockNotifier
	clock     *fakeClock
	uc        *usecase.UseCases
}

func newTestEnv(opts ...usecase.Option) *testEnv {
	env := &testEnv{
		vector:    &mockVectorIndex{VectorIndex: memory.NewVectorIndex()},
		warehouse: &mockWarehouse{Warehouse: memory.NewWarehouse()},
		offsets:   &mockOffsetStore{OffsetStore: memory.NewOffsetStore()},
		embedder:  &countingEmbedder{Embedder: embedding.NewFixed()},
		notifier:  &mockNotifier{},
		clock:     newFakeClock(),
	}

	base := []usecase.Option{
		usecase.WithNotifier(env.notifier),
		usecase.WithNow(env.clock.Now),
	}
	env.uc = usecase.New(env.vector, env.warehouse, env.offsets, env.embedder, append(base, opts...)...)
	return env
}

// createMemory writes one record through the engine and fails the test on
// any non-OK outcome.
func (env *testEnv) createMemory(t *testing.T, ctx context.Context, input *model.MemoryInput) *model.Memory {
	t.Helper()

	result, err := env.uc.CreateOrUpsert(ctx, input)
	gt.NoError(t, err).Required()
	gt.Value(t, result.VectorState).Equal(model.SyncStateOK)
	gt.Value(t, result.WarehouseState).Equal(model.SyncStateOK)
	return result.Memory
}
