package sweeper

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfskit/workspaces/pkg/engine"
	"github.com/zfskit/workspaces/pkg/identity"
	"github.com/zfskit/workspaces/pkg/log"
	"github.com/zfskit/workspaces/pkg/storage"
	"github.com/zfskit/workspaces/pkg/types"
)

type memAdapter struct {
	mu         sync.Mutex
	datasets   map[string]bool // dataset -> readonly
	destroyErr map[string]error
}

func newMemAdapter() *memAdapter {
	return &memAdapter{datasets: map[string]bool{}, destroyErr: map[string]error{}}
}

func (a *memAdapter) Create(ctx context.Context, dataset string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.datasets[dataset]; ok {
		return fmt.Errorf("dataset %s: %w", dataset, types.ErrAlreadyExists)
	}
	a.datasets[dataset] = false
	return nil
}

func (a *memAdapter) Destroy(ctx context.Context, dataset string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.destroyErr[dataset]; err != nil {
		return err
	}
	if _, ok := a.datasets[dataset]; !ok {
		return fmt.Errorf("dataset %s: %w", dataset, types.ErrNotFound)
	}
	delete(a.datasets, dataset)
	return nil
}

func (a *memAdapter) Rename(ctx context.Context, oldDataset, newDataset string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	readonly, ok := a.datasets[oldDataset]
	if !ok {
		return fmt.Errorf("dataset %s: %w", oldDataset, types.ErrNotFound)
	}
	delete(a.datasets, oldDataset)
	a.datasets[newDataset] = readonly
	return nil
}

func (a *memAdapter) SetReadOnly(ctx context.Context, dataset string, readonly bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.datasets[dataset]; !ok {
		return fmt.Errorf("dataset %s: %w", dataset, types.ErrNotFound)
	}
	a.datasets[dataset] = readonly
	return nil
}

func (a *memAdapter) ReadOnly(ctx context.Context, dataset string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	readonly, ok := a.datasets[dataset]
	if !ok {
		return false, fmt.Errorf("dataset %s: %w", dataset, types.ErrNotFound)
	}
	return readonly, nil
}

func (a *memAdapter) Exists(ctx context.Context, dataset string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.datasets[dataset]
	return ok, nil
}

func (a *memAdapter) Mountpoint(ctx context.Context, dataset string) (string, error) {
	return "/mnt/" + dataset, nil
}

func (a *memAdapter) UsedSpace(ctx context.Context, dataset string) (uint64, error) {
	return 0, nil
}

func (a *memAdapter) PoolSpace(ctx context.Context, root string) (uint64, uint64, error) {
	return 0, 0, nil
}

type singlePool struct{ pool *types.Pool }

func (c singlePool) Pool(name string) *types.Pool {
	if name == c.pool.Name {
		return c.pool
	}
	return nil
}

func (c singlePool) Pools() []*types.Pool { return []*types.Pool{c.pool} }

type harness struct {
	sweeper *Sweeper
	engine  *engine.Engine
	store   *storage.SQLiteStore
	adapter *memAdapter
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log.Init(log.Config{Level: "error"})

	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(dir, "workspaces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	locks, err := storage.NewLockManager(filepath.Join(dir, "locks"))
	require.NoError(t, err)

	h := &harness{
		store:   store,
		adapter: newMemAdapter(),
		now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.engine = engine.New(engine.Options{
		Store:   store,
		Locks:   locks,
		Adapter: h.adapter,
		Catalog: singlePool{pool: &types.Pool{
			Name:        "bulk",
			Root:        "tank/bulk",
			MaxDuration: 30 * 24 * time.Hour,
			Retention:   14 * 24 * time.Hour,
		}},
		Clock:          func() time.Time { return h.now },
		SetPermissions: func(mountpoint, owner string) error { return nil },
	})
	h.sweeper = New(h.engine, store)
	return h
}

func (h *harness) create(t *testing.T, name string, duration time.Duration) {
	t.Helper()
	_, err := h.engine.Create(context.Background(), identity.Admin(), "bulk", name, "alice", duration)
	require.NoError(t, err)
}

func day(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func TestSweep_Empty(t *testing.T) {
	h := newHarness(t)

	report, err := h.sweeper.Sweep(context.Background(), h.now)
	require.NoError(t, err)
	assert.Zero(t, report.Destroyed)
	assert.Zero(t, report.Reconciled)
	assert.Zero(t, report.ReadOnlyEnforced)
	assert.Empty(t, report.Skipped)
}

func TestSweep_MixedStates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.create(t, "fresh", day(20))
	h.create(t, "expired", day(2))
	h.create(t, "doomed", day(1))

	// 5 days on: "fresh" is active, "expired" is in retention, "doomed"
	// gets terminally expired by its owner.
	h.now = h.now.Add(day(5))
	_, err := h.engine.Expire(ctx, identity.Admin(), "bulk", "doomed", true)
	require.NoError(t, err)

	report, err := h.sweeper.Sweep(ctx, h.now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Destroyed)
	assert.Equal(t, 1, report.ReadOnlyEnforced)
	assert.Empty(t, report.Skipped)

	records, err := h.store.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "expired", records[0].Name)
	assert.Equal(t, "fresh", records[1].Name)

	readonly, err := h.adapter.ReadOnly(ctx, "tank/bulk/expired")
	require.NoError(t, err)
	assert.True(t, readonly)
}

func TestSweep_FailureOnOneRecordDoesNotAbort(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.create(t, "blocked", day(1))
	h.create(t, "doomed", day(1))

	// Both are past deletion, but one dataset refuses to die.
	h.now = h.now.Add(day(25))
	h.adapter.destroyErr["tank/bulk/blocked"] = fmt.Errorf("dataset is busy: %w", types.ErrBusy)

	report, err := h.sweeper.Sweep(ctx, h.now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Destroyed)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "bulk/blocked", report.Skipped[0].Key)
	assert.Contains(t, report.Skipped[0].Reason, "busy")

	// The blocked record survives for the next sweep.
	_, err = h.store.Get(ctx, "bulk", "blocked")
	assert.NoError(t, err)
}

func TestSweep_ReconcilesOrphanedProvisional(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.Upsert(ctx, &types.Workspace{
		ID: "orphan", Pool: "bulk", Name: "ghost", Owner: "alice",
		CreatedAt: h.now, ExpiresAt: h.now.Add(day(5)), DeletesAt: h.now.Add(day(19)),
		Provisional: true,
	}))

	report, err := h.sweeper.Sweep(ctx, h.now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reconciled)

	_, err = h.store.Get(ctx, "bulk", "ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
