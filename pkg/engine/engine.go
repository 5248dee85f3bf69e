package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zfskit/workspaces/pkg/identity"
	"github.com/zfskit/workspaces/pkg/log"
	"github.com/zfskit/workspaces/pkg/storage"
	"github.com/zfskit/workspaces/pkg/types"
	"github.com/zfskit/workspaces/pkg/zfs"
)

// Catalog supplies the configured pools. Read-only to the engine.
type Catalog interface {
	Pool(name string) *types.Pool
	Pools() []*types.Pool
}

// pathsafe matches names that are safe to embed in dataset paths.
var pathsafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Engine drives workspace lifecycle transitions, orchestrating the record
// store and the volume adapter and reconciling the two when they disagree.
type Engine struct {
	store   storage.Store
	locks   *storage.LockManager
	adapter zfs.Adapter
	catalog Catalog
	now     func() time.Time
	setPerm func(mountpoint, owner string) error
	logger  zerolog.Logger
}

// Options configures an Engine.
type Options struct {
	Store   storage.Store
	Locks   *storage.LockManager
	Adapter zfs.Adapter
	Catalog Catalog
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// SetPermissions overrides how a fresh mountpoint is handed to its
	// owner, for tests.
	SetPermissions func(mountpoint, owner string) error
}

// New creates a lifecycle engine.
func New(opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	setPerm := opts.SetPermissions
	if setPerm == nil {
		setPerm = setMountpointOwner
	}
	return &Engine{
		store:   opts.Store,
		locks:   opts.Locks,
		adapter: opts.Adapter,
		catalog: opts.Catalog,
		now:     clock,
		setPerm: setPerm,
		logger:  log.WithComponent("engine"),
	}
}

func (e *Engine) pool(name string) (*types.Pool, error) {
	pool := e.catalog.Pool(name)
	if pool == nil {
		return nil, fmt.Errorf("filesystem %q: %w", name, types.ErrNotFound)
	}
	return pool, nil
}

// checkRequest validates the pool/duration constraints shared by create
// and extend. The administrative identity bypasses both, matching
// system-level maintenance needs.
func checkRequest(pool *types.Pool, duration time.Duration, caller *identity.Caller) error {
	if caller.IsAdmin() {
		return nil
	}
	if pool.Disabled {
		return fmt.Errorf("filesystem %s is disabled", pool.Name)
	}
	if duration > pool.MaxDuration {
		return fmt.Errorf("duration can be at most %d days on %s",
			int(pool.MaxDuration.Hours()/24), pool.Name)
	}
	return nil
}

// Create reserves a record, creates the backing volume and finalizes the
// record, in that order. A failed volume creation rolls the provisional
// record back; an interruption between volume creation and finalization
// is repaired by reconcileProvisional on the next touch of the key.
func (e *Engine) Create(ctx context.Context, caller *identity.Caller, poolName, name, owner string, duration time.Duration) (*types.Workspace, error) {
	if !pathsafe.MatchString(name) {
		return nil, fmt.Errorf("workspace name %q must contain only [A-Za-z0-9_-]", name)
	}
	if !pathsafe.MatchString(owner) {
		return nil, fmt.Errorf("owner %q must contain only [A-Za-z0-9_-]", owner)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}

	pool, err := e.pool(poolName)
	if err != nil {
		return nil, err
	}
	if err := identity.AuthorizeOwner(identity.OpCreate, owner, caller); err != nil {
		return nil, err
	}
	if err := checkRequest(pool, duration, caller); err != nil {
		return nil, err
	}

	var created *types.Workspace
	err = e.locks.WithLock(pool.Name, name, func() error {
		existing, err := e.store.Get(ctx, pool.Name, name)
		switch {
		case err == nil && existing.Provisional:
			kept, rerr := e.reconcileProvisional(ctx, pool, existing)
			if rerr != nil {
				return rerr
			}
			if kept {
				return fmt.Errorf("workspace %s/%s: %w", pool.Name, name, types.ErrAlreadyExists)
			}
		case err == nil:
			return fmt.Errorf("workspace %s/%s: %w", pool.Name, name, types.ErrAlreadyExists)
		case !errors.Is(err, types.ErrNotFound):
			return err
		}

		now := e.now()
		ws := &types.Workspace{
			ID:          uuid.NewString(),
			Pool:        pool.Name,
			Name:        name,
			Owner:       owner,
			CreatedAt:   now,
			ExpiresAt:   now.Add(duration),
			DeletesAt:   now.Add(duration).Add(pool.Retention),
			Provisional: true,
		}
		if err := e.store.Upsert(ctx, ws); err != nil {
			return err
		}

		dataset := zfs.DatasetFor(pool.Root, name)
		if err := e.adapter.Create(ctx, dataset); err != nil {
			if rerr := e.store.Remove(ctx, pool.Name, name); rerr != nil {
				e.logger.Error().Err(rerr).Str("workspace", ws.Key()).
					Msg("failed to roll back provisional record")
			}
			if errors.Is(err, types.ErrAlreadyExists) {
				return fmt.Errorf("dataset %s exists but is not managed by workspaces: %w", dataset, err)
			}
			return err
		}

		if err := e.finalize(ctx, pool, ws); err != nil {
			// The volume exists; destroy it so the failed create leaves
			// nothing behind.
			if derr := e.adapter.Destroy(ctx, dataset); derr != nil && !errors.Is(derr, types.ErrNotFound) {
				e.logger.Error().Err(derr).Str("dataset", dataset).
					Msg("failed to destroy volume after create failure")
				return err
			}
			if rerr := e.store.Remove(ctx, pool.Name, name); rerr != nil {
				e.logger.Error().Err(rerr).Str("workspace", ws.Key()).
					Msg("failed to roll back provisional record")
			}
			return err
		}
		created = ws
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// finalize queries the mountpoint, hands the mountpoint to its owner and
// persists the record in its final form.
func (e *Engine) finalize(ctx context.Context, pool *types.Pool, ws *types.Workspace) error {
	dataset := zfs.DatasetFor(pool.Root, ws.Name)
	mountpoint, err := e.adapter.Mountpoint(ctx, dataset)
	if err != nil {
		return fmt.Errorf("failed to query mountpoint of %s: %w", dataset, err)
	}
	if err := e.setPerm(mountpoint, ws.Owner); err != nil {
		return fmt.Errorf("failed to hand %s to %s: %w", mountpoint, ws.Owner, err)
	}
	ws.Mountpoint = mountpoint
	ws.Provisional = false
	return e.store.Upsert(ctx, ws)
}

// reconcileProvisional resolves a record left provisional by an
// interrupted create. Policy: if the volume exists the creation is rolled
// forward (its parameters are fully recoverable from the record),
// otherwise the record is rolled back. Returns whether the record was
// kept. Caller must hold the key lock.
func (e *Engine) reconcileProvisional(ctx context.Context, pool *types.Pool, ws *types.Workspace) (bool, error) {
	dataset := zfs.DatasetFor(pool.Root, ws.Name)
	exists, err := e.adapter.Exists(ctx, dataset)
	if err != nil {
		return false, fmt.Errorf("failed to reconcile %s: %w", ws.Key(), err)
	}
	if exists {
		if err := e.finalize(ctx, pool, ws); err != nil {
			return false, fmt.Errorf("failed to reconcile %s: %w", ws.Key(), err)
		}
		e.logger.Warn().Str("workspace", ws.Key()).
			Msg("finalized record left provisional by an interrupted create")
		return true, nil
	}
	if err := e.store.Remove(ctx, ws.Pool, ws.Name); err != nil {
		return false, fmt.Errorf("failed to reconcile %s: %w", ws.Key(), err)
	}
	e.logger.Warn().Str("workspace", ws.Key()).
		Msg("removed provisional record with no backing volume")
	return false, nil
}

// getReconciled fetches the record for mutation, resolving a provisional
// leftover first. Caller must hold the key lock.
func (e *Engine) getReconciled(ctx context.Context, pool *types.Pool, name string) (*types.Workspace, error) {
	ws, err := e.store.Get(ctx, pool.Name, name)
	if err != nil {
		return nil, err
	}
	if ws.Provisional {
		kept, err := e.reconcileProvisional(ctx, pool, ws)
		if err != nil {
			return nil, err
		}
		if !kept {
			return nil, fmt.Errorf("workspace %s/%s: %w", pool.Name, name, types.ErrNotFound)
		}
	}
	return ws, nil
}

// Extend pushes the expiry forward by duration, counting from the later
// of now and the current expiry, and makes the volume writable again if
// it had expired. The timestamps are persisted before the volume property
// changes: the stored record is the source of truth, a lagging readonly
// flag is repaired by the next mutation or sweep.
func (e *Engine) Extend(ctx context.Context, caller *identity.Caller, poolName, name string, duration time.Duration) (*types.Workspace, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}
	pool, err := e.pool(poolName)
	if err != nil {
		return nil, err
	}
	if err := checkRequest(pool, duration, caller); err != nil {
		return nil, err
	}

	var extended *types.Workspace
	err = e.locks.WithLock(pool.Name, name, func() error {
		ws, err := e.getReconciled(ctx, pool, name)
		if err != nil {
			return err
		}
		if err := identity.Authorize(identity.OpExtend, ws, caller); err != nil {
			return err
		}

		now := e.now()
		base := ws.ExpiresAt
		if now.After(base) {
			base = now
		}
		ws.ExpiresAt = base.Add(duration)
		ws.DeletesAt = ws.ExpiresAt.Add(pool.Retention)
		if err := e.store.Upsert(ctx, ws); err != nil {
			return err
		}
		extended = ws

		dataset := zfs.DatasetFor(pool.Root, name)
		if err := e.adapter.SetReadOnly(ctx, dataset, false); err != nil {
			return fmt.Errorf("workspace extended until %s but volume is still read-only: %w",
				ws.ExpiresAt.Format(time.RFC3339), err)
		}
		return nil
	})
	if err != nil {
		return extended, err
	}
	return extended, nil
}

// Expire moves the expiry to now (never later) and puts the volume in
// read-only immediately. With terminally set, the deletion timestamp is
// also pulled to now so the next sweep destroys the workspace. Invoking
// Expire twice yields the same state as invoking it once.
func (e *Engine) Expire(ctx context.Context, caller *identity.Caller, poolName, name string, terminally bool) (*types.Workspace, error) {
	pool, err := e.pool(poolName)
	if err != nil {
		return nil, err
	}

	var expired *types.Workspace
	err = e.locks.WithLock(pool.Name, name, func() error {
		ws, err := e.getReconciled(ctx, pool, name)
		if err != nil {
			return err
		}
		if err := identity.Authorize(identity.OpExpire, ws, caller); err != nil {
			return err
		}

		now := e.now()
		if now.Before(ws.ExpiresAt) {
			ws.ExpiresAt = now
			ws.DeletesAt = ws.ExpiresAt.Add(pool.Retention)
		}
		if terminally && now.Before(ws.DeletesAt) {
			ws.DeletesAt = now
		}
		if err := e.store.Upsert(ctx, ws); err != nil {
			return err
		}
		expired = ws

		dataset := zfs.DatasetFor(pool.Root, name)
		if err := e.adapter.SetReadOnly(ctx, dataset, true); err != nil {
			return fmt.Errorf("workspace expired but volume is still writable: %w", err)
		}
		return nil
	})
	if err != nil {
		return expired, err
	}
	return expired, nil
}

// Rename changes a workspace's name within its pool, store first and
// volume second; a failed volume rename rolls the store back.
func (e *Engine) Rename(ctx context.Context, caller *identity.Caller, poolName, oldName, newName string) (*types.Workspace, error) {
	if !pathsafe.MatchString(newName) {
		return nil, fmt.Errorf("workspace name %q must contain only [A-Za-z0-9_-]", newName)
	}
	pool, err := e.pool(poolName)
	if err != nil {
		return nil, err
	}
	if pool.Disabled && !caller.IsAdmin() {
		return nil, fmt.Errorf("filesystem %s is disabled", pool.Name)
	}

	var renamed *types.Workspace
	err = e.locks.WithLock(pool.Name, oldName, func() error {
		ws, err := e.getReconciled(ctx, pool, oldName)
		if err != nil {
			return err
		}
		if err := identity.Authorize(identity.OpRename, ws, caller); err != nil {
			return err
		}

		if err := e.store.Rename(ctx, pool.Name, oldName, newName); err != nil {
			return err
		}

		oldDataset := zfs.DatasetFor(pool.Root, oldName)
		newDataset := zfs.DatasetFor(pool.Root, newName)
		if err := e.adapter.Rename(ctx, oldDataset, newDataset); err != nil {
			if rerr := e.store.Rename(ctx, pool.Name, newName, oldName); rerr != nil {
				e.logger.Error().Err(rerr).Str("workspace", ws.Key()).
					Msg("failed to roll back record rename")
			}
			return err
		}

		ws.Name = newName
		mountpoint, err := e.adapter.Mountpoint(ctx, newDataset)
		if err != nil {
			e.logger.Warn().Err(err).Str("dataset", newDataset).
				Msg("failed to refresh mountpoint after rename")
		} else {
			ws.Mountpoint = mountpoint
		}
		if err := e.store.Upsert(ctx, ws); err != nil {
			return err
		}
		renamed = ws
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// ListFilter restricts List output. Empty slices mean no restriction.
type ListFilter struct {
	Owners []string
	Pools  []string
}

func (f ListFilter) match(ws *types.Workspace) bool {
	if len(f.Owners) > 0 && !contains(f.Owners, ws.Owner) {
		return false
	}
	if len(f.Pools) > 0 && !contains(f.Pools, ws.Pool) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

// List returns the matching records with their live used space, ordered
// by pool then name. Read-only: it takes no record locks and may observe
// a record mid-transition. Records whose volume cannot be queried are
// skipped with a log line rather than failing the whole listing.
func (e *Engine) List(ctx context.Context, filter ListFilter) ([]*types.WorkspaceInfo, error) {
	records, err := e.store.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var infos []*types.WorkspaceInfo
	for _, ws := range records {
		if !filter.match(ws) {
			continue
		}
		pool := e.catalog.Pool(ws.Pool)
		if pool == nil {
			e.logger.Warn().Str("workspace", ws.Key()).
				Msg("record references a filesystem missing from the configuration")
			continue
		}
		used, err := e.adapter.UsedSpace(ctx, zfs.DatasetFor(pool.Root, ws.Name))
		if err != nil {
			e.logger.Warn().Err(err).Str("workspace", ws.Key()).
				Msg("failed to query used space")
			continue
		}
		infos = append(infos, &types.WorkspaceInfo{Workspace: ws, UsedBytes: used})
	}
	return infos, nil
}

// Filesystems returns every configured pool with live space figures,
// ordered by name. Pools whose space cannot be queried are reported with
// zero figures.
func (e *Engine) Filesystems(ctx context.Context) ([]*types.PoolUsage, error) {
	var usages []*types.PoolUsage
	for _, pool := range e.catalog.Pools() {
		usage := &types.PoolUsage{Pool: pool}
		used, free, err := e.adapter.PoolSpace(ctx, pool.Root)
		if err != nil {
			e.logger.Warn().Err(err).Str("filesystem", pool.Name).
				Msg("failed to query pool space")
		} else {
			usage.UsedBytes = used
			usage.FreeBytes = free
			usage.TotalBytes = used + free
		}
		usages = append(usages, usage)
	}
	return usages, nil
}

// Destroy removes the backing volume and the record. Not exposed by the
// default CLI for regular use; the garbage collector and administrators
// call it.
func (e *Engine) Destroy(ctx context.Context, caller *identity.Caller, poolName, name string) error {
	pool, err := e.pool(poolName)
	if err != nil {
		return err
	}
	return e.locks.WithLock(pool.Name, name, func() error {
		ws, err := e.store.Get(ctx, pool.Name, name)
		if err != nil {
			return err
		}
		if err := identity.Authorize(identity.OpDestroy, ws, caller); err != nil {
			return err
		}
		return e.destroyLocked(ctx, pool, ws)
	})
}

// destroyLocked destroys the volume then removes the record. An absent
// volume is treated as already reconciled. Caller must hold the key lock.
func (e *Engine) destroyLocked(ctx context.Context, pool *types.Pool, ws *types.Workspace) error {
	dataset := zfs.DatasetFor(pool.Root, ws.Name)
	if err := e.adapter.Destroy(ctx, dataset); err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}
	if err := e.store.Remove(ctx, ws.Pool, ws.Name); err != nil {
		return err
	}
	e.logger.Info().Str("workspace", ws.Key()).Str("id", ws.ID).Msg("workspace destroyed")
	return nil
}
