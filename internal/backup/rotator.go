// Package backup keeps a bounded history of collection snapshots.
package backup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/model"
	"github.com/bunchhieng/gdaes/internal/storage"
)

// DefaultRetention is the number of snapshots kept when none is configured.
const DefaultRetention = 5

// Rotator appends snapshots to a BackupStore and prunes it to the newest
// retain entries.
type Rotator struct {
	store  storage.BackupStore
	retain int
	now    func() time.Time
	log    logger.Logger
}

// NewRotator returns a Rotator keeping retain snapshots, or DefaultRetention
// when retain is below one.
func NewRotator(store storage.BackupStore, retain int, log logger.Logger) *Rotator {
	if retain < 1 {
		retain = DefaultRetention
	}
	return &Rotator{
		store:  store,
		retain: retain,
		now:    time.Now,
		log:    log,
	}
}

// SetClock replaces the time source used to stamp snapshots.
func (r *Rotator) SetClock(now func() time.Time) {
	r.now = now
}

// Snapshot stores a copy of c and evicts the oldest snapshots beyond the
// retention limit. Failures are logged and otherwise ignored.
func (r *Rotator) Snapshot(ctx context.Context, c model.Collection) {
	key, err := r.store.AppendBackup(ctx, model.Backup{
		Data:      c.Clone(),
		Timestamp: r.now().UTC(),
	})
	if err != nil {
		r.log.Warn("backup failed", logger.Error(err))
		return
	}

	if err := r.prune(ctx); err != nil {
		r.log.Warn("backup rotation failed", logger.Int64("key", key), logger.Error(err))
		return
	}
	r.log.Debug("backup created", logger.Int64("key", key))
}

// prune evicts the oldest backups beyond the retention count. It works on
// keys alone so rows that no longer decode are counted and evicted first.
func (r *Rotator) prune(ctx context.Context) error {
	keys, err := r.store.BackupKeys(ctx)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(keys) <= r.retain {
		return nil
	}

	sort.SliceStable(keys, func(i, j int) bool {
		return olderThan(keys[i].Timestamp, keys[i].Key, keys[j].Timestamp, keys[j].Key)
	})
	for _, k := range keys[:len(keys)-r.retain] {
		if err := r.store.DeleteBackup(ctx, k.Key); err != nil {
			return fmt.Errorf("delete backup %d: %w", k.Key, err)
		}
	}
	return nil
}

// List returns all stored snapshots, newest first.
func (r *Rotator) List(ctx context.Context) ([]model.Backup, error) {
	all, err := r.store.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(all)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// Get returns the snapshot stored under key.
func (r *Rotator) Get(ctx context.Context, key int64) (*model.Backup, error) {
	return r.store.GetBackup(ctx, key)
}

func sortOldestFirst(all []model.Backup) {
	sort.SliceStable(all, func(i, j int) bool {
		return olderThan(all[i].Timestamp, all[i].Key, all[j].Timestamp, all[j].Key)
	})
}

// olderThan orders by timestamp, breaking ties on the lower key.
func olderThan(at time.Time, aKey int64, bt time.Time, bKey int64) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return aKey < bKey
}
