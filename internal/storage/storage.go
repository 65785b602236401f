package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bunchhieng/gdaes/internal/model"
)

// Fixed keys shared with the browser extension's storage layout.
const (
	// MainRecordID is the primary store key holding the canonical collection.
	MainRecordID = "mainData"

	// MirrorKey is the secondary store key holding a copy of the collection.
	MirrorKey = "gdaesData"

	// LegacyMirrorKey holds a bare name -> links mapping written by old releases.
	// It is only ever read.
	LegacyMirrorKey = "tabLists"
)

// Record is the persisted envelope around the collection in the primary store.
type Record struct {
	ID        string
	Data      json.RawMessage
	Timestamp time.Time
	Revision  string
}

// BackupKey identifies a stored backup without decoding it. Timestamp is
// zero when the stored value cannot be parsed.
type BackupKey struct {
	Key       int64
	Timestamp time.Time
}

// Primary is the structured store that owns the canonical record.
type Primary interface {
	// GetRecord returns model.ErrNotFound when id has never been written.
	GetRecord(ctx context.Context, id string) (*Record, error)

	// PutRecord creates or replaces the record with rec.ID.
	PutRecord(ctx context.Context, rec Record) error
}

// BackupStore is an append-only log of collection snapshots with store-assigned keys.
type BackupStore interface {
	AppendBackup(ctx context.Context, b model.Backup) (int64, error)

	// ListBackups returns every backup ordered by key.
	ListBackups(ctx context.Context) ([]model.Backup, error)
	// BackupKeys returns the key and timestamp of every stored backup,
	// including rows whose data no longer decodes.
	BackupKeys(ctx context.Context) ([]BackupKey, error)

	GetBackup(ctx context.Context, key int64) (*model.Backup, error)
	DeleteBackup(ctx context.Context, key int64) error
}

// Mirror is the flat key/value store used as a write mirror and as fallback.
type Mirror interface {
	// Get returns model.ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
