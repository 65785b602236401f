package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/migrate"
	"github.com/bunchhieng/gdaes/internal/model"
)

// Outcome reports how far a Save got.
type Outcome int

const (
	// Unchanged means nothing needed to be written.
	Unchanged Outcome = iota
	// Persisted means the primary store accepted the write.
	Persisted
	// Degraded means the primary failed and only the mirror holds the write.
	Degraded
	// Failed means neither store accepted the write.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Persisted:
		return "persisted"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Durable reports whether the write reached at least one store.
func (o Outcome) Durable() bool {
	return o == Persisted || o == Degraded
}

// Commit describes the result of a Save.
type Commit struct {
	Outcome   Outcome
	Revision  string
	Timestamp time.Time
}

// Source identifies where Load found the collection.
type Source int

const (
	SourcePrimary Source = iota
	SourceMirror
	SourceLegacyMirror
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceMirror:
		return "mirror"
	case SourceLegacyMirror:
		return "legacy mirror"
	case SourceDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Adapter persists the collection to a primary store and mirrors every
// write to a secondary key/value store used as a fallback.
type Adapter struct {
	primary Primary
	mirror  Mirror
	log     logger.Logger
	now     func() time.Time
}

// NewAdapter returns an Adapter writing to primary and mirroring to mirror.
func NewAdapter(primary Primary, mirror Mirror, log logger.Logger) *Adapter {
	return &Adapter{
		primary: primary,
		mirror:  mirror,
		log:     log,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for commit timestamps.
func (a *Adapter) SetClock(now func() time.Time) {
	a.now = now
}

// Save writes c to the primary store, then mirrors it. Failures are
// logged and reflected in the returned Outcome, never returned as errors.
func (a *Adapter) Save(ctx context.Context, c model.Collection) Commit {
	commit := Commit{
		Revision:  model.GenerateRevision(),
		Timestamp: a.now().UTC(),
	}

	data, err := json.Marshal(c.Clone())
	if err != nil {
		a.log.Error("encode collection", logger.Error(err))
		commit.Outcome = Failed
		return commit
	}

	primaryErr := a.primary.PutRecord(ctx, Record{
		ID:        MainRecordID,
		Data:      data,
		Timestamp: commit.Timestamp,
		Revision:  commit.Revision,
	})
	if primaryErr != nil {
		a.log.Warn("primary store write failed, writing mirror only",
			logger.String("revision", commit.Revision),
			logger.Error(primaryErr))
	}

	mirrorErr := a.mirror.Set(ctx, MirrorKey, data)

	switch {
	case primaryErr == nil:
		if mirrorErr != nil {
			a.log.Warn("mirror write failed", logger.String("revision", commit.Revision), logger.Error(mirrorErr))
		}
		commit.Outcome = Persisted
	case mirrorErr == nil:
		commit.Outcome = Degraded
	default:
		a.log.Error("collection not saved",
			logger.String("revision", commit.Revision),
			logger.Error(mirrorErr))
		commit.Outcome = Failed
	}

	a.log.Debug("saved collection",
		logger.String("revision", commit.Revision),
		logger.String("outcome", commit.Outcome.String()),
		logger.Int("lists", len(c.Order)))
	return commit
}

// Load returns the stored collection, trying the primary record, then the
// mirror, then the legacy mirror key. It never fails: with nothing usable
// stored it returns the default collection.
func (a *Adapter) Load(ctx context.Context) (model.Collection, Source) {
	if c, ok := a.loadPrimary(ctx); ok {
		return c, SourcePrimary
	}

	if raw, ok := a.mirrorValue(ctx, MirrorKey); ok {
		c, err := migrate.Normalize(raw)
		if err == nil {
			return c, SourceMirror
		}
		a.log.Warn("mirror data unreadable", logger.String("key", MirrorKey), logger.Error(err))
	}

	if raw, ok := a.mirrorValue(ctx, LegacyMirrorKey); ok {
		c, err := migrate.NormalizeMapping(raw)
		if err == nil {
			a.log.Info("migrated legacy lists", logger.Int("lists", len(c.Order)))
			return c, SourceLegacyMirror
		}
		a.log.Warn("legacy mirror data unreadable", logger.String("key", LegacyMirrorKey), logger.Error(err))
	}

	return model.DefaultCollection(), SourceDefault
}

func (a *Adapter) loadPrimary(ctx context.Context) (model.Collection, bool) {
	rec, err := a.primary.GetRecord(ctx, MainRecordID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			a.log.Warn("primary store read failed", logger.Error(err))
		}
		return model.Collection{}, false
	}

	c, err := migrate.Normalize(rec.Data)
	if err != nil {
		a.log.Warn("primary record corrupt, falling back to mirror",
			logger.String("revision", rec.Revision),
			logger.Error(err))
		return model.Collection{}, false
	}
	return c, true
}

func (a *Adapter) mirrorValue(ctx context.Context, key string) ([]byte, bool) {
	raw, err := a.mirror.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			a.log.Warn("mirror read failed", logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}
	return raw, true
}
