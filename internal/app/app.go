// Package app wires configuration, storage and the list store together.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bunchhieng/gdaes/internal/backup"
	"github.com/bunchhieng/gdaes/internal/config"
	"github.com/bunchhieng/gdaes/internal/lists"
	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/storage"
)

// App holds every long-lived component of a running gdaes process.
type App struct {
	Config  *config.Config
	Log     logger.Logger
	Primary *storage.SQLiteStorage
	Mirror  storage.Mirror
	Adapter *storage.Adapter
	Backups *backup.Rotator
	Store   *lists.Store
}

// New builds the components described by cfg and loads the collection.
// An unavailable primary store is not fatal: the adapter falls back to
// the mirror and reports degraded commits.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	primary := storage.NewSQLiteStorage(cfg.DBPath, log.With(logger.String("component", "sqlite")))
	if err := primary.Init(ctx); err != nil {
		log.Warn("primary store unavailable, continuing with mirror", logger.String("db", cfg.DBPath), logger.Error(err))
	}

	mirror, err := NewMirror(ctx, cfg.Mirror, log)
	if err != nil {
		primary.Close()
		return nil, err
	}

	adapter := storage.NewAdapter(primary, mirror, log.With(logger.String("component", "adapter")))
	rotator := backup.NewRotator(primary, cfg.BackupRetention, log.With(logger.String("component", "backup")))
	store := lists.NewStore(adapter, rotator, log.With(logger.String("component", "lists")))
	store.Load(ctx)

	return &App{
		Config:  cfg,
		Log:     log,
		Primary: primary,
		Mirror:  mirror,
		Adapter: adapter,
		Backups: rotator,
		Store:   store,
	}, nil
}

// NewMirror opens the configured mirror backend. When Redis cannot be
// reached the file mirror is used instead so the process can still start.
func NewMirror(ctx context.Context, cfg config.MirrorConfig, log logger.Logger) (storage.Mirror, error) {
	switch cfg.Backend {
	case config.MirrorFile, "":
		return storage.NewFileMirror(cfg.Path, log.With(logger.String("component", "mirror"))), nil
	case config.MirrorRedis:
		m, err := storage.ConnectRedis(ctx, cfg.Redis, log.With(logger.String("component", "redis")))
		if err != nil {
			if cfg.Path == "" {
				return nil, err
			}
			log.Warn("redis mirror unavailable, using file mirror",
				logger.String("path", cfg.Path),
				logger.Error(err))
			return storage.NewFileMirror(cfg.Path, log.With(logger.String("component", "mirror"))), nil
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", cfg.Backend)
	}
}

// Close releases the mirror and the database.
func (a *App) Close() error {
	return errors.Join(a.Mirror.Close(), a.Primary.Close())
}
