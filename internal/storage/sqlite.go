package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/migrate"
	"github.com/bunchhieng/gdaes/internal/model"
)

// SQLiteStorage implements Primary and BackupStore using SQLite.
// The database is opened lazily; every operation goes through Init, so
// callers never need to open it explicitly.
type SQLiteStorage struct {
	path string
	log  logger.Logger

	mu sync.Mutex
	db *sqlx.DB
}

// NewSQLiteStorage returns a storage for dbPath without touching the disk.
func NewSQLiteStorage(dbPath string, log logger.Logger) *SQLiteStorage {
	return &SQLiteStorage{path: dbPath, log: log}
}

// Init opens the database and applies schema migrations. It is safe to
// call repeatedly and from several goroutines: all callers share one handle.
// A failed open is reported as model.ErrStorageUnavailable and retried on
// the next call.
func (s *SQLiteStorage) Init(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *SQLiteStorage) conn(ctx context.Context) (*sqlx.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
	}
	s.db = db
	return db, nil
}

func (s *SQLiteStorage) open(ctx context.Context) (*sqlx.DB, error) {
	memory := s.path == ":memory:"
	if !memory {
		dir := filepath.Dir(s.path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	var dsn string
	if memory {
		dsn = s.path + "?_pragma=journal_mode(DELETE)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	} else {
		dsn = s.path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	applied, err := runMigrations(ctx, db.DB)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	for _, v := range applied {
		s.log.Info("applied schema migration",
			logger.String("db", s.path),
			logger.Int("version", v))
	}

	return db, nil
}

type recordRow struct {
	ID        string `db:"id"`
	Data      string `db:"data"`
	Timestamp string `db:"timestamp"`
	Revision  string `db:"revision"`
}

// GetRecord retrieves a record by ID.
func (s *SQLiteStorage) GetRecord(ctx context.Context, id string) (*Record, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var row recordRow
	err = db.GetContext(ctx, &row,
		"SELECT id, data, timestamp, revision FROM records WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	return &Record{
		ID:        row.ID,
		Data:      json.RawMessage(row.Data),
		Timestamp: model.ParseTimestamp(row.Timestamp),
		Revision:  row.Revision,
	}, nil
}

// PutRecord creates or replaces a record.
func (s *SQLiteStorage) PutRecord(ctx context.Context, rec Record) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		"INSERT OR REPLACE INTO records (id, data, timestamp, revision) VALUES (?, ?, ?, ?)",
		rec.ID, string(rec.Data), model.FormatTimestamp(rec.Timestamp), rec.Revision)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

type backupRow struct {
	ID        int64  `db:"id"`
	Data      string `db:"data"`
	Timestamp string `db:"timestamp"`
}

func (r *backupRow) toBackup() (model.Backup, error) {
	data, err := migrate.Normalize([]byte(r.Data))
	if err != nil {
		return model.Backup{}, fmt.Errorf("backup %d: %w", r.ID, err)
	}
	return model.Backup{
		Key:       r.ID,
		Data:      data,
		Timestamp: model.ParseTimestamp(r.Timestamp),
	}, nil
}

// AppendBackup stores a snapshot and returns its assigned key.
func (s *SQLiteStorage) AppendBackup(ctx context.Context, b model.Backup) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	data, err := json.Marshal(b.Data)
	if err != nil {
		return 0, fmt.Errorf("encode backup: %w", err)
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO backups (data, timestamp) VALUES (?, ?)",
		string(data), model.FormatTimestamp(b.Timestamp))
	if err != nil {
		return 0, fmt.Errorf("insert backup: %w", err)
	}
	return result.LastInsertId()
}

// ListBackups returns every backup ordered by key. Rows whose data cannot
// be decoded are skipped and logged.
func (s *SQLiteStorage) ListBackups(ctx context.Context) ([]model.Backup, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []backupRow
	if err := db.SelectContext(ctx, &rows,
		"SELECT id, data, timestamp FROM backups ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	backups := make([]model.Backup, 0, len(rows))
	for i := range rows {
		b, err := rows[i].toBackup()
		if err != nil {
			s.log.Warn("skipping unreadable backup", logger.Int64("key", rows[i].ID), logger.Error(err))
			continue
		}
		backups = append(backups, b)
	}
	return backups, nil
}

// BackupKeys returns the key and timestamp of every backup ordered by key.
// The data column is not read, so undecodable rows are still reported.
func (s *SQLiteStorage) BackupKeys(ctx context.Context) ([]BackupKey, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID        int64  `db:"id"`
		Timestamp string `db:"timestamp"`
	}
	if err := db.SelectContext(ctx, &rows,
		"SELECT id, timestamp FROM backups ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list backup keys: %w", err)
	}

	keys := make([]BackupKey, len(rows))
	for i, r := range rows {
		keys[i] = BackupKey{Key: r.ID, Timestamp: model.ParseTimestamp(r.Timestamp)}
	}
	return keys, nil
}

// GetBackup retrieves a backup by key.
func (s *SQLiteStorage) GetBackup(ctx context.Context, key int64) (*model.Backup, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var row backupRow
	err = db.GetContext(ctx, &row,
		"SELECT id, data, timestamp FROM backups WHERE id = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}

	b, err := row.toBackup()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBackup removes a backup by key.
func (s *SQLiteStorage) DeleteBackup(ctx context.Context, key int64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, "DELETE FROM backups WHERE id = ?", key)
	if err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return checkRowsAffected(result)
}

func checkRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Close closes the database connection if it was ever opened.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
