package storage

import (
	"database/sql"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/types"
)

type SQLiteState int32

const (
	SQLiteStateStopped SQLiteState = iota
	SQLiteStateStarting
	SQLiteStateRunning
	SQLiteStateStopping
)

// SQLiteStore backs the well-known durable keys with a single-table
// key-value schema. One process owns the file at a time.
type SQLiteStore struct {
	db     *sql.DB
	logger types.Logger
	path   string
	state  atomic.Value
}

func NewSQLiteStore(logger types.Logger, config *types.StorageConfig) (*SQLiteStore, error) {
	path := config.Path
	if path == "" {
		path = "./storefront.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, types.WrapError(err, "failed to open sqlite store")
	}

	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:     db,
		logger: logger,
		path:   path,
	}

	store.state.Store(SQLiteStateStopped)
	return store, nil
}

func (s *SQLiteStore) Start() error {
	if !s.transitionState(SQLiteStateStopped, SQLiteStateStarting) {
		return types.ErrStorageAlreadyRunning
	}

	defer func() {
		if s.getState() == SQLiteStateStarting {
			s.setState(SQLiteStateRunning)
		}
	}()

	if err := s.createSchema(); err != nil {
		s.setState(SQLiteStateStopped)
		return err
	}

	s.logger.Info("SQLite store started", zap.String("path", s.path))
	return nil
}

func (s *SQLiteStore) Stop() error {
	if !s.transitionState(SQLiteStateRunning, SQLiteStateStopping) {
		return types.ErrStorageNotRunning
	}

	defer func() {
		s.setState(SQLiteStateStopped)
	}()

	if err := s.db.Close(); err != nil {
		return types.WrapError(err, "failed to close sqlite store")
	}

	s.logger.Info("SQLite store stopped gracefully")
	return nil
}

func (s *SQLiteStore) IsRunning() bool {
	return s.getState() == SQLiteStateRunning
}

func (s *SQLiteStore) createSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`

	if _, err := s.db.Exec(query); err != nil {
		return types.WrapError(err, "failed to create kv schema")
	}

	return nil
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte

	err := s.db.QueryRow("SELECT value FROM kv_entries WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, types.Errorf(types.ErrStorageReadFailed, "key %s: %v", key, err)
	}

	return value, true, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	query := `
	INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.Exec(query, key, value, time.Now().UnixNano()); err != nil {
		return types.Errorf(types.ErrStorageWriteFailed, "key %s: %v", key, err)
	}

	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv_entries WHERE key = ?", key); err != nil {
		return types.Errorf(types.ErrStorageWriteFailed, "delete key %s: %v", key, err)
	}

	return nil
}

// Token and friends adapt the key-value table to the credential
// fallback contract.
func (s *SQLiteStore) Token() (string, bool) {
	value, ok, err := s.Get(types.KeyFallbackToken)
	if err != nil || !ok || len(value) == 0 {
		return "", false
	}
	return string(value), true
}

func (s *SQLiteStore) SetToken(token string) error {
	return s.Set(types.KeyFallbackToken, []byte(token))
}

func (s *SQLiteStore) ClearToken() error {
	return s.Delete(types.KeyFallbackToken)
}

func (s *SQLiteStore) getState() SQLiteState {
	if state, ok := s.state.Load().(SQLiteState); ok {
		return state
	}
	return SQLiteStateStopped
}

func (s *SQLiteStore) setState(state SQLiteState) {
	s.state.Store(state)
}

func (s *SQLiteStore) transitionState(from, to SQLiteState) bool {
	return s.state.CompareAndSwap(from, to)
}
