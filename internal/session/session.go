// Package session persists the bearer credential used by the API gateway.
// Exactly one key ("token") is durable; the store itself is a generic
// name/value surface so tests and embedders can stub it.
package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// TokenName is the credential key the gateway and user store share.
const TokenName = "token"

// Store resolves named credentials. Set with an empty value clears the
// credential.
type Store interface {
	Get(name string) (string, error)
	Set(name, value string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (s *MemoryStore) Get(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name], nil
}

func (s *MemoryStore) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

const defaultDBName = "session.db"

// FileStore keeps credentials in a SQLite database under the workspace's
// .riberry directory, surviving process restarts the way a browser cookie
// would.
type FileStore struct {
	db *sql.DB
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".riberry", defaultDBName)
}

// EnsureWorkspace creates the workspace state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, ".riberry")
	if err := os.MkdirAll(path, 0o700); err != nil {
		return "", err
	}
	return path, nil
}

// OpenFileStore opens (and if needed initializes) the credential store for
// a workspace.
func OpenFileStore(workspace string) (*FileStore, error) {
	if _, err := EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared", dbPath(workspace))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init credential store: %w", err)
	}
	return &FileStore{db: db}, nil
}

func (s *FileStore) Get(name string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *FileStore) Set(name, value string) error {
	_, err := s.db.Exec(`INSERT INTO credentials(name,value) VALUES (?,?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	return err
}

func (s *FileStore) Close() error { return s.db.Close() }
