package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements core.Store on a single on-device SQLite file.
// Each logical key is one row; single-key operations are atomic.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS collections (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		checksum BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value, checksum FROM collections WHERE key = ?`
	var value string
	var storedChecksum []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &storedChecksum)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	// Verify checksum; a corrupt row reads as a miss so the next sync heals it
	computed := sha256.Sum256([]byte(value))
	if len(storedChecksum) != len(computed) {
		return "", false, nil
	}
	for i := range computed {
		if storedChecksum[i] != computed[i] {
			return "", false, nil
		}
	}

	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	checksum := sha256.Sum256([]byte(value))
	query := `INSERT OR REPLACE INTO collections (key, value, checksum, updated_at) VALUES (?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query, key, value, checksum[:], time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
