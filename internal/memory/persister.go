package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrSnapshotCorrupted is returned when a persisted document cannot be decoded.
var ErrSnapshotCorrupted = errors.New("memory snapshot corrupted")

// Persister stores and retrieves the full memory snapshot.
//
// Load returns an empty snapshot, not an error, when nothing has been
// persisted yet.
type Persister interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Personas: map[string]*PersonaMemoryState{}}
}

// decodeSnapshot parses a persisted document. Unknown keys are ignored.
func decodeSnapshot(data []byte) (*Snapshot, error) {
	snap := emptySnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupted, err)
	}
	if snap.Personas == nil {
		snap.Personas = map[string]*PersonaMemoryState{}
	}
	for id, st := range snap.Personas {
		if st == nil {
			st = NewPersonaMemoryState()
			snap.Personas[id] = st
		}
		st.normalize()
	}
	return snap, nil
}

// FilePersister writes the snapshot as a single JSON file.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister writing to path. The parent directory
// is created on first save.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the target file.
func (p *FilePersister) Path() string { return p.path }

// Save writes the snapshot atomically via a temp file and rename.
func (p *FilePersister) Save(_ context.Context, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	tmpPath := p.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write memory snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename memory snapshot: %w", err)
	}

	return nil
}

// Load reads the snapshot file.
func (p *FilePersister) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptySnapshot(), nil
		}
		return nil, fmt.Errorf("failed to read memory snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

// SQLitePersister keeps the snapshot document in a SQLite table. Each save
// replaces the single row inside a transaction.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens (or creates) the database at dbPath and
// initializes its schema. Use ":memory:" for an in-process database.
func NewSQLitePersister(ctx context.Context, dbPath string) (*SQLitePersister, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &SQLitePersister{db: db}
	if err := p.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *SQLitePersister) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS memory_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			document TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Save replaces the stored document.
func (p *SQLitePersister) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal memory snapshot: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_snapshot (id, document, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`, string(data))
	if err != nil {
		return fmt.Errorf("failed to write memory snapshot: %w", err)
	}
	return tx.Commit()
}

// Load reads the stored document.
func (p *SQLitePersister) Load(ctx context.Context) (*Snapshot, error) {
	var doc string
	err := p.db.QueryRowContext(ctx, `SELECT document FROM memory_snapshot WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return emptySnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read memory snapshot: %w", err)
	}
	return decodeSnapshot([]byte(doc))
}

// Close releases the database handle.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
