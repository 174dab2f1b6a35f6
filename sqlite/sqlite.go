// Package sqlite implements dataflow.Repository on a local SQLite file,
// storing both artifacts as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/meikuraledutech/dataflow"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dataflows (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    compiled   TEXT NOT NULL DEFAULT '{}',
    source     TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dataflows_created_at ON dataflows(created_at);
`

const flowColumns = `id, name, compiled, source, created_at, updated_at`

// Store implements dataflow.Repository using database/sql and go-sqlite3.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("dataflow: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dataflow: ping sqlite: %w", err)
	}
	return New(db), nil
}

// New wraps an already opened database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates the dataflows table if it doesn't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropSchema drops the dataflows table.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS dataflows`)
	return err
}

// CreateFlow inserts a flow, generating a UUID if f.ID is empty.
func (s *Store) CreateFlow(ctx context.Context, f *dataflow.Flow) (*dataflow.Flow, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	compiled, source, err := encode(f)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO dataflows (`+flowColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, compiled, source, now, now,
	); err != nil {
		return nil, fmt.Errorf("dataflow: insert flow: %w", err)
	}
	f.CreatedAt, f.UpdatedAt = now, now
	return f, nil
}

// GetFlow returns nil, nil if the flow does not exist.
func (s *Store) GetFlow(ctx context.Context, flowID string) (*dataflow.Flow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+flowColumns+` FROM dataflows WHERE id = ?`, flowID)
	f, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("dataflow: get flow: %w", err)
	}
	return f, nil
}

// UpdateFlow returns dataflow.ErrFlowNotFound if the flow does not exist.
func (s *Store) UpdateFlow(ctx context.Context, f *dataflow.Flow) error {
	compiled, source, err := encode(f)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE dataflows SET name = ?, compiled = ?, source = ?, updated_at = ? WHERE id = ?`,
		f.Name, compiled, source, now, f.ID,
	)
	if err != nil {
		return fmt.Errorf("dataflow: update flow: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("dataflow: update flow: %w", err)
	}
	if n == 0 {
		return dataflow.ErrFlowNotFound
	}
	f.UpdatedAt = now
	return nil
}

// DeleteFlow is a no-op for unknown IDs.
func (s *Store) DeleteFlow(ctx context.Context, flowID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dataflows WHERE id = ?`, flowID); err != nil {
		return fmt.Errorf("dataflow: delete flow: %w", err)
	}
	return nil
}

// ListFlows returns all flows ordered by creation time.
func (s *Store) ListFlows(ctx context.Context) ([]dataflow.Flow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+flowColumns+` FROM dataflows ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("dataflow: list flows: %w", err)
	}
	defer rows.Close()

	flows := []dataflow.Flow{}
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("dataflow: scan flow: %w", err)
		}
		flows = append(flows, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dataflow: rows flows: %w", err)
	}
	return flows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFlow(row scanner) (*dataflow.Flow, error) {
	var (
		f                dataflow.Flow
		compiled, source string
	)
	if err := row.Scan(&f.ID, &f.Name, &compiled, &source, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(compiled), &f.Compiled); err != nil {
		return nil, fmt.Errorf("decode compiled: %w", err)
	}
	if err := json.Unmarshal([]byte(source), &f.Source); err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	return &f, nil
}

func encode(f *dataflow.Flow) (compiled, source string, err error) {
	c, err := json.Marshal(f.Compiled)
	if err != nil {
		return "", "", fmt.Errorf("dataflow: encode compiled: %w", err)
	}
	src, err := json.Marshal(f.Source)
	if err != nil {
		return "", "", fmt.Errorf("dataflow: encode source: %w", err)
	}
	return string(c), string(src), nil
}
