package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/dataflow"
)

const flowColumns = `id, name, compiled, source, created_at, updated_at`

// CreateFlow inserts a flow. If f.ID is empty, a UUID is auto-generated.
// Returns the flow with ID and timestamps filled in.
func (s *PGStore) CreateFlow(ctx context.Context, f *dataflow.Flow) (*dataflow.Flow, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO dataflows (id, name, compiled, source) VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		f.ID, f.Name, f.Compiled, f.Source,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("dataflow: insert flow: %w", err)
	}
	return f, nil
}

// GetFlow fetches a flow by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetFlow(ctx context.Context, flowID string) (*dataflow.Flow, error) {
	row := s.db.QueryRow(ctx, `SELECT `+flowColumns+` FROM dataflows WHERE id = $1`, flowID)
	f, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("dataflow: get flow: %w", err)
	}
	return f, nil
}

// UpdateFlow replaces the name and artifacts of an existing flow.
// Returns ErrFlowNotFound if the flow doesn't exist.
func (s *PGStore) UpdateFlow(ctx context.Context, f *dataflow.Flow) error {
	err := s.db.QueryRow(ctx,
		`UPDATE dataflows SET name = $1, compiled = $2, source = $3, updated_at = NOW()
		 WHERE id = $4 RETURNING created_at, updated_at`,
		f.Name, f.Compiled, f.Source, f.ID,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dataflow.ErrFlowNotFound
		}
		return fmt.Errorf("dataflow: update flow: %w", err)
	}
	return nil
}

// DeleteFlow removes a flow.
// No error if the flow doesn't exist.
func (s *PGStore) DeleteFlow(ctx context.Context, flowID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM dataflows WHERE id = $1`, flowID); err != nil {
		return fmt.Errorf("dataflow: delete flow: %w", err)
	}
	return nil
}

// ListFlows returns all flows, ordered by created_at.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListFlows(ctx context.Context) ([]dataflow.Flow, error) {
	rows, err := s.db.Query(ctx, `SELECT `+flowColumns+` FROM dataflows ORDER BY created_at, id`)
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

// scanFlow reads one row. pgx decodes the JSONB columns straight into the
// artifact structs.
func scanFlow(row pgx.Row) (*dataflow.Flow, error) {
	var f dataflow.Flow
	if err := row.Scan(&f.ID, &f.Name, &f.Compiled, &f.Source, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}
