// Package memory provides an in-process dataflow.Repository. It backs the
// server when no database is configured and serves as a test double.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/dataflow"
)

// Store implements dataflow.Repository with a map guarded by a RWMutex.
type Store struct {
	mu    sync.RWMutex
	flows map[string]dataflow.Flow
	now   func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		flows: make(map[string]dataflow.Flow),
		now:   time.Now,
	}
}

// CreateSchema is a no-op.
func (s *Store) CreateSchema(context.Context) error { return nil }

// DropSchema discards every flow.
func (s *Store) DropSchema(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows = make(map[string]dataflow.Flow)
	return nil
}

// CreateFlow stores a copy of f, generating an ID if it is empty.
func (s *Store) CreateFlow(_ context.Context, f *dataflow.Flow) (*dataflow.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = s.now()
	f.UpdatedAt = f.CreatedAt
	s.flows[f.ID] = clone(*f)
	return f, nil
}

// GetFlow returns nil, nil if the flow does not exist.
func (s *Store) GetFlow(_ context.Context, flowID string) (*dataflow.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.flows[flowID]
	if !ok {
		return nil, nil
	}
	f = clone(f)
	return &f, nil
}

// UpdateFlow returns dataflow.ErrFlowNotFound if the flow does not exist.
func (s *Store) UpdateFlow(_ context.Context, f *dataflow.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.flows[f.ID]
	if !ok {
		return dataflow.ErrFlowNotFound
	}
	f.CreatedAt = old.CreatedAt
	f.UpdatedAt = s.now()
	s.flows[f.ID] = clone(*f)
	return nil
}

// DeleteFlow is a no-op for unknown IDs.
func (s *Store) DeleteFlow(_ context.Context, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, flowID)
	return nil
}

// ListFlows returns all flows ordered by creation time.
func (s *Store) ListFlows(context.Context) ([]dataflow.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flows := make([]dataflow.Flow, 0, len(s.flows))
	for _, f := range s.flows {
		flows = append(flows, clone(f))
	}
	slices.SortFunc(flows, func(a, b dataflow.Flow) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return flows, nil
}

func clone(f dataflow.Flow) dataflow.Flow {
	f.Compiled.Nodes = slices.Clone(f.Compiled.Nodes)
	f.Compiled.Edges = slices.Clone(f.Compiled.Edges)
	f.Compiled.Toposorted = slices.Clone(f.Compiled.Toposorted)
	f.Source.Nodes = slices.Clone(f.Source.Nodes)
	return f
}
