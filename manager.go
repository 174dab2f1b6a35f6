package dataflow

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

const (
	defaultSplitPos = 75
	defaultKind     = "js"
	defaultFormat   = "Expression"
)

// Snapshot is a consistent view of the graph. A new Snapshot is built after
// every change; callers must not modify the slices it holds.
type Snapshot struct {
	Nodes     []Node
	Edges     []Edge
	Index     IdentityIndex
	TopoOrder []int
}

// Node returns the live node with the given identity.
func (s *Snapshot) Node(id NodeID) (Node, bool) {
	p, ok := s.Index.Position(id)
	if !ok {
		return Node{}, false
	}
	return s.Nodes[p], true
}

// HasEdge reports whether an edge from -> to exists.
func (s *Snapshot) HasEdge(from, to NodeID) bool {
	return s.edgeIndex(from, to) >= 0
}

func (s *Snapshot) edgeIndex(from, to NodeID) int {
	return slices.IndexFunc(s.Edges, func(e Edge) bool { return e.From == from && e.To == to })
}

func (s *Snapshot) nextID() NodeID {
	var top NodeID
	for _, n := range s.Nodes {
		top = max(top, n.Meta.ID)
	}
	return top + 1
}

func (s *Snapshot) freeName() string {
	used := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		used[n.Config.Name] = struct{}{}
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("node%d", i)
		if _, taken := used[name]; !taken {
			return name
		}
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithOrderer replaces the default Toposort.
func WithOrderer(o TopoOrderer) Option {
	return func(m *Manager) { m.orderer = o }
}

// WithNormalizer replaces the default CamelCase edge name normalizer.
func WithNormalizer(n NameNormalizer) Option {
	return func(m *Manager) { m.normalize = n }
}

// WithLogger sets the logger used for mutation tracing.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager owns a dataflow graph and serializes edits to it. Every mutation
// replaces the whole state; readers and subscribers only ever observe
// complete snapshots.
type Manager struct {
	mu    sync.Mutex
	state atomic.Pointer[Snapshot]

	orderer   TopoOrderer
	normalize NameNormalizer
	logger    *slog.Logger

	subs    map[int]func(*Snapshot)
	nextSub int
}

// New returns a Manager holding an empty graph.
func New(opts ...Option) *Manager {
	m := newManager(opts)
	m.state.Store(&Snapshot{Index: newIdentityIndex(nil), TopoOrder: []int{}})
	return m
}

func newManager(opts []Option) *Manager {
	m := &Manager{
		orderer:   Toposort,
		normalize: CamelCase,
		logger:    slog.Default(),
		subs:      make(map[int]func(*Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() *Snapshot {
	return m.state.Load()
}

// Subscribe registers fn to receive the current snapshot immediately and
// every new snapshot after a change. fn runs synchronously on the mutating
// goroutine and must not edit the Manager. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(*Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	cur := m.state.Load()
	m.mu.Unlock()

	fn(cur)
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// AddNode appends a node with a generated name and default settings at the
// given canvas position and returns its identity.
func (m *Manager) AddNode(hint Position) (NodeID, error) {
	var id NodeID
	err := m.update(func(s *Snapshot) ([]Node, []Edge, bool, error) {
		id = s.nextID()
		n := Node{
			Config: NodeConfig{
				Name:            s.freeName(),
				Function:        Function{Kind: defaultKind, Format: defaultFormat},
				AllowNullInputs: true,
			},
			Meta: NodeMeta{
				ID:       id,
				Position: hint,
				SplitPos: defaultSplitPos,
				Autorun:  true,
			},
		}
		return append(slices.Clone(s.Nodes), n), s.Edges, true, nil
	})
	if err != nil {
		return 0, err
	}
	m.logger.Debug("dataflow: node added", "node_id", id)
	return id, nil
}

// DeleteNode removes the node and every edge touching it. Unknown
// identities are ignored.
func (m *Manager) DeleteNode(id NodeID) error {
	removed := -1
	err := m.update(func(s *Snapshot) ([]Node, []Edge, bool, error) {
		p, ok := s.Index.Position(id)
		if !ok {
			return nil, nil, false, nil
		}
		nodes := slices.Delete(slices.Clone(s.Nodes), p, p+1)
		edges := slices.DeleteFunc(slices.Clone(s.Edges), func(e Edge) bool {
			return e.From == id || e.To == id
		})
		removed = len(s.Edges) - len(edges)
		return nodes, edges, true, nil
	})
	if err == nil && removed >= 0 {
		m.logger.Debug("dataflow: node deleted", "node_id", id, "edges_removed", removed)
	}
	return err
}

// AddEdge connects from -> to. Both endpoints must be live nodes, otherwise
// ErrUnknownEndpoint is returned. Adding an existing pair is a no-op. When
// name is empty the target node's name is used, normalized if it is not a
// plain identifier. An edge that would close a cycle is rejected with
// ErrCycleDetected.
func (m *Manager) AddEdge(from, to NodeID, name string) error {
	added := false
	err := m.update(func(s *Snapshot) ([]Node, []Edge, bool, error) {
		if !s.Index.Has(from) {
			return nil, nil, false, fmt.Errorf("%w: from node %d", ErrUnknownEndpoint, from)
		}
		target, ok := s.Node(to)
		if !ok {
			return nil, nil, false, fmt.Errorf("%w: to node %d", ErrUnknownEndpoint, to)
		}
		if s.HasEdge(from, to) {
			return nil, nil, false, nil
		}

		if name == "" {
			name = target.Config.Name
			if needsNormalizing(name) {
				name = m.normalize(name)
			}
		}
		added = true
		return s.Nodes, append(slices.Clone(s.Edges), Edge{From: from, To: to, Name: name}), true, nil
	})
	if err != nil {
		m.logger.Debug("dataflow: edge rejected", "from", from, "to", to, "error", err)
		return err
	}
	if added {
		m.logger.Debug("dataflow: edge added", "from", from, "to", to, "name", name)
	}
	return nil
}

// DeleteEdge removes the edge from -> to if present.
func (m *Manager) DeleteEdge(from, to NodeID) error {
	return m.update(func(s *Snapshot) ([]Node, []Edge, bool, error) {
		i := s.edgeIndex(from, to)
		if i < 0 {
			return nil, nil, false, nil
		}
		return s.Nodes, slices.Delete(slices.Clone(s.Edges), i, i+1), true, nil
	})
}

// UpdateConfig replaces the configuration of a node.
func (m *Manager) UpdateConfig(id NodeID, cfg NodeConfig) error {
	return m.update(func(s *Snapshot) ([]Node, []Edge, bool, error) {
		p, ok := s.Index.Position(id)
		if !ok {
			return nil, nil, false, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
		}
		nodes := slices.Clone(s.Nodes)
		nodes[p].Config = cfg
		return nodes, s.Edges, true, nil
	})
}

// UpdateMeta replaces the editor metadata of a node. The identity carried
// in meta is ignored.
func (m *Manager) UpdateMeta(id NodeID, meta NodeMeta) error {
	return m.update(func(s *Snapshot) ([]Node, []Edge, bool, error) {
		p, ok := s.Index.Position(id)
		if !ok {
			return nil, nil, false, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
		}
		meta.ID = id
		nodes := slices.Clone(s.Nodes)
		nodes[p].Meta = meta
		return nodes, s.Edges, true, nil
	})
}

// update runs fn against the current state and publishes the result. fn
// reports changed=false for a no-op. Nothing is published when fn or the
// derived state computation fails.
func (m *Manager) update(fn func(s *Snapshot) (nodes []Node, edges []Edge, changed bool, err error)) error {
	next, subs, err := m.apply(fn)
	if err != nil || next == nil {
		return err
	}
	for _, sub := range subs {
		sub(next)
	}
	return nil
}

func (m *Manager) apply(fn func(s *Snapshot) ([]Node, []Edge, bool, error)) (*Snapshot, []func(*Snapshot), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nodes, edges, changed, err := fn(m.state.Load())
	if err != nil || !changed {
		return nil, nil, err
	}
	next, err := m.derive(nodes, edges)
	if err != nil {
		return nil, nil, err
	}
	m.state.Store(next)

	subs := make([]func(*Snapshot), 0, len(m.subs))
	for _, id := range slices.Sorted(maps.Keys(m.subs)) {
		subs = append(subs, m.subs[id])
	}
	return next, subs, nil
}

// derive rebuilds the identity index and execution order for a node and
// edge sequence.
func (m *Manager) derive(nodes []Node, edges []Edge) (*Snapshot, error) {
	idx := newIdentityIndex(nodes)
	positioned := idx.toPositions(edges)
	if dropped := len(edges) - len(positioned); dropped > 0 {
		m.logger.Debug("dataflow: dropped unresolved edges", "count", dropped)
	}

	order, err := m.orderer(len(nodes), positioned)
	if err != nil {
		return nil, fmt.Errorf("dataflow: order nodes: %w", err)
	}
	if len(order) != len(nodes) {
		return nil, fmt.Errorf("dataflow: order nodes: got %d positions for %d nodes", len(order), len(nodes))
	}

	if nodes == nil {
		nodes = []Node{}
	}
	if edges == nil {
		edges = []Edge{}
	}
	return &Snapshot{Nodes: nodes, Edges: edges, Index: idx, TopoOrder: order}, nil
}
