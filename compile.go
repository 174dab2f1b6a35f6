package dataflow

import (
	"fmt"
	"slices"
)

// Compile produces the structural definition for the execution backend and
// the positionally aligned editor metadata. The Manager is not modified.
func (m *Manager) Compile() (Definition, Source) {
	s := m.Snapshot()

	def := Definition{
		Nodes:      make([]NodeConfig, len(s.Nodes)),
		Edges:      s.Index.toPositions(s.Edges),
		Toposorted: slices.Clone(s.TopoOrder),
	}
	src := Source{Nodes: make([]NodeMeta, len(s.Nodes))}
	for i, n := range s.Nodes {
		def.Nodes[i] = n.Config
		src.Nodes[i] = n.Meta
	}
	return def, src
}

// Validate checks the rules a definition must satisfy before it is handed
// to the execution backend: every node has a name and names are unique.
func (m *Manager) Validate() error {
	s := m.Snapshot()
	seen := make(map[string]NodeID, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Config.Name == "" {
			return fmt.Errorf("%w: node %d", ErrEmptyName, n.Meta.ID)
		}
		if other, dup := seen[n.Config.Name]; dup {
			return fmt.Errorf("%w: %q used by nodes %d and %d", ErrDuplicateName, n.Config.Name, other, n.Meta.ID)
		}
		seen[n.Config.Name] = n.Meta.ID
	}
	return nil
}

// Load rebuilds a Manager from a compiled definition and its metadata.
//
// Configs and metadata are paired by position, stopping at the shorter of
// the two. A metadata identity that is not positive or repeats an earlier
// one is replaced with a fresh identity. Edges whose positions do not
// resolve to a loaded node, and repeats of an already loaded pair, are
// dropped. The stored toposorted order is not trusted and is recomputed.
func Load(def Definition, src Source, opts ...Option) (*Manager, error) {
	n := min(len(def.Nodes), len(src.Nodes))
	nodes := make([]Node, n)

	var top NodeID
	seen := make(map[NodeID]struct{}, n)
	var reassign []int
	for i := range n {
		nodes[i] = Node{Config: def.Nodes[i], Meta: src.Nodes[i]}
		id := src.Nodes[i].ID
		if _, dup := seen[id]; id <= 0 || dup {
			reassign = append(reassign, i)
			continue
		}
		seen[id] = struct{}{}
		top = max(top, id)
	}
	for _, i := range reassign {
		top++
		nodes[i].Meta.ID = top
	}

	edges := make([]Edge, 0, len(def.Edges))
	type pair struct{ from, to NodeID }
	pairs := make(map[pair]struct{}, len(def.Edges))
	for _, e := range def.Edges {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			continue
		}
		p := pair{nodes[e.From].Meta.ID, nodes[e.To].Meta.ID}
		if _, dup := pairs[p]; dup {
			continue
		}
		pairs[p] = struct{}{}
		edges = append(edges, Edge{From: p.from, To: p.to, Name: e.Name})
	}

	m := newManager(opts)
	if dropped := len(def.Edges) - len(edges); dropped > 0 {
		m.logger.Debug("dataflow: dropped stale edges on load", "count", dropped)
	}
	if len(reassign) > 0 {
		m.logger.Debug("dataflow: reassigned node identities on load", "count", len(reassign))
	}

	s, err := m.derive(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("dataflow: load: %w", err)
	}
	m.state.Store(s)
	return m, nil
}
