package dataflow

// IdentityIndex maps node identities to their current positions and back.
// It is rebuilt from the node sequence after every structural change.
type IdentityIndex struct {
	positions  map[NodeID]int
	identities []NodeID
}

func newIdentityIndex(nodes []Node) IdentityIndex {
	idx := IdentityIndex{
		positions:  make(map[NodeID]int, len(nodes)),
		identities: make([]NodeID, len(nodes)),
	}
	for i, n := range nodes {
		idx.positions[n.Meta.ID] = i
		idx.identities[i] = n.Meta.ID
	}
	return idx
}

// Position returns the position of the node with the given identity.
func (x IdentityIndex) Position(id NodeID) (int, bool) {
	p, ok := x.positions[id]
	return p, ok
}

// Identity returns the identity of the node at position p.
func (x IdentityIndex) Identity(p int) (NodeID, bool) {
	if p < 0 || p >= len(x.identities) {
		return 0, false
	}
	return x.identities[p], true
}

// Has reports whether id belongs to a live node.
func (x IdentityIndex) Has(id NodeID) bool {
	_, ok := x.positions[id]
	return ok
}

// Len returns the number of indexed nodes.
func (x IdentityIndex) Len() int { return len(x.identities) }

// toPositions translates identity-addressed edges. Edges whose endpoints do
// not resolve are dropped.
func (x IdentityIndex) toPositions(edges []Edge) []PositionEdge {
	out := make([]PositionEdge, 0, len(edges))
	for _, e := range edges {
		from, ok := x.Position(e.From)
		if !ok {
			continue
		}
		to, ok := x.Position(e.To)
		if !ok {
			continue
		}
		out = append(out, PositionEdge{From: from, To: to, Name: e.Name})
	}
	return out
}
