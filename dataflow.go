// Package dataflow models a user-editable graph of computation nodes.
//
// A Manager owns the in-memory graph. Nodes are kept in a dense sequence and
// addressed by position when compiled for the execution backend, while edges
// reference the stable NodeID so that they survive reordering and deletion.
package dataflow

import "time"

// NodeID is the stable identity of a node. It is assigned once and never
// reassigned while the node exists.
type NodeID int

// Function describes the code a node runs. It is opaque to this package.
type Function struct {
	Kind   string `json:"kind"`
	Code   string `json:"code"`
	Format string `json:"format"`
}

// NodeConfig is the part of a node the execution backend consumes.
type NodeConfig struct {
	Name            string   `json:"name"`
	Function        Function `json:"function"`
	AllowNullInputs bool     `json:"allow_null_inputs"`
}

// Position is a node's location on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeMeta is editor-only state. ID carries the node's identity.
type NodeMeta struct {
	ID         NodeID   `json:"id"`
	Position   Position `json:"position"`
	SplitPos   float64  `json:"splitPos"`
	Autorun    bool     `json:"autorun"`
	LastOutput string   `json:"lastOutput"`
}

// Node pairs a node's configuration with its editor metadata.
type Node struct {
	Config NodeConfig `json:"config"`
	Meta   NodeMeta   `json:"meta"`
}

// ID returns the node's identity.
func (n Node) ID() NodeID { return n.Meta.ID }

// Edge is an identity-addressed data dependency. Name is the label of the
// data channel as seen by the target node.
type Edge struct {
	From NodeID `json:"from"`
	To   NodeID `json:"to"`
	Name string `json:"name"`
}

// PositionEdge is an edge addressed by node positions, as sent to the
// execution backend.
type PositionEdge struct {
	From int    `json:"from"`
	To   int    `json:"to"`
	Name string `json:"name"`
}

// Definition is the structural artifact consumed by the execution backend.
type Definition struct {
	Nodes      []NodeConfig   `json:"nodes"`
	Edges      []PositionEdge `json:"edges"`
	Toposorted []int          `json:"toposorted"`
}

// Source is the editor metadata artifact, positionally aligned with
// Definition.Nodes.
type Source struct {
	Nodes []NodeMeta `json:"nodes"`
}

// Flow is a persisted dataflow.
type Flow struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Compiled  Definition `json:"compiled"`
	Source    Source     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
