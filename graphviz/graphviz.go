// Package graphviz renders compiled dataflow definitions as Graphviz DOT.
package graphviz

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/meikuraledutech/dataflow"
)

const graphName = "dataflow"

// NodeName is the DOT identifier used for the node at position p.
func NodeName(p int) string {
	return fmt.Sprintf("n%d", p)
}

// Render returns def as a DOT digraph. Nodes are labelled with their
// configured name and edges with their channel name.
func Render(def dataflow.Definition) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	if err := g.AddAttr(graphName, "rankdir", "LR"); err != nil {
		return "", err
	}

	for i, n := range def.Nodes {
		attrs := map[string]string{
			"label": strconv.Quote(n.Name),
			"shape": "box",
		}
		if err := g.AddNode(graphName, NodeName(i), attrs); err != nil {
			return "", fmt.Errorf("dataflow: render node %d: %w", i, err)
		}
	}

	for _, e := range def.Edges {
		if e.From < 0 || e.From >= len(def.Nodes) || e.To < 0 || e.To >= len(def.Nodes) {
			return "", fmt.Errorf("%w: %d -> %d", dataflow.ErrInvalidPosition, e.From, e.To)
		}
		attrs := map[string]string{"label": strconv.Quote(e.Name)}
		if err := g.AddEdge(NodeName(e.From), NodeName(e.To), true, attrs); err != nil {
			return "", fmt.Errorf("dataflow: render edge %d -> %d: %w", e.From, e.To, err)
		}
	}

	return g.String(), nil
}
