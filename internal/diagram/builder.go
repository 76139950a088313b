package diagram

import (
	"fmt"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
)

// Build constructs a Model from one graph. Each node becomes a diagram node
// and each link becomes an edge labeled with its pin pair. Links are stored
// symmetrically on both endpoints, so edges are taken from the output side
// only.
func Build(g *graph.Graph) *Model {
	m := &Model{Title: g.Name}

	for _, n := range g.Nodes() {
		m.Nodes = append(m.Nodes, Node{
			ID:    n.ID.String(),
			Label: n.DisplayLabel(),
			Kind:  string(n.Kind),
		})
		for _, p := range outputPins(n) {
			for _, target := range p.Links() {
				to := target.Node()
				if to == nil {
					continue
				}
				m.Edges = append(m.Edges, Edge{
					From:  n.ID.String(),
					To:    to.ID.String(),
					Label: fmt.Sprintf("%s -> %s", p.Label(), target.Label()),
				})
			}
		}
	}
	return m
}

// outputPins returns a node's output pins, split sub-pins included since
// they carry their own links.
func outputPins(n *graph.Node) []*graph.Pin {
	var out []*graph.Pin
	for _, p := range n.Pins {
		if p.Direction != graph.Output {
			continue
		}
		out = append(out, p)
		out = append(out, p.SubPins...)
	}
	return out
}
