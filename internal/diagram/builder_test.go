package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
)

func linkedGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.NewGraph("EventGraph", graph.GraphEvent)

	src := g.AddNode(graph.NewNode("Get Health", graph.NodeCall))
	out := src.AddPin(graph.NewPin("Value", graph.Output, pintype.Scalar(pintype.KindFloat)))

	dst := g.AddNode(graph.NewNode("Set Health", graph.NodeCall))
	in := dst.AddPin(graph.NewPin("NewValue", graph.Input, pintype.Scalar(pintype.KindFloat)))

	require.NoError(t, graph.Connect(out, in))
	return g
}

func TestBuildNodesAndEdges(t *testing.T) {
	g := linkedGraph(t)
	m := Build(g)

	assert.Equal(t, "EventGraph", m.Title)
	require.Len(t, m.Nodes, 2)
	assert.Equal(t, "Get Health", m.Nodes[0].Label)
	assert.Equal(t, "call", m.Nodes[0].Kind)

	require.Len(t, m.Edges, 1)
	edge := m.Edges[0]
	assert.Equal(t, m.Nodes[0].ID, edge.From)
	assert.Equal(t, m.Nodes[1].ID, edge.To)
	assert.Equal(t, "Value -> NewValue", edge.Label)
}

func TestBuildEdgesFromOutputSideOnly(t *testing.T) {
	// Links are stored on both pins; the edge must not be doubled.
	m := Build(linkedGraph(t))
	assert.Len(t, m.Edges, 1)
}

func TestBuildSubPinLinks(t *testing.T) {
	g := graph.NewGraph("EventGraph", graph.GraphEvent)

	src := g.AddNode(graph.NewNode("Break Vector", graph.NodeCall))
	parent := src.AddPin(graph.NewPin("Out", graph.Output, pintype.Scalar(pintype.KindVector)))
	sub := parent.AddSubPin(graph.NewPin("Out_X", graph.Output, pintype.Scalar(pintype.KindFloat)))

	dst := g.AddNode(graph.NewNode("Set X", graph.NodeCall))
	in := dst.AddPin(graph.NewPin("X", graph.Input, pintype.Scalar(pintype.KindFloat)))
	require.NoError(t, graph.Connect(sub, in))

	m := Build(g)
	require.Len(t, m.Edges, 1)
	assert.Equal(t, "Out_X -> X", m.Edges[0].Label)
}

func TestBuildUntitledNodeFallsBackToKindLabel(t *testing.T) {
	g := graph.NewGraph("EventGraph", graph.GraphEvent)
	g.AddNode(graph.NewNode("", graph.NodeReroute))

	m := Build(g)
	require.Len(t, m.Nodes, 1)
	assert.Equal(t, "Reroute", m.Nodes[0].Label)
}

func TestBuildUsesDisplayNames(t *testing.T) {
	g := graph.NewGraph("EventGraph", graph.GraphEvent)

	src := g.AddNode(graph.NewNode("Source", graph.NodeCall))
	out := src.AddPin(graph.NewPin("ReturnValue", graph.Output, pintype.Scalar(pintype.KindBool)))
	out.DisplayName = "Is Valid"

	dst := g.AddNode(graph.NewNode("Branch", graph.NodeBranch))
	in := dst.AddPin(graph.NewPin("Condition", graph.Input, pintype.Scalar(pintype.KindBool)))
	require.NoError(t, graph.Connect(out, in))

	m := Build(g)
	require.Len(t, m.Edges, 1)
	assert.Equal(t, "Is Valid -> Condition", m.Edges[0].Label)
}
