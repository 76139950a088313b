package topology

import (
	"context"
	"log/slog"
	"testing"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEditor(t *testing.T) (*Editor, *graph.Document, *graph.Node) {
	t.Helper()
	doc := graph.NewDocument("", "Doc")
	g := doc.AddGraph(graph.NewGraph("EventGraph", graph.GraphEvent))
	n := g.AddNode(graph.NewNode("Set Transform", graph.NodeCall))
	n.AddPin(graph.NewPin("NewLocation", graph.Input, pintype.Scalar(pintype.KindVector)))
	n.AddPin(graph.NewPin("Label", graph.Input, pintype.Scalar(pintype.KindString)))
	n.AddPin(graph.NewPin("Target", graph.Input, pintype.Named(pintype.KindObject, &pintype.NamedType{Name: "Actor"})))
	return New(doc, slog.New(slog.DiscardHandler)), doc, n
}

func TestSplitVectorPin(t *testing.T) {
	e, doc, n := testEditor(t)

	res := e.Split(context.Background(), n.Title, []string{"NewLocation"})
	require.True(t, res.Success)
	require.Len(t, res.Statuses, 1)
	assert.Equal(t, schema.StatusApplied, res.Statuses[0].Status)

	pin := n.Pins[0]
	require.Len(t, pin.SubPins, 3)
	assert.Equal(t, "NewLocation_X", pin.SubPins[0].Name)
	assert.Same(t, pin, pin.SubPins[0].Parent)
	assert.Same(t, n, pin.SubPins[0].Node())
	assert.Equal(t, "0.0", pin.SubPins[0].Default)
	assert.True(t, doc.Dirty())
}

func TestSplitAlreadySplitIsNoop(t *testing.T) {
	e, doc, n := testEditor(t)
	e.Split(context.Background(), n.Title, []string{"NewLocation"})
	doc.ClearDirty()

	res := e.Split(context.Background(), n.Title, []string{"NewLocation"})
	require.True(t, res.Success)
	assert.Equal(t, schema.StatusNoop, res.Statuses[0].Status)
	assert.False(t, doc.Dirty(), "noop performs no structural change")
}

func TestSplitNonDecomposableFails(t *testing.T) {
	e, _, n := testEditor(t)

	res := e.Split(context.Background(), n.Title, []string{"Label"})
	assert.False(t, res.Success)
	assert.Equal(t, schema.StatusFailed, res.Statuses[0].Status)
	assert.Equal(t, schema.ErrCodeCannotSplit, res.Statuses[0].Code)
}

func TestSplitUnknownNodeAndPin(t *testing.T) {
	e, _, n := testEditor(t)

	res := e.Split(context.Background(), "NoSuchNode", []string{"NewLocation"})
	assert.False(t, res.Success)
	assert.Equal(t, schema.ErrCodeNodeNotFound, res.Statuses[0].Code)

	res = e.Split(context.Background(), n.Title, []string{"Bogus", "NewLocation"})
	assert.False(t, res.Success)
	require.Len(t, res.Statuses, 2)
	assert.Equal(t, schema.StatusFailed, res.Statuses[0].Status)
	assert.Equal(t, schema.StatusApplied, res.Statuses[1].Status, "other pins still proceed")
}

func TestRecombine(t *testing.T) {
	e, _, n := testEditor(t)
	e.Split(context.Background(), n.Title, []string{"NewLocation"})
	pin := n.Pins[0]
	require.Len(t, pin.SubPins, 3)

	// Link a sub-pin so recombination has something to break.
	g := n.Graph()
	src := g.AddNode(graph.NewNode("Float Source", graph.NodeCall))
	out := src.AddPin(graph.NewPin("Value", graph.Output, pintype.Scalar(pintype.KindFloat)))
	require.NoError(t, graph.Connect(out, pin.SubPins[0]))

	// Referencing the sub-pin operates on the parent.
	res := e.Recombine(context.Background(), n.Title, []string{"NewLocation_X"})
	require.True(t, res.Success)
	assert.Equal(t, schema.StatusApplied, res.Statuses[0].Status)
	assert.Empty(t, pin.SubPins)
	assert.False(t, out.HasLinks(), "sub-pin links break on recombine")
}

func TestRecombineUnsplitIsNoop(t *testing.T) {
	e, _, n := testEditor(t)

	res := e.Recombine(context.Background(), n.Title, []string{"NewLocation"})
	require.True(t, res.Success)
	assert.Equal(t, schema.StatusNoop, res.Statuses[0].Status)
}

func TestResetDefaults(t *testing.T) {
	e, _, n := testEditor(t)
	n.Pins[0].Default = "1,2,3"

	res := e.ResetDefaults(context.Background(), n.Title, []string{"NewLocation"}, false, false)
	require.True(t, res.Success)
	assert.Equal(t, schema.StatusApplied, res.Statuses[0].Status)
	assert.Equal(t, "0,0,0", n.Pins[0].Default)

	// Second reset is idempotent.
	res = e.ResetDefaults(context.Background(), n.Title, []string{"NewLocation"}, false, false)
	assert.Equal(t, schema.StatusNoop, res.Statuses[0].Status)
}

func TestResetDefaultsUnmanagedIgnored(t *testing.T) {
	e, _, n := testEditor(t)

	res := e.ResetDefaults(context.Background(), n.Title, []string{"Target"}, false, false)
	require.True(t, res.Success)
	assert.Equal(t, schema.StatusIgnored, res.Statuses[0].Status)
}

func TestResetAllWithCompile(t *testing.T) {
	e, doc, n := testEditor(t)
	n.Pins[0].Default = "9,9,9"
	n.Pins[1].Default = "hello"

	res := e.ResetDefaults(context.Background(), n.Title, nil, true, true)
	require.True(t, res.Success)
	require.Len(t, res.Statuses, 3, "reset_all covers every input pin")
	assert.True(t, res.Compiled)
	assert.Equal(t, 1, doc.Compilations)

	statuses := map[string]string{}
	for _, s := range res.Statuses {
		statuses[s.Pin] = s.Status
	}
	assert.Equal(t, schema.StatusApplied, statuses["NewLocation"])
	assert.Equal(t, schema.StatusApplied, statuses["Label"])
	assert.Equal(t, schema.StatusIgnored, statuses["Target"])
}

func TestResetNoopSkipsCompile(t *testing.T) {
	e, doc, n := testEditor(t)
	n.Pins[0].Default = "0,0,0"
	n.Pins[1].Default = ""

	res := e.ResetDefaults(context.Background(), n.Title, nil, true, true)
	require.True(t, res.Success)
	assert.False(t, res.Compiled)
	assert.Equal(t, 0, doc.Compilations)
}
