package connect

import (
	"context"
	"log/slog"
	"sort"
	"testing"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fixture struct {
	doc *graph.Document
	g   *graph.Graph
	o   *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc := graph.NewDocument("", "Doc")
	g := doc.AddGraph(graph.NewGraph("EventGraph", graph.GraphEvent))
	return &fixture{doc: doc, g: g, o: New(doc, discard())}
}

func (f *fixture) node(title string, kind graph.NodeKind) *graph.Node {
	return f.g.AddNode(graph.NewNode(title, kind))
}

func outPin(n *graph.Node, name string, k pintype.Kind) *graph.Pin {
	return n.AddPin(graph.NewPin(name, graph.Output, pintype.Scalar(k)))
}

func inPin(n *graph.Node, name string, k pintype.Kind) *graph.Pin {
	return n.AddPin(graph.NewPin(name, graph.Input, pintype.Scalar(k)))
}

func refFor(p *graph.Pin) schema.PinRef {
	return schema.PinRef{PinID: p.ID}
}

func TestConnectSimple(t *testing.T) {
	f := newFixture(t)
	src := outPin(f.node("A", graph.NodeCall), "Out", pintype.KindInt)
	tgt := inPin(f.node("B", graph.NodeCall), "In", pintype.KindInt)

	res := f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(src), Target: refFor(tgt)},
	}, schema.BatchDefaults{})

	require.True(t, res.Success)
	require.Len(t, res.Results, 1)
	item := res.Results[0]
	assert.True(t, item.Success)
	require.Len(t, item.CreatedLinks, 1)
	assert.Equal(t, "Out", item.CreatedLinks[0].SourcePin)
	assert.Equal(t, "In", item.CreatedLinks[0].TargetPin)
	assert.Empty(t, item.BrokenLinks)
	assert.Equal(t, []string{f.g.ID}, res.ModifiedGraphs)
	assert.True(t, f.doc.Dirty())
}

func TestConnectAlreadyLinkedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	src := outPin(f.node("A", graph.NodeCall), "Out", pintype.KindInt)
	tgt := inPin(f.node("B", graph.NodeCall), "In", pintype.KindInt)
	require.NoError(t, graph.Connect(src, tgt))

	res := f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(src), Target: refFor(tgt)},
	}, schema.BatchDefaults{})

	require.True(t, res.Success)
	item := res.Results[0]
	assert.True(t, item.Success)
	assert.True(t, item.AlreadyConnected)
	assert.Empty(t, item.CreatedLinks)
	assert.Empty(t, res.ModifiedGraphs, "idempotent success performs no mutation")
	assert.Len(t, src.Links(), 1)
}

func TestConnectPartialBatchFailure(t *testing.T) {
	f := newFixture(t)
	a := f.node("A", graph.NodeCall)
	b := f.node("B", graph.NodeCall)
	src1 := outPin(a, "Out1", pintype.KindInt)
	tgt1 := inPin(b, "In1", pintype.KindInt)
	src3 := outPin(a, "Out3", pintype.KindBool)
	tgt3 := inPin(b, "In3", pintype.KindBool)

	res := f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(src1), Target: refFor(tgt1)},
		{Source: schema.PinRef{Node: "NoSuchNode", Pin: "Out"}, Target: refFor(tgt1)},
		{Source: refFor(src3), Target: refFor(tgt3)},
	}, schema.BatchDefaults{})

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	assert.True(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.Equal(t, schema.ErrCodeSourcePinNotFound, res.Results[1].Code)
	assert.True(t, res.Results[2].Success)

	// The two successes landed despite the middle failure.
	assert.True(t, src1.LinkedTo(tgt1))
	assert.True(t, src3.LinkedTo(tgt3))
}

func TestConnectClassifiedValidationErrors(t *testing.T) {
	f := newFixture(t)
	a := f.node("A", graph.NodeCall)
	src := outPin(a, "Out", pintype.KindInt)
	tgt := inPin(f.node("B", graph.NodeCall), "In", pintype.KindInt)

	other := graph.NewGraph("Other", graph.GraphFunction)
	f.doc.AddGraph(other)
	farIn := inPin(other.AddNode(graph.NewNode("C", graph.NodeCall)), "In", pintype.KindInt)

	tests := []struct {
		name string
		req  schema.ConnectionRequest
		code string
	}{
		{"missing source", schema.ConnectionRequest{Target: refFor(tgt)}, schema.ErrCodeParamMissing},
		{"missing target", schema.ConnectionRequest{Source: refFor(src)}, schema.ErrCodeParamMissing},
		{"malformed composite", schema.ConnectionRequest{
			Source: schema.PinRef{Composite: "no-separator"}, Target: refFor(tgt),
		}, schema.ErrCodePinLookupFailed},
		{"unknown target", schema.ConnectionRequest{
			Source: refFor(src), Target: schema.PinRef{Node: "Nope", Pin: "In"},
		}, schema.ErrCodeTargetPinNotFound},
		{"identical pins", schema.ConnectionRequest{
			Source: refFor(src), Target: refFor(src),
		}, schema.ErrCodeIdenticalPins},
		{"different graphs", schema.ConnectionRequest{
			Source: refFor(src), Target: refFor(farIn),
		}, schema.ErrCodeDifferentGraphs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{tt.req}, schema.BatchDefaults{})
			require.False(t, res.Success)
			assert.Equal(t, tt.code, res.Results[0].Code)
		})
	}
}

func TestConnectPolicyBlocked(t *testing.T) {
	f := newFixture(t)
	src := outPin(f.node("A", graph.NodeCall), "Out", pintype.KindInt)
	tgt := inPin(f.node("B", graph.NodeCall), "In", pintype.KindVector)

	res := f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(src), Target: refFor(tgt)},
	}, schema.BatchDefaults{})

	assert.Equal(t, schema.ErrCodeConnectionBlocked, res.Results[0].Code)
	assert.False(t, src.HasLinks())
}

func TestConnectConversionRequiresApproval(t *testing.T) {
	f := newFixture(t)
	a := f.node("A", graph.NodeCall)
	b := f.node("B", graph.NodeCall)
	src := outPin(a, "Out", pintype.KindInt)
	strIn := inPin(b, "Str", pintype.KindString)
	floatIn := inPin(b, "Flt", pintype.KindFloat)

	// Without approval both conversion and promotion are refused.
	res := f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(src), Target: refFor(strIn)},
		{Source: refFor(src), Target: refFor(floatIn)},
	}, schema.BatchDefaults{})
	assert.Equal(t, schema.ErrCodeConversionRequired, res.Results[0].Code)
	assert.Equal(t, schema.ErrCodeConversionRequired, res.Results[1].Code)

	// Batch defaults approve both.
	res = f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(src), Target: refFor(strIn)},
		{Source: refFor(src), Target: refFor(floatIn)},
	}, schema.BatchDefaults{AllowConversionNode: true, AllowPromotion: true, BreakExisting: true})
	assert.True(t, res.Success)

	// A per-request flag overrides the batch default.
	tgt2 := inPin(b, "Str2", pintype.KindString)
	no := false
	res = f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(outPin(a, "Out2", pintype.KindInt)), Target: refFor(tgt2), AllowConversionNode: &no},
	}, schema.BatchDefaults{AllowConversionNode: true})
	assert.Equal(t, schema.ErrCodeConversionRequired, res.Results[0].Code)
}

func TestConnectBreakExisting(t *testing.T) {
	f := newFixture(t)
	a := f.node("A", graph.NodeCall)
	src := outPin(a, "Out", pintype.KindInt)
	first := inPin(f.node("B", graph.NodeCall), "In", pintype.KindInt)
	second := inPin(f.node("C", graph.NodeCall), "In", pintype.KindInt)
	require.NoError(t, graph.Connect(src, first))

	// Without permission the second connection is rejected and nothing moves.
	res := f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(src), Target: refFor(second)},
	}, schema.BatchDefaults{})
	assert.Equal(t, schema.ErrCodeWouldBreakExisting, res.Results[0].Code)
	assert.True(t, src.LinkedTo(first))
	assert.False(t, src.LinkedTo(second))

	// With permission the first link is broken and reported.
	yes := true
	res = f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(src), Target: refFor(second), BreakExisting: &yes},
	}, schema.BatchDefaults{})
	require.True(t, res.Success)
	item := res.Results[0]
	require.Len(t, item.BrokenLinks, 1)
	assert.Equal(t, "In", item.BrokenLinks[0].TargetPin)
	require.Len(t, item.CreatedLinks, 1)
	assert.False(t, src.LinkedTo(first))
	assert.True(t, src.LinkedTo(second))
}

func TestConnectFanOutExemption(t *testing.T) {
	f := newFixture(t)
	reroute := f.node("Reroute", graph.NodeReroute)
	src := outPin(reroute, "Out", pintype.KindInt)
	first := inPin(f.node("B", graph.NodeCall), "In", pintype.KindInt)
	second := inPin(f.node("C", graph.NodeCall), "In", pintype.KindInt)
	third := inPin(f.node("D", graph.NodeCall), "In", pintype.KindInt)
	require.NoError(t, graph.Connect(src, first))

	// Two more targets connect without permission and without breaking.
	res := f.o.ConnectBatch(context.Background(), []schema.ConnectionRequest{
		{Source: refFor(src), Target: refFor(second)},
		{Source: refFor(src), Target: refFor(third)},
	}, schema.BatchDefaults{})

	require.True(t, res.Success)
	assert.Empty(t, res.Results[0].BrokenLinks)
	assert.Empty(t, res.Results[1].BrokenLinks)
	assert.Len(t, src.Links(), 3)
}

func TestConnectModifiedGraphsDeduplicated(t *testing.T) {
	f := newFixture(t)
	a := f.node("A", graph.NodeCall)
	b := f.node("B", graph.NodeCall)

	reqs := []schema.ConnectionRequest{
		{Source: refFor(outPin(a, "O1", pintype.KindInt)), Target: refFor(inPin(b, "I1", pintype.KindInt))},
		{Source: refFor(outPin(a, "O2", pintype.KindInt)), Target: refFor(inPin(b, "I2", pintype.KindInt))},
	}
	res := f.o.ConnectBatch(context.Background(), reqs, schema.BatchDefaults{})
	require.True(t, res.Success)
	assert.Equal(t, []string{f.g.ID}, res.ModifiedGraphs, "one entry per touched graph")
}

func TestConnectModifiedGraphsSorted(t *testing.T) {
	f := newFixture(t)
	var reqs []schema.ConnectionRequest
	var want []string
	for _, name := range []string{"First", "Second", "Third"} {
		g := f.doc.AddGraph(graph.NewGraph(name, graph.GraphFunction))
		a := g.AddNode(graph.NewNode("A", graph.NodeCall))
		b := g.AddNode(graph.NewNode("B", graph.NodeCall))
		reqs = append(reqs, schema.ConnectionRequest{
			Source: refFor(outPin(a, "Out", pintype.KindInt)),
			Target: refFor(inPin(b, "In", pintype.KindInt)),
		})
		want = append(want, g.ID)
	}
	sort.Strings(want)

	res := f.o.ConnectBatch(context.Background(), reqs, schema.BatchDefaults{})
	require.True(t, res.Success)
	assert.Equal(t, want, res.ModifiedGraphs, "ids come back in sorted order")
}

func TestDisconnectBreakAll(t *testing.T) {
	f := newFixture(t)
	src := outPin(f.node("Reroute", graph.NodeReroute), "Out", pintype.KindInt)
	for _, title := range []string{"B", "C"} {
		in := inPin(f.node(title, graph.NodeCall), "In", pintype.KindInt)
		require.NoError(t, graph.Connect(src, in))
	}

	res := f.o.DisconnectBatch(context.Background(), []schema.DisconnectOperation{
		{Pin: refFor(src), BreakAll: true},
	})

	require.True(t, res.Success)
	assert.Len(t, res.Results[0].BrokenLinks, 2)
	assert.False(t, src.HasLinks())
	assert.Equal(t, []string{f.g.ID}, res.ModifiedGraphs)
}

func TestDisconnectSpecificTarget(t *testing.T) {
	f := newFixture(t)
	src := outPin(f.node("Reroute", graph.NodeReroute), "Out", pintype.KindInt)
	keep := inPin(f.node("B", graph.NodeCall), "In", pintype.KindInt)
	drop := inPin(f.node("C", graph.NodeCall), "In", pintype.KindInt)
	require.NoError(t, graph.Connect(src, keep))
	require.NoError(t, graph.Connect(src, drop))

	target := refFor(drop)
	res := f.o.DisconnectBatch(context.Background(), []schema.DisconnectOperation{
		{Pin: refFor(src), Target: &target},
	})

	require.True(t, res.Success)
	assert.Len(t, res.Results[0].BrokenLinks, 1)
	assert.True(t, src.LinkedTo(keep))
	assert.False(t, src.LinkedTo(drop))
}

func TestDisconnectUnlinkedPinIsNoop(t *testing.T) {
	f := newFixture(t)
	src := outPin(f.node("A", graph.NodeCall), "Out", pintype.KindInt)

	res := f.o.DisconnectBatch(context.Background(), []schema.DisconnectOperation{
		{Pin: refFor(src), BreakAll: true},
	})

	require.True(t, res.Success)
	assert.Empty(t, res.Results[0].BrokenLinks)
	assert.Empty(t, res.ModifiedGraphs)
}

func TestDisconnectPartialFailure(t *testing.T) {
	f := newFixture(t)
	src := outPin(f.node("A", graph.NodeCall), "Out", pintype.KindInt)
	in := inPin(f.node("B", graph.NodeCall), "In", pintype.KindInt)
	require.NoError(t, graph.Connect(src, in))

	res := f.o.DisconnectBatch(context.Background(), []schema.DisconnectOperation{
		{Pin: schema.PinRef{Node: "Missing", Pin: "Out"}},
		{Pin: refFor(src), BreakAll: true},
	})

	assert.False(t, res.Success)
	assert.False(t, res.Results[0].Success)
	assert.True(t, res.Results[1].Success)
	assert.False(t, src.HasLinks())
}
