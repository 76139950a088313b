package policy

import (
	"testing"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pinPair(t *testing.T, outKind, inKind pintype.Kind) (*graph.Pin, *graph.Pin) {
	t.Helper()
	g := graph.NewGraph("EventGraph", graph.GraphEvent)
	src := g.AddNode(graph.NewNode("Source", graph.NodeCall))
	dst := g.AddNode(graph.NewNode("Target", graph.NodeCall))
	out := src.AddPin(graph.NewPin("Out", graph.Output, pintype.Scalar(outKind)))
	in := dst.AddPin(graph.NewPin("In", graph.Input, pintype.Scalar(inKind)))
	return out, in
}

func TestNoRulesFallThrough(t *testing.T) {
	s, err := NewRuleSchema(graph.DefaultSchema{}, nil)
	require.NoError(t, err)

	out, in := pinPair(t, pintype.KindInt, pintype.KindInt)
	assert.Equal(t, graph.Allow, s.CanConnect(out, in))

	out, in = pinPair(t, pintype.KindVector, pintype.KindBool)
	assert.Equal(t, graph.Disallow, s.CanConnect(out, in))
}

func TestDenyRuleOverridesCompatibleTypes(t *testing.T) {
	s, err := NewRuleSchema(graph.DefaultSchema{}, []Rule{
		{Name: "no-exec-into-locked", Expr: `target.node_title == "Target"`, Effect: EffectDeny},
	})
	require.NoError(t, err)

	out, in := pinPair(t, pintype.KindInt, pintype.KindInt)
	assert.Equal(t, graph.Disallow, s.CanConnect(out, in))
}

func TestAllowRuleOverridesTypeVerdict(t *testing.T) {
	s, err := NewRuleSchema(graph.DefaultSchema{}, []Rule{
		{Name: "vectors-anywhere", Expr: `source.kind == "vector"`, Effect: EffectAllow},
	})
	require.NoError(t, err)

	out, in := pinPair(t, pintype.KindVector, pintype.KindBool)
	assert.Equal(t, graph.Allow, s.CanConnect(out, in))
}

func TestAllowRuleKeepsOccupancy(t *testing.T) {
	s, err := NewRuleSchema(graph.DefaultSchema{}, []Rule{
		{Name: "vectors-anywhere", Expr: `source.kind == "vector"`, Effect: EffectAllow},
	})
	require.NoError(t, err)

	out, in := pinPair(t, pintype.KindVector, pintype.KindBool)
	other := out.Node().AddPin(graph.NewPin("Other", graph.Output, pintype.Scalar(pintype.KindVector)))
	require.NoError(t, graph.Connect(other, in))

	// Target occupied: the rule admits the pair but breaking still needs
	// approval.
	assert.Equal(t, graph.RequiresBreakTarget, s.CanConnect(out, in))
}

func TestFirstMatchingRuleWins(t *testing.T) {
	s, err := NewRuleSchema(graph.DefaultSchema{}, []Rule{
		{Name: "deny-first", Expr: `source.name == "Out"`, Effect: EffectDeny},
		{Name: "allow-later", Expr: `true`, Effect: EffectAllow},
	})
	require.NoError(t, err)

	out, in := pinPair(t, pintype.KindInt, pintype.KindInt)
	assert.Equal(t, graph.Disallow, s.CanConnect(out, in))
}

func TestAlreadyLinkedBypassesRules(t *testing.T) {
	s, err := NewRuleSchema(graph.DefaultSchema{}, []Rule{
		{Name: "deny-all", Expr: `true`, Effect: EffectDeny},
	})
	require.NoError(t, err)

	out, in := pinPair(t, pintype.KindInt, pintype.KindInt)
	require.NoError(t, graph.Connect(out, in))
	assert.Equal(t, graph.AlreadyLinked, s.CanConnect(out, in))
}

func TestTypelessPinEvaluatesRules(t *testing.T) {
	s, err := NewRuleSchema(graph.DefaultSchema{}, []Rule{
		{Name: "typeless-stays-blocked", Expr: `source.kind == ""`, Effect: EffectDeny},
	})
	require.NoError(t, err)

	g := graph.NewGraph("EventGraph", graph.GraphEvent)
	src := g.AddNode(graph.NewNode("Source", graph.NodeCall))
	dst := g.AddNode(graph.NewNode("Target", graph.NodeCall))
	out := src.AddPin(graph.NewPin("Out", graph.Output, nil))
	in := dst.AddPin(graph.NewPin("In", graph.Input, pintype.Scalar(pintype.KindInt)))

	assert.Equal(t, graph.Disallow, s.CanConnect(out, in))
	assert.Equal(t, graph.Disallow, s.CanConnect(in, out))
}

func TestBadRuleFailsConstruction(t *testing.T) {
	_, err := NewRuleSchema(graph.DefaultSchema{}, []Rule{
		{Name: "broken", Expr: `source.kind ==`, Effect: EffectDeny},
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err, ""))
}

func TestNonBoolRuleIsSkipped(t *testing.T) {
	s, err := NewRuleSchema(graph.DefaultSchema{}, []Rule{
		{Name: "not-a-bool", Expr: `source.name`, Effect: EffectDeny},
	})
	require.NoError(t, err)

	out, in := pinPair(t, pintype.KindInt, pintype.KindInt)
	assert.Equal(t, graph.Allow, s.CanConnect(out, in), "non-bool rules never match")
}

func TestDelegatedSchemaMethods(t *testing.T) {
	s, err := NewRuleSchema(graph.DefaultSchema{}, nil)
	require.NoError(t, err)

	_, in := pinPair(t, pintype.KindInt, pintype.KindBool)
	assert.True(t, s.IsDefaultManaged(in))
	assert.Equal(t, "false", s.AutogeneratedDefault(in))

	specs, ok := s.SubPinSpecs(pintype.Scalar(pintype.KindVector))
	require.True(t, ok)
	assert.Len(t, specs, 3)
}
