// Package policy layers host-defined connection rules over a base
// compatibility schema. Rules are CEL expressions evaluated against the two
// candidate endpoints; the first matching rule decides, and an undecided
// connection falls through to the base schema.
package policy

import (
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// Effect is what a matching rule does to the connection.
type Effect string

const (
	// EffectDeny blocks the connection regardless of type compatibility.
	EffectDeny Effect = "deny"
	// EffectAllow admits the connection, skipping the base type check but
	// not the occupancy check.
	EffectAllow Effect = "allow"
)

// Rule is one host-defined connection rule.
type Rule struct {
	Name string `json:"name"`
	// Expr is a CEL expression over `source` and `target` pin attribute
	// maps. It must evaluate to a bool; true means the rule matches.
	Expr   string `json:"expr"`
	Effect Effect `json:"effect"`
}

// RuleSchema wraps a base graph.Schema with CEL rules.
// Thread-safe: compiled programs are cached and reused across goroutines.
type RuleSchema struct {
	base  graph.Schema
	rules []Rule
	env   *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewRuleSchema builds a rule overlay on top of base. The CEL environment
// exposes two top-level variables:
//   - source: map(string, dyn), attributes of the output endpoint
//   - target: map(string, dyn), attributes of the input endpoint
func NewRuleSchema(base graph.Schema, rules []Rule) (*RuleSchema, error) {
	mapType := cel.MapType(cel.StringType, cel.DynType)
	env, err := cel.NewEnv(
		cel.Variable("source", mapType),
		cel.Variable("target", mapType),
	)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "create CEL environment").WithCause(err)
	}

	s := &RuleSchema{
		base:  base,
		rules: rules,
		env:   env,
		cache: make(map[string]cel.Program),
	}
	// Compile eagerly so bad rules fail at construction, not mid-batch.
	for _, r := range rules {
		if _, err := s.getOrCompile(r.Expr); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CanConnect consults the rules in order; the first matching rule decides.
// EffectDeny maps to Disallow. EffectAllow overrides the type verdict but
// still reports occupancy, so approval semantics for breaking links hold.
func (s *RuleSchema) CanConnect(out, in *graph.Pin) graph.ConnectResponse {
	verdict := s.base.CanConnect(out, in)
	if verdict == graph.AlreadyLinked {
		return verdict
	}

	activation := map[string]any{
		"source": pinAttributes(out),
		"target": pinAttributes(in),
	}
	for _, r := range s.rules {
		matched, err := s.evaluate(r.Expr, activation)
		if err != nil || !matched {
			continue
		}
		switch r.Effect {
		case EffectDeny:
			return graph.Disallow
		case EffectAllow:
			return allowKeepingOccupancy(verdict, out, in)
		}
	}
	return verdict
}

func (s *RuleSchema) IsDefaultManaged(p *graph.Pin) bool { return s.base.IsDefaultManaged(p) }

func (s *RuleSchema) AutogeneratedDefault(p *graph.Pin) string {
	return s.base.AutogeneratedDefault(p)
}

func (s *RuleSchema) SubPinSpecs(d *pintype.Descriptor) ([]graph.SubPinSpec, bool) {
	return s.base.SubPinSpecs(d)
}

// allowKeepingOccupancy upgrades a type-level refusal to Allow while
// preserving the break-requirement verdicts computed from link occupancy.
func allowKeepingOccupancy(verdict graph.ConnectResponse, out, in *graph.Pin) graph.ConnectResponse {
	switch verdict {
	case graph.RequiresBreakSource, graph.RequiresBreakTarget, graph.RequiresBreakBoth:
		return verdict
	}
	srcBusy := out.HasLinks() && !out.Node().FanOut()
	tgtBusy := in.HasLinks()
	switch {
	case srcBusy && tgtBusy:
		return graph.RequiresBreakBoth
	case srcBusy:
		return graph.RequiresBreakSource
	case tgtBusy:
		return graph.RequiresBreakTarget
	}
	return graph.Allow
}

func (s *RuleSchema) evaluate(expr string, activation map[string]any) (bool, error) {
	prg, err := s.getOrCompile(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(activation)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"rule evaluation failed for %q: %s", expr, err.Error()).WithCause(err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"rule %q did not evaluate to a bool", expr)
	}
	return matched, nil
}

// getOrCompile returns a cached compiled program or compiles and caches a
// new one.
func (s *RuleSchema) getOrCompile(expr string) (cel.Program, error) {
	s.mu.RLock()
	if prg, ok := s.cache[expr]; ok {
		s.mu.RUnlock()
		return prg, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if prg, ok := s.cache[expr]; ok {
		return prg, nil
	}

	ast, issues := s.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"rule compile error in %q: %s", expr, issues.Err().Error()).WithCause(issues.Err())
	}
	prg, err := s.env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"rule program error for %q: %s", expr, err.Error()).WithCause(err)
	}
	s.cache[expr] = prg
	return prg, nil
}

// pinAttributes flattens a pin into the attribute map rules see.
func pinAttributes(p *graph.Pin) map[string]any {
	attrs := map[string]any{
		"name":      p.Name,
		"direction": string(p.Direction),
		"type":      p.Type.String(),
		"kind":      "",
		"container": "",
		"linked":    p.HasLinks(),
	}
	// The codec admits type-less pins; rules see empty strings for them.
	if p.Type != nil {
		attrs["kind"] = string(p.Type.Kind)
		attrs["container"] = string(p.Type.Container)
	}
	if n := p.Node(); n != nil {
		attrs["node_title"] = n.Title
		attrs["node_kind"] = string(n.Kind)
	}
	return attrs
}
