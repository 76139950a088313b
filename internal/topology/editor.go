// Package topology edits pin structure: splitting composite pins into
// sub-pins, recombining them, and resetting defaults to their autogenerated
// values.
package topology

import (
	"context"
	"log/slog"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/logging"
	"github.com/kevinpbuckley/blueprintd/internal/resolve"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// Editor performs topology operations against one document.
type Editor struct {
	doc      *graph.Document
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// New creates an editor for doc.
func New(doc *graph.Document, logger *slog.Logger) *Editor {
	return &Editor{doc: doc, resolver: resolve.New(doc), logger: logger}
}

// Split decomposes the named pins on a node into sub-pins. Already-split
// pins are noops; pins whose type has no decomposition fail with
// CANNOT_SPLIT.
func (e *Editor) Split(ctx context.Context, nodeRef string, pinNames []string) schema.TopologyResult {
	return e.forEachPin(ctx, "Split Pin", nodeRef, pinNames, false, e.splitOne)
}

// Recombine merges sub-pins back into their parents. Given a sub-pin it
// operates on the parent; a pin with no sub-pins is a noop.
func (e *Editor) Recombine(ctx context.Context, nodeRef string, pinNames []string) schema.TopologyResult {
	return e.forEachPin(ctx, "Recombine Pin", nodeRef, pinNames, false, e.recombineOne)
}

// ResetDefaults overwrites pin defaults with their autogenerated values.
// resetAll targets every input pin on the node; compile triggers a document
// recompile when at least one pin was applied.
func (e *Editor) ResetDefaults(ctx context.Context, nodeRef string, pinNames []string, resetAll, compile bool) schema.TopologyResult {
	result := e.forEachPin(ctx, "Reset Pin Defaults", nodeRef, pinNames, resetAll, e.resetOne)
	if compile && anyApplied(result.Statuses) {
		e.doc.Compile()
		result.Compiled = true
	}
	return result
}

type pinOp func(tx *graph.Transaction, p *graph.Pin) schema.PinStatus

// forEachPin resolves the node once, then applies op per pin with
// partial-failure semantics. The transaction commits when any pin applied a
// structural change.
func (e *Editor) forEachPin(ctx context.Context, operation, nodeRef string, pinNames []string, allInputs bool, op pinOp) schema.TopologyResult {
	result := schema.TopologyResult{}

	node, g, err := e.resolver.Node(nodeRef, nil)
	if err != nil {
		result.Statuses = append(result.Statuses, schema.PinStatus{
			Pin:     nodeRef,
			Status:  schema.StatusFailed,
			Code:    schema.CodeOf(err, schema.ErrCodeNodeNotFound),
			Message: err.Error(),
		})
		return result
	}

	tx := e.doc.Begin(operation)
	defer tx.Cancel()

	pins, statuses := e.collectPins(node, pinNames, allInputs)
	result.Statuses = statuses
	for _, p := range pins {
		status := op(tx, p)
		if status.Status == schema.StatusApplied {
			tx.Touch(g)
		}
		result.Statuses = append(result.Statuses, status)
	}
	tx.Commit()

	result.Success = true
	for _, s := range result.Statuses {
		if s.Status == schema.StatusFailed {
			result.Success = false
		}
	}

	logging.LogWith(ctx, e.logger).Info("topology operation finished",
		slog.String("op", operation),
		slog.String("node", node.DisplayLabel()),
		slog.Int("pins", len(result.Statuses)),
	)
	return result
}

// collectPins resolves explicit pin names (failures become statuses) or,
// with allInputs, gathers every top-level input pin on the node.
func (e *Editor) collectPins(node *graph.Node, pinNames []string, allInputs bool) ([]*graph.Pin, []schema.PinStatus) {
	if allInputs {
		var pins []*graph.Pin
		for _, p := range node.Pins {
			if p.Direction == graph.Input {
				pins = append(pins, p)
			}
		}
		return pins, nil
	}

	var pins []*graph.Pin
	var failures []schema.PinStatus
	for _, name := range pinNames {
		p, err := e.resolver.PinOnNode(node, name, resolve.AnyDirection)
		if err != nil {
			failures = append(failures, schema.PinStatus{
				Pin:     name,
				Status:  schema.StatusFailed,
				Code:    schema.CodeOf(err, schema.ErrCodePinNotFound),
				Message: err.Error(),
			})
			continue
		}
		pins = append(pins, p)
	}
	return pins, failures
}

func (e *Editor) splitOne(tx *graph.Transaction, p *graph.Pin) schema.PinStatus {
	if len(p.SubPins) > 0 {
		return schema.PinStatus{Pin: p.Name, Status: schema.StatusNoop}
	}

	g := p.Node().Graph()
	specs, ok := g.Schema().SubPinSpecs(p.Type)
	if !ok {
		return schema.PinStatus{
			Pin:     p.Name,
			Status:  schema.StatusFailed,
			Code:    schema.ErrCodeCannotSplit,
			Message: "pin type " + p.Type.String() + " does not decompose",
		}
	}

	for _, spec := range specs {
		sub := graph.NewPin(p.Name+"_"+spec.Suffix, p.Direction, spec.Type)
		p.AddSubPin(sub)
		sub.Default = g.Schema().AutogeneratedDefault(sub)
	}
	return schema.PinStatus{Pin: p.Name, Status: schema.StatusApplied}
}

func (e *Editor) recombineOne(tx *graph.Transaction, p *graph.Pin) schema.PinStatus {
	if p.Parent != nil {
		p = p.Parent
	}
	if len(p.SubPins) == 0 {
		return schema.PinStatus{Pin: p.Name, Status: schema.StatusNoop}
	}
	for _, sub := range p.SubPins {
		graph.BreakAll(sub)
	}
	p.SubPins = nil
	return schema.PinStatus{Pin: p.Name, Status: schema.StatusApplied}
}

func (e *Editor) resetOne(tx *graph.Transaction, p *graph.Pin) schema.PinStatus {
	g := p.Node().Graph()
	if !g.Schema().IsDefaultManaged(p) {
		return schema.PinStatus{Pin: p.Name, Status: schema.StatusIgnored}
	}
	autogen := g.Schema().AutogeneratedDefault(p)
	if p.Default == autogen {
		return schema.PinStatus{Pin: p.Name, Status: schema.StatusNoop}
	}
	p.Default = autogen
	return schema.PinStatus{Pin: p.Name, Status: schema.StatusApplied}
}

func anyApplied(statuses []schema.PinStatus) bool {
	for _, s := range statuses {
		if s.Status == schema.StatusApplied {
			return true
		}
	}
	return false
}
