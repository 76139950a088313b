// Package connect executes batched pin connect/disconnect requests under
// the owning graph's compatibility policy. Batches have partial-failure
// semantics: one failing request never aborts the others, and earlier
// successes stay committed.
package connect

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/logging"
	"github.com/kevinpbuckley/blueprintd/internal/resolve"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// Orchestrator runs connection batches against one document.
type Orchestrator struct {
	doc      *graph.Document
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// New creates an orchestrator for doc.
func New(doc *graph.Document, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{doc: doc, resolver: resolve.New(doc), logger: logger}
}

// ConnectBatch resolves and executes each request independently. The
// aggregate Success is true iff zero items failed; every graph touched by a
// successful item appears in ModifiedGraphs exactly once.
func (o *Orchestrator) ConnectBatch(ctx context.Context, reqs []schema.ConnectionRequest, defaults schema.BatchDefaults) schema.ConnectBatchResult {
	result := schema.ConnectBatchResult{Attempted: len(reqs)}
	modified := make(map[string]*graph.Graph)

	for i, req := range reqs {
		item := o.connectOne(i, req, defaults, modified)
		if item.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, item)
	}

	result.Success = result.Failed == 0
	result.ModifiedGraphs = markModified(o.doc, modified)

	logging.LogWith(ctx, o.logger).Info("connect batch finished",
		slog.Int("attempted", result.Attempted),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Int("modified_graphs", len(result.ModifiedGraphs)),
	)
	return result
}

func (o *Orchestrator) connectOne(index int, req schema.ConnectionRequest, defaults schema.BatchDefaults, modified map[string]*graph.Graph) schema.ConnectionResult {
	fail := func(code, message string) schema.ConnectionResult {
		return schema.ConnectionResult{Index: index, Code: code, Message: message}
	}

	if req.Source.Empty() {
		return fail(schema.ErrCodeParamMissing, "source reference is required")
	}
	if req.Target.Empty() {
		return fail(schema.ErrCodeParamMissing, "target reference is required")
	}

	src, err := o.resolver.Pin(req.Source, graph.Output, nil)
	if err != nil {
		return fail(classifyLookup(err, schema.ErrCodeSourcePinNotFound), err.Error())
	}
	tgt, err := o.resolver.Pin(req.Target, graph.Input, nil)
	if err != nil {
		return fail(classifyLookup(err, schema.ErrCodeTargetPinNotFound), err.Error())
	}

	if src == tgt {
		return fail(schema.ErrCodeIdenticalPins, "source and target are the same pin")
	}
	g := src.Node().Graph()
	if g != tgt.Node().Graph() {
		return fail(schema.ErrCodeDifferentGraphs, "pins belong to different graphs")
	}

	breakSource, breakTarget := false, false
	switch response := g.Schema().CanConnect(src, tgt); response {
	case graph.Disallow:
		return fail(schema.ErrCodeConnectionBlocked,
			"schema disallows connecting "+src.Label()+" to "+tgt.Label())
	case graph.AlreadyLinked:
		// Idempotent success, no mutation.
		return schema.ConnectionResult{Index: index, Success: true, AlreadyConnected: true}
	case graph.AllowWithConversionNode:
		if !flagOr(req.AllowConversionNode, defaults.AllowConversionNode) {
			return fail(schema.ErrCodeConversionRequired,
				"connection needs a conversion node; set allow_conversion_node to approve")
		}
	case graph.AllowWithPromotion:
		if !flagOr(req.AllowPromotion, defaults.AllowPromotion) {
			return fail(schema.ErrCodeConversionRequired,
				"connection needs a type promotion; set allow_promotion to approve")
		}
	case graph.RequiresBreakSource:
		breakSource = true
	case graph.RequiresBreakTarget:
		breakTarget = true
	case graph.RequiresBreakBoth:
		breakSource, breakTarget = true, true
	}

	// A fan-out source pin is exempt from the single-link rule: no break
	// happens on that side and no permission is needed for it.
	if breakSource && src.Node().FanOut() {
		breakSource = false
	}
	if (breakSource || breakTarget) && !flagOr(req.BreakExisting, defaults.BreakExisting) {
		return fail(schema.ErrCodeWouldBreakExisting,
			"connection would break existing links; set break_existing_links to approve")
	}

	tx := o.doc.Begin("Connect Pins")
	defer tx.Cancel()

	// Capture pre-state for diffing before any destructive step.
	pre := linkKeys(src, tgt)

	// Breaks are committed side effects once executed; a later connection
	// failure does not restore them.
	var broken []schema.Link
	if breakSource {
		broken = append(broken, graph.BreakAll(src)...)
	}
	if breakTarget {
		broken = append(broken, graph.BreakAll(tgt)...)
	}

	if err := graph.Connect(src, tgt); err != nil {
		return schema.ConnectionResult{
			Index:       index,
			Code:        schema.ErrCodeConnectionFailed,
			Message:     err.Error(),
			BrokenLinks: broken,
		}
	}

	tx.Touch(g)
	tx.Commit()
	modified[g.ID] = g

	return schema.ConnectionResult{
		Index:        index,
		Success:      true,
		CreatedLinks: diffLinks(pre, src, tgt),
		BrokenLinks:  broken,
	}
}

// DisconnectBatch mirrors ConnectBatch: each operation either breaks every
// link on the referenced pin or only the link to a specified target pin.
func (o *Orchestrator) DisconnectBatch(ctx context.Context, ops []schema.DisconnectOperation) schema.DisconnectBatchResult {
	result := schema.DisconnectBatchResult{}
	modified := make(map[string]*graph.Graph)
	failed := 0

	for i, op := range ops {
		item := o.disconnectOne(i, op, modified)
		if !item.Success {
			failed++
		}
		result.Results = append(result.Results, item)
	}

	result.Success = failed == 0
	result.ModifiedGraphs = markModified(o.doc, modified)

	logging.LogWith(ctx, o.logger).Info("disconnect batch finished",
		slog.Int("attempted", len(ops)),
		slog.Int("failed", failed),
	)
	return result
}

func (o *Orchestrator) disconnectOne(index int, op schema.DisconnectOperation, modified map[string]*graph.Graph) schema.DisconnectResult {
	fail := func(code, message string) schema.DisconnectResult {
		return schema.DisconnectResult{Index: index, Code: code, Message: message}
	}

	if op.Pin.Empty() {
		return fail(schema.ErrCodeParamMissing, "pin reference is required")
	}
	pin, err := o.resolver.Pin(op.Pin, resolve.AnyDirection, nil)
	if err != nil {
		return fail(classifyLookup(err, schema.ErrCodePinLookupFailed), err.Error())
	}

	tx := o.doc.Begin("Disconnect Pins")
	defer tx.Cancel()

	var broken []schema.Link
	if op.Target != nil && !op.Target.Empty() {
		target, err := o.resolver.Pin(*op.Target, resolve.AnyDirection, nil)
		if err != nil {
			return fail(classifyLookup(err, schema.ErrCodeTargetPinNotFound), err.Error())
		}
		if pin.LinkedTo(target) {
			broken = append(broken, graph.LinkRecord(pin, target))
			graph.Break(pin, target)
		}
	} else {
		broken = graph.BreakAll(pin)
	}

	if len(broken) > 0 {
		g := pin.Node().Graph()
		tx.Touch(g)
		tx.Commit()
		modified[g.ID] = g
	}
	return schema.DisconnectResult{Index: index, Success: true, BrokenLinks: broken}
}

// classifyLookup maps resolver errors onto the per-item contract codes:
// malformed references stay PIN_LOOKUP_FAILED or PARAM_MISSING, everything
// else becomes the endpoint-specific not-found code.
func classifyLookup(err error, notFound string) string {
	switch schema.CodeOf(err, "") {
	case schema.ErrCodeParamMissing:
		return schema.ErrCodeParamMissing
	case schema.ErrCodePinLookupFailed:
		return schema.ErrCodePinLookupFailed
	default:
		return notFound
	}
}

func flagOr(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}

// linkKeys captures the pre-existing links of both endpoints as from→to keys.
func linkKeys(pins ...*graph.Pin) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, p := range pins {
		for _, other := range p.Links() {
			keys[graph.LinkRecord(p, other).Key()] = struct{}{}
		}
	}
	return keys
}

// diffLinks reports links present now but absent from pre, deduplicated by
// from→to key.
func diffLinks(pre map[string]struct{}, pins ...*graph.Pin) []schema.Link {
	seen := make(map[string]struct{})
	var created []schema.Link
	for _, p := range pins {
		for _, other := range p.Links() {
			record := graph.LinkRecord(p, other)
			key := record.Key()
			if _, existed := pre[key]; existed {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			created = append(created, record)
		}
	}
	return created
}

// markModified flushes the batch's modified set to the document once per
// graph and returns the graph ids in sorted order so responses are stable.
func markModified(doc *graph.Document, modified map[string]*graph.Graph) []string {
	ids := make([]string, 0, len(modified))
	for id, g := range modified {
		doc.MarkModified(g)
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
