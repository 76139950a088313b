// Package resolve turns loose string references into concrete nodes and
// pins. Callers rarely hold exact GUIDs; they paste brace-wrapped ids,
// display titles, runtime ids, or "<node>:<pin>" composites, and the
// resolver tries each interpretation in a fixed order.
package resolve

import (
	"strconv"
	"strings"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// AnyDirection matches pins of either direction.
const AnyDirection graph.Direction = ""

// subPinSeparator joins a parent pin name to a split component suffix.
const subPinSeparator = "_"

// Resolver resolves identifiers against one document.
type Resolver struct {
	doc *graph.Document
}

// New creates a resolver for doc.
func New(doc *graph.Document) *Resolver {
	return &Resolver{doc: doc}
}

// nodeStrategy is one way of matching an identifier to a node. Strategies
// run in order; each is exhausted across every candidate graph before the
// next is tried, so ties across strategies are impossible by construction.
type nodeStrategy func(n *graph.Node, identifier string) bool

var nodeStrategies = []nodeStrategy{
	// 1. Exact stable identifier.
	func(n *graph.Node, id string) bool {
		return n.ID.String() == id
	},
	// 2. Identifier with braces and hyphens stripped from both sides.
	func(n *graph.Node, id string) bool {
		return normalizeID(n.ID.String()) == normalizeID(id)
	},
	// 3. Alternate textual encoding: 32 uppercase hex digits.
	func(n *graph.Node, id string) bool {
		return alternateEncoding(n.ID.String()) == id
	},
	// 4. Internal short name.
	func(n *graph.Node, id string) bool {
		return n.ShortName != "" && strings.EqualFold(n.ShortName, id)
	},
	// 5. Numeric runtime-assigned id, compared as a string.
	func(n *graph.Node, id string) bool {
		return strconv.Itoa(n.RuntimeID) == id
	},
	// 6. Display title.
	func(n *graph.Node, id string) bool {
		return n.Title != "" && strings.EqualFold(n.Title, id)
	},
}

// Node resolves a node identifier across the document's graphs, searching
// the preferred graph first, then event, function, macro, and generated
// graphs. First match wins.
func (r *Resolver) Node(identifier string, preferred *graph.Graph) (*graph.Node, *graph.Graph, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil, schema.NewError(schema.ErrCodeParamMissing, "node identifier is empty")
	}

	candidates := r.doc.SearchOrder(preferred)
	for _, match := range nodeStrategies {
		for _, g := range candidates {
			for _, n := range g.Nodes() {
				if match(n, identifier) {
					return n, g, nil
				}
			}
		}
	}
	return nil, nil, schema.NewErrorf(schema.ErrCodeNodeNotFound,
		"no node matches identifier").WithIdentifier(identifier)
}

// Pin resolves a flexible pin reference: an opaque persistent pin id, a
// composite "<node-id>:<pin-name>" string, or a (node identifier, pin name)
// pair. desired restricts name matches to one direction; AnyDirection
// matches both.
func (r *Resolver) Pin(ref schema.PinRef, desired graph.Direction, preferred *graph.Graph) (*graph.Pin, error) {
	switch {
	case ref.PinID != "":
		return r.pinByID(ref.PinID, preferred)
	case ref.Composite != "":
		nodeID, pinName, ok := strings.Cut(ref.Composite, ":")
		if !ok || pinName == "" {
			return nil, schema.NewError(schema.ErrCodePinLookupFailed,
				"composite reference must be \"<node-id>:<pin-name>\"").WithIdentifier(ref.Composite)
		}
		node, _, err := r.Node(nodeID, preferred)
		if err != nil {
			return nil, err
		}
		return r.PinOnNode(node, pinName, desired)
	case ref.Node != "" && ref.Pin != "":
		node, _, err := r.Node(ref.Node, preferred)
		if err != nil {
			return nil, err
		}
		return r.PinOnNode(node, ref.Pin, desired)
	default:
		return nil, schema.NewError(schema.ErrCodeParamMissing,
			"pin reference requires pin_id, ref, or node_id+pin_name")
	}
}

// pinByID searches every pin (including sub-pins) for a persistent pin id.
func (r *Resolver) pinByID(id string, preferred *graph.Graph) (*graph.Pin, error) {
	for _, g := range r.doc.SearchOrder(preferred) {
		for _, n := range g.Nodes() {
			for _, p := range n.AllPins() {
				if p.ID == id {
					return p, nil
				}
			}
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodePinNotFound,
		"no pin matches id").WithIdentifier(id)
}

// PinOnNode resolves a pin by name on a known node. Matching first
// restricts to top-level pins by exact or display-name match; failing that
// it retries over all pins (returning a sub-pin's parent); failing that it
// retries with the portion before the first separator, which handles
// split-pin component names like "Rotation_X".
func (r *Resolver) PinOnNode(n *graph.Node, name string, desired graph.Direction) (*graph.Pin, error) {
	if p := matchPinName(n, name, desired); p != nil {
		return p, nil
	}
	if prefix, _, ok := strings.Cut(name, subPinSeparator); ok && prefix != "" {
		if p := matchPinName(n, prefix, desired); p != nil {
			return p, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodePinNotFound,
		"node %q has no pin matching name", n.DisplayLabel()).WithIdentifier(name)
}

func matchPinName(n *graph.Node, name string, desired graph.Direction) *graph.Pin {
	// Top-level pins first.
	for _, p := range n.Pins {
		if directionMatches(p, desired) && nameMatches(p, name) {
			return p
		}
	}
	// Then every pin, mapping sub-pin hits back to their parent.
	for _, p := range n.AllPins() {
		if directionMatches(p, desired) && nameMatches(p, name) {
			if p.Parent != nil {
				return p.Parent
			}
			return p
		}
	}
	return nil
}

func directionMatches(p *graph.Pin, desired graph.Direction) bool {
	return desired == AnyDirection || p.Direction == desired
}

func nameMatches(p *graph.Pin, name string) bool {
	return strings.EqualFold(p.Name, name) ||
		(p.DisplayName != "" && strings.EqualFold(p.DisplayName, name))
}

func normalizeID(id string) string {
	id = strings.Map(func(r rune) rune {
		switch r {
		case '{', '}', '-':
			return -1
		}
		return r
	}, id)
	return strings.ToLower(id)
}

// alternateEncoding renders a GUID as its 32-digit uppercase hex form, the
// way some hosts print node ids in export text.
func alternateEncoding(id string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "-", ""))
}
