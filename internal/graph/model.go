// Package graph holds the in-memory document model: documents own graphs,
// graphs own nodes, nodes own typed pins, and links are stored symmetrically
// on both endpoint pins while staying directional (output → input) in
// meaning.
package graph

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// GraphKind tags a graph's role within a document.
type GraphKind string

const (
	GraphEvent     GraphKind = "event"
	GraphFunction  GraphKind = "function"
	GraphMacro     GraphKind = "macro"
	GraphGenerated GraphKind = "generated"
)

// NodeKind is a closed set of node roles.
type NodeKind string

const (
	NodeEvent    NodeKind = "event"
	NodeCall     NodeKind = "call"
	NodeBranch   NodeKind = "branch"
	NodeVariable NodeKind = "variable"
	NodeReroute  NodeKind = "reroute"
	NodeEntry    NodeKind = "entry"
	NodeResult   NodeKind = "result"
	NodeMacro    NodeKind = "macro"
)

// Direction of a pin.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Document owns one or more graphs and tracks which of them have been
// modified since the last save. It assumes exclusive single-writer access
// for the duration of an operation; callers must serialize concurrent edits.
type Document struct {
	ID   string
	Name string

	graphs  []*Graph
	dirty   map[string]struct{}
	journal []JournalEntry
	scopes  map[string]Scope

	// Compilations counts Compile calls; the real compilation pipeline is
	// owned by the host application.
	Compilations int
}

// JournalEntry records one committed mutation for the edit-event log.
type JournalEntry struct {
	Operation string    `json:"operation"`
	GraphIDs  []string  `json:"graph_ids,omitempty"`
	At        time.Time `json:"at"`
}

// Scope is a compiled function scope able to rewrite references when a local
// variable is renamed or retyped. Provided by the host once a function has
// been compiled; absent scopes fall back to direct table mutation.
type Scope interface {
	RenameLocal(id uuid.UUID, newName string) error
	ChangeLocalType(id uuid.UUID, newType *pintype.Descriptor) error
}

// NewDocument creates an empty document. An empty id gets a fresh UUID.
func NewDocument(id, name string) *Document {
	if id == "" {
		id = uuid.New().String()
	}
	return &Document{
		ID:     id,
		Name:   name,
		dirty:  make(map[string]struct{}),
		scopes: make(map[string]Scope),
	}
}

// AddGraph attaches g to the document and returns it.
func (d *Document) AddGraph(g *Graph) *Graph {
	g.doc = d
	d.graphs = append(d.graphs, g)
	return g
}

// RemoveGraph detaches the graph with the given id.
func (d *Document) RemoveGraph(id string) bool {
	for i, g := range d.graphs {
		if g.ID == id {
			d.graphs = append(d.graphs[:i], d.graphs[i+1:]...)
			g.doc = nil
			delete(d.dirty, id)
			delete(d.scopes, id)
			return true
		}
	}
	return false
}

// Graphs returns all graphs in insertion order.
func (d *Document) Graphs() []*Graph {
	return d.graphs
}

// GraphByID finds a graph by its stable identifier.
func (d *Document) GraphByID(id string) *Graph {
	for _, g := range d.graphs {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// GraphByName finds a graph by name, case-insensitively.
func (d *Document) GraphByName(name string) *Graph {
	for _, g := range d.graphs {
		if strings.EqualFold(g.Name, name) {
			return g
		}
	}
	return nil
}

// SearchOrder returns graphs in resolution order: the preferred graph first,
// then event graphs, function graphs, macro graphs, and generated graphs.
func (d *Document) SearchOrder(preferred *Graph) []*Graph {
	ordered := make([]*Graph, 0, len(d.graphs))
	if preferred != nil {
		ordered = append(ordered, preferred)
	}
	for _, kind := range []GraphKind{GraphEvent, GraphFunction, GraphMacro, GraphGenerated} {
		for _, g := range d.graphs {
			if g == preferred || g.Kind != kind {
				continue
			}
			ordered = append(ordered, g)
		}
	}
	return ordered
}

// MarkModified records g as dirty. Idempotent per graph.
func (d *Document) MarkModified(g *Graph) {
	if g == nil {
		return
	}
	d.dirty[g.ID] = struct{}{}
}

// Dirty reports whether any graph has unsaved modifications.
func (d *Document) Dirty() bool {
	return len(d.dirty) > 0
}

// DirtyGraphs returns the ids of modified graphs.
func (d *Document) DirtyGraphs() []string {
	ids := make([]string, 0, len(d.dirty))
	for id := range d.dirty {
		ids = append(ids, id)
	}
	return ids
}

// ClearDirty resets the modified set, typically after a save.
func (d *Document) ClearDirty() {
	d.dirty = make(map[string]struct{})
}

// Compile stands in for the host's compilation pipeline.
func (d *Document) Compile() {
	d.Compilations++
}

// DrainJournal returns committed journal entries and clears them.
func (d *Document) DrainJournal() []JournalEntry {
	entries := d.journal
	d.journal = nil
	return entries
}

// SetCompiledScope registers a compiled scope for a function graph.
func (d *Document) SetCompiledScope(g *Graph, s Scope) {
	d.scopes[g.ID] = s
}

// CompiledScope returns the compiled scope for g, if any.
func (d *Document) CompiledScope(g *Graph) (Scope, bool) {
	s, ok := d.scopes[g.ID]
	return s, ok
}

// Graph is an ordered set of nodes with its own compatibility policy.
type Graph struct {
	ID   string
	Name string
	Kind GraphKind

	nodes  []*Node
	policy Schema
	doc    *Document
}

// NewGraph creates a graph with a fresh id.
func NewGraph(name string, kind GraphKind) *Graph {
	return &Graph{ID: uuid.New().String(), Name: name, Kind: kind}
}

// Document returns the owning document, or nil if detached.
func (g *Graph) Document() *Document { return g.doc }

// Nodes returns the graph's nodes in order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Schema returns the graph's compatibility policy, defaulting to the
// built-in one.
func (g *Graph) Schema() Schema {
	if g.policy != nil {
		return g.policy
	}
	return defaultSchema
}

// SetSchema overrides the graph's compatibility policy.
func (g *Graph) SetSchema(s Schema) { g.policy = s }

// AddNode attaches n and returns it.
func (g *Graph) AddNode(n *Node) *Node {
	n.graph = g
	g.nodes = append(g.nodes, n)
	return n
}

// RemoveNode detaches n, breaking all of its links first.
func (g *Graph) RemoveNode(n *Node) bool {
	for i, candidate := range g.nodes {
		if candidate != n {
			continue
		}
		for _, p := range n.AllPins() {
			BreakAll(p)
		}
		g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
		n.graph = nil
		return true
	}
	return false
}

// NodeByID finds a node by its GUID.
func (g *Graph) NodeByID(id uuid.UUID) *Node {
	for _, n := range g.nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// FirstNodeOfKind returns the first node of the given kind, or nil.
func (g *Graph) FirstNodeOfKind(kind NodeKind) *Node {
	for _, n := range g.nodes {
		if n.Kind == kind {
			return n
		}
	}
	return nil
}

// NodesOfKind returns every node of the given kind.
func (g *Graph) NodesOfKind(kind NodeKind) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Node is a graph vertex with a stable GUID and an ordered set of pins.
type Node struct {
	ID        uuid.UUID
	Title     string
	ShortName string
	RuntimeID int
	Kind      NodeKind

	Pins   []*Pin
	Locals []*LocalVariable

	graph *Graph
}

// NewNode creates a node with a fresh GUID.
func NewNode(title string, kind NodeKind) *Node {
	return &Node{ID: uuid.New(), Title: title, Kind: kind}
}

// Graph returns the owning graph, or nil if detached.
func (n *Node) Graph() *Graph { return n.graph }

// FanOut reports whether the node's sole output pin is exempt from the
// single-link constraint. Keyed off the reroute kind; see DESIGN.md for why
// this is not a general capability flag.
func (n *Node) FanOut() bool {
	return n.Kind == NodeReroute
}

// AddPin attaches p and returns it. An empty pin id gets a fresh UUID.
func (n *Node) AddPin(p *Pin) *Pin {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.node = n
	n.Pins = append(n.Pins, p)
	return p
}

// RemovePin detaches p (and its sub-pins), breaking links first.
func (n *Node) RemovePin(p *Pin) bool {
	for i, candidate := range n.Pins {
		if candidate != p {
			continue
		}
		BreakAll(p)
		for _, sub := range p.SubPins {
			BreakAll(sub)
		}
		n.Pins = append(n.Pins[:i], n.Pins[i+1:]...)
		p.node = nil
		return true
	}
	return false
}

// AllPins returns top-level pins and their sub-pins.
func (n *Node) AllPins() []*Pin {
	out := make([]*Pin, 0, len(n.Pins))
	for _, p := range n.Pins {
		out = append(out, p)
		out = append(out, p.SubPins...)
	}
	return out
}

// Pin is a typed terminal on a node. Pin ids are unique within their node.
type Pin struct {
	ID          string
	Name        string
	DisplayName string
	Direction   Direction
	Type        *pintype.Descriptor
	Default     string

	// ReturnParam marks the single return-value pin of a function.
	ReturnParam bool

	Parent  *Pin
	SubPins []*Pin

	links []*Pin
	node  *Node
}

// NewPin creates a detached pin.
func NewPin(name string, dir Direction, t *pintype.Descriptor) *Pin {
	return &Pin{Name: name, Direction: dir, Type: t}
}

// Node returns the owning node, or nil if detached.
func (p *Pin) Node() *Node { return p.node }

// Links returns a copy of the pin's link endpoints.
func (p *Pin) Links() []*Pin {
	out := make([]*Pin, len(p.links))
	copy(out, p.links)
	return out
}

// HasLinks reports whether the pin has at least one link.
func (p *Pin) HasLinks() bool { return len(p.links) > 0 }

// LinkedTo reports whether p and other are already linked.
func (p *Pin) LinkedTo(other *Pin) bool {
	for _, l := range p.links {
		if l == other {
			return true
		}
	}
	return false
}

// Label returns the display name if set, else the pin name.
func (p *Pin) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// AddSubPin attaches sub as a component of p on the same node. An empty
// sub-pin id derives from the parent id and the sub-pin name.
func (p *Pin) AddSubPin(sub *Pin) *Pin {
	if sub.ID == "" {
		sub.ID = p.ID + "." + sub.Name
	}
	sub.Parent = p
	sub.node = p.node
	p.SubPins = append(p.SubPins, sub)
	return sub
}

// LocalVariable is named typed storage scoped to one function-like subgraph,
// stored in the Entry node's local-variable table.
type LocalVariable struct {
	ID        uuid.UUID           `json:"id"`
	Name      string              `json:"name"`
	Type      *pintype.Descriptor `json:"type"`
	Default   string              `json:"default,omitempty"`
	Const     bool                `json:"const,omitempty"`
	Reference bool                `json:"reference,omitempty"`
	Editable  bool                `json:"editable,omitempty"`
}

// Connect links an output pin to an input pin, storing the link on both
// endpoints. The (output, input) pairing is an invariant; anything else is
// rejected.
func Connect(out, in *Pin) error {
	if out == nil || in == nil {
		return schema.NewError(schema.ErrCodeConnectionFailed, "nil pin endpoint")
	}
	if out.Direction != Output || in.Direction != Input {
		return schema.NewErrorf(schema.ErrCodeConnectionFailed,
			"links must run output→input, got %s→%s", out.Direction, in.Direction)
	}
	if out.node == nil || in.node == nil {
		return schema.NewError(schema.ErrCodeConnectionFailed, "detached pin endpoint")
	}
	if out.LinkedTo(in) {
		return nil
	}
	out.links = append(out.links, in)
	in.links = append(in.links, out)
	return nil
}

// Break removes the link between a and b from both endpoints, reporting
// whether a link existed.
func Break(a, b *Pin) bool {
	existed := removeLink(a, b)
	removeLink(b, a)
	return existed
}

// BreakAll removes every link on p, returning the broken links in report
// form.
func BreakAll(p *Pin) []schema.Link {
	var broken []schema.Link
	for _, other := range p.Links() {
		broken = append(broken, LinkRecord(p, other))
		Break(p, other)
	}
	return broken
}

// LinkRecord builds a directional source→target report for the link between
// a and b, regardless of which endpoint is passed first.
func LinkRecord(a, b *Pin) schema.Link {
	out, in := a, b
	if a.Direction == Input {
		out, in = b, a
	}
	return schema.Link{
		SourceNode: out.node.ID.String(),
		SourcePin:  out.Name,
		TargetNode: in.node.ID.String(),
		TargetPin:  in.Name,
	}
}

func removeLink(from, to *Pin) bool {
	for i, l := range from.links {
		if l == to {
			from.links = append(from.links[:i], from.links[i+1:]...)
			return true
		}
	}
	return false
}
