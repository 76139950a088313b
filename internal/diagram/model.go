package diagram

// Model is the intermediate representation used by all renderers.
type Model struct {
	Title string
	Nodes []Node
	Edges []Edge
}

// Node is one graph node in the diagram.
type Node struct {
	ID    string
	Label string
	Kind  string // graph.NodeKind as a string
}

// Edge is one link, labeled with its pin pair.
type Edge struct {
	From  string
	To    string
	Label string
}
