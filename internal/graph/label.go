package graph

// KindLabel returns the display label for a node kind. Closed switch over
// the NodeKind set; extend here when adding kinds.
func KindLabel(k NodeKind) string {
	switch k {
	case NodeEvent:
		return "Event"
	case NodeCall:
		return "Function Call"
	case NodeBranch:
		return "Branch"
	case NodeVariable:
		return "Variable"
	case NodeReroute:
		return "Reroute"
	case NodeEntry:
		return "Function Entry"
	case NodeResult:
		return "Function Result"
	case NodeMacro:
		return "Macro"
	}
	return "Node"
}

// DisplayLabel returns the node title, falling back to its kind label.
func (n *Node) DisplayLabel() string {
	if n.Title != "" {
		return n.Title
	}
	return KindLabel(n.Kind)
}
