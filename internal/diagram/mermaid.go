package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a Model as a Mermaid flowchart string.
func RenderMermaid(m *Model) string {
	var b strings.Builder

	b.WriteString("graph LR\n")

	// Title as comment.
	if m.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", m.Title))
	}

	for _, node := range m.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	for _, edge := range m.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}

	b.WriteString("\n")
	b.WriteString("    classDef event fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef boundary fill:#6b4e9e,stroke:#4a3670,color:#fff\n")
	b.WriteString("    classDef variable fill:#1a5276,stroke:#0e3a52,color:#fff\n")

	for _, node := range m.Nodes {
		if cls := mermaidKindClass(node.Kind); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), cls))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)

	switch node.Kind {
	case "event", "entry", "result":
		return fmt.Sprintf("%s((%q))", id, label)
	case "branch":
		return fmt.Sprintf("%s{%q}", id, label)
	case "macro":
		return fmt.Sprintf("%s[[%q]]", id, label)
	case "variable", "reroute":
		return fmt.Sprintf("%s([%q])", id, label)
	default: // call
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidKindClass maps a node kind to a Mermaid class name.
func mermaidKindClass(kind string) string {
	switch kind {
	case "event":
		return "event"
	case "entry", "result":
		return "boundary"
	case "variable":
		return "variable"
	default:
		return ""
	}
}

// firstLine truncates multi-line labels to their first line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
