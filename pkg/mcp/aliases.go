package mcp

import "strings"

// Callers spell the same field many ways; one declarative table maps every
// accepted spelling to the canonical key. First present wins, canonical
// spelling first.

var fieldAliases = map[string][]string{
	"document_id": {"document_id", "doc_id", "blueprint", "blueprint_name"},
	"connections": {"connections", "links", "pairs"},
	"defaults":    {"defaults", "options"},
	"source":      {"source", "source_ref", "from", "source_pin"},
	"target":      {"target", "target_ref", "to", "target_pin"},
	"operations":  {"operations", "disconnections", "pins"},
	"pin":         {"pin", "pin_ref", "source"},
	"pin_id":      {"pin_id", "id"},
	"ref":         {"ref", "composite"},
	"node_id":     {"node_id", "node", "node_name", "node_guid"},
	"pin_name":    {"pin_name", "pin", "name"},
	"node":        {"node", "node_id", "node_name", "node_guid"},
	"pin_names":   {"pin_names", "pins", "names"},

	"break_all":     {"break_all", "all"},
	"expression":    {"expression", "query", "jq"},
	"function_name": {"function_name", "function"},
	"param_name":    {"param_name", "param", "local_name", "local"},
	"type":          {"type", "param_type", "local_type"},
	"default":       {"default", "default_value"},

	"allow_conversion_node": {"allow_conversion_node", "allow_conversion"},
	"allow_promotion":       {"allow_promotion", "promote"},
	"break_existing_links":  {"break_existing_links", "break_existing", "replace_existing"},
}

// lookupAlias returns the first present spelling's value for the canonical
// key.
func lookupAlias(args map[string]any, canonical string) (any, bool) {
	names, ok := fieldAliases[canonical]
	if !ok {
		names = []string{canonical}
	}
	for _, name := range names {
		if v, ok := args[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// aliasString resolves the canonical key to a non-empty string, if present.
func aliasString(args map[string]any, canonical string) string {
	v, ok := lookupAlias(args, canonical)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// aliasBool resolves the canonical key to a bool, reporting presence
// separately so absent flags can fall back to batch defaults.
func aliasBool(args map[string]any, canonical string) (bool, bool) {
	v, ok := lookupAlias(args, canonical)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// aliasStrings resolves the canonical key to a string list. A bare string is
// treated as a one-element list.
func aliasStrings(args map[string]any, canonical string) []string {
	v, ok := lookupAlias(args, canonical)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// aliasMap resolves the canonical key to an object, if present.
func aliasMap(args map[string]any, canonical string) map[string]any {
	v, ok := lookupAlias(args, canonical)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// aliasList resolves the canonical key to a list of objects.
func aliasList(args map[string]any, canonical string) []map[string]any {
	v, ok := lookupAlias(args, canonical)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// canonicalPinRef rewrites a pin reference object onto canonical keys. A
// bare string is treated as a composite (or plain pin id) reference.
func canonicalPinRef(v any) map[string]any {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		if strings.Contains(val, ":") {
			return map[string]any{"ref": val}
		}
		return map[string]any{"pin_id": val}
	case map[string]any:
		out := map[string]any{}
		for _, key := range []string{"pin_id", "ref", "node_id", "pin_name"} {
			if s := aliasString(val, key); s != "" {
				out[key] = s
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}
