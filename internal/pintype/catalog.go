package pintype

import (
	"fmt"
	"strings"
	"sync"
)

// CatalogEntry declares one resolvable named type.
type CatalogEntry struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// CatalogRegistry resolves named types against a declared catalog. With no
// entries loaded it resolves any identifier verbatim, which suits hosts
// without a reflection source; loading entries switches it to strict
// matching against the catalog.
type CatalogRegistry struct {
	mu      sync.RWMutex
	entries map[catalogKey]NamedType
	strict  bool
}

type catalogKey struct {
	kind Kind
	name string // lowercased short name
}

func NewCatalogRegistry() *CatalogRegistry {
	return &CatalogRegistry{entries: map[catalogKey]NamedType{}}
}

// Load adds entries and turns on strict resolution. Entries with an empty
// name are skipped.
func (r *CatalogRegistry) Load(entries []CatalogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strict = true
	for _, e := range entries {
		short, path := splitTypePath(e.Name)
		if e.Path != "" {
			path = e.Path
		}
		if short == "" {
			continue
		}
		r.entries[catalogKey{e.Kind, strings.ToLower(short)}] = NamedType{Name: short, Path: path}
	}
}

func (r *CatalogRegistry) Resolve(kind Kind, name string) (*NamedType, error) {
	short, path := splitTypePath(name)
	if short == "" {
		return nil, fmt.Errorf("empty %s type name", kind)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.strict {
		return &NamedType{Name: short, Path: path}, nil
	}
	if nt, ok := r.entries[catalogKey{kind, strings.ToLower(short)}]; ok {
		return &nt, nil
	}
	return nil, fmt.Errorf("no %s named %q in catalog", kind, name)
}

// splitTypePath separates a possibly path-qualified identifier like
// "/Game/UI.HealthBar" into its short name and full path. A bare name has
// an empty path.
func splitTypePath(s string) (short, path string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "./"); i >= 0 && i < len(s)-1 {
		return s[i+1:], s
	}
	return s, ""
}
