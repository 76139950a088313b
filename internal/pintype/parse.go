package pintype

import (
	"strings"

	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// maxNestingDepth bounds recursion in Parse to reject pathological input
// like "array<array<array<...>>>".
const maxNestingDepth = 16

// Compiler parses descriptor strings, resolving named types via the registry.
type Compiler struct {
	registry Registry
}

// NewCompiler creates a Compiler backed by the given registry.
func NewCompiler(registry Registry) *Compiler {
	return &Compiler{registry: registry}
}

// Parse compiles a descriptor string like "map<string,array<object:Widget>>".
// Keywords are case-insensitive; named identifiers are taken verbatim.
func (c *Compiler) Parse(s string) (*Descriptor, error) {
	return c.parse(s, 0)
}

func (c *Compiler) parse(s string, depth int) (*Descriptor, error) {
	if depth > maxNestingDepth {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"type nesting too deep (max %d)", maxNestingDepth).WithIdentifier(s)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty type string")
	}

	lower := strings.ToLower(s)
	for _, container := range []Container{ContainerArray, ContainerSet, ContainerMap} {
		prefix := string(container) + "<"
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		if !strings.HasSuffix(s, ">") {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"unterminated %s container", container).WithIdentifier(s)
		}
		inner := s[len(prefix) : len(s)-1]
		if container == ContainerMap {
			return c.parseMap(inner, depth)
		}
		elem, err := c.parse(inner, depth+1)
		if err != nil {
			return nil, err
		}
		return &Descriptor{Container: container, Elem: elem}, nil
	}

	return c.parseScalar(s)
}

// parseMap splits "K,V" on the first top-level comma and parses both sides.
func (c *Compiler) parseMap(inner string, depth int) (*Descriptor, error) {
	angle := 0
	for i, r := range inner {
		switch r {
		case '<':
			angle++
		case '>':
			angle--
		case ',':
			if angle == 0 {
				key, err := c.parse(inner[:i], depth+1)
				if err != nil {
					return nil, err
				}
				value, err := c.parse(inner[i+1:], depth+1)
				if err != nil {
					return nil, err
				}
				return Map(key, value), nil
			}
		}
	}
	return nil, schema.NewError(schema.ErrCodeValidation,
		"map type requires a key and a value").WithIdentifier(inner)
}

func (c *Compiler) parseScalar(s string) (*Descriptor, error) {
	if kind, name, ok := strings.Cut(s, ":"); ok {
		k := Kind(normalizeKeyword(kind))
		if !IsNamed(k) {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"%q does not take a named type", kind).WithIdentifier(s)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"%s type requires a name", k).WithIdentifier(s)
		}
		nt, err := c.registry.Resolve(k, name)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeTypeUnresolved,
				"unknown %s type %q", k, name).WithIdentifier(name).WithCause(err)
		}
		return Named(k, nt), nil
	}

	k := Kind(normalizeKeyword(s))
	if _, ok := plainKinds[k]; ok {
		return Scalar(k), nil
	}
	if IsNamed(k) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"%s type requires a name", k).WithIdentifier(s)
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation,
		"unknown type keyword %q", s).WithIdentifier(s)
}
