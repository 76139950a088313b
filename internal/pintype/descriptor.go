// Package pintype compiles the pin type mini-language into structured
// descriptors and back. Named types (enum:/object:/class:/...) are resolved
// through an injected Registry so tests can substitute a fake.
package pintype

import "strings"

// Kind is the scalar kind of a descriptor.
type Kind string

const (
	KindBool        Kind = "bool"
	KindByte        Kind = "byte"
	KindInt         Kind = "int"
	KindInt64       Kind = "int64"
	KindFloat       Kind = "float"
	KindDouble      Kind = "double"
	KindString      Kind = "string"
	KindName        Kind = "name"
	KindText        Kind = "text"
	KindVector      Kind = "vector"
	KindVector2D    Kind = "vector2d"
	KindVector4     Kind = "vector4"
	KindRotator     Kind = "rotator"
	KindTransform   Kind = "transform"
	KindColor       Kind = "color"
	KindLinearColor Kind = "linearcolor"
	KindEnum        Kind = "enum"
	KindObject      Kind = "object"
	KindClass       Kind = "class"
	KindSoftObject  Kind = "soft_object"
	KindSoftClass   Kind = "soft_class"
	KindInterface   Kind = "interface"
	KindStruct      Kind = "struct"
)

// Container is the container kind of a descriptor. Empty means scalar.
type Container string

const (
	ContainerNone  Container = ""
	ContainerArray Container = "array"
	ContainerSet   Container = "set"
	ContainerMap   Container = "map"
)

var plainKinds = map[Kind]struct{}{
	KindBool: {}, KindByte: {}, KindInt: {}, KindInt64: {},
	KindFloat: {}, KindDouble: {}, KindString: {}, KindName: {}, KindText: {},
	KindVector: {}, KindVector2D: {}, KindVector4: {}, KindRotator: {},
	KindTransform: {}, KindColor: {}, KindLinearColor: {},
}

var namedKinds = map[Kind]struct{}{
	KindEnum: {}, KindObject: {}, KindClass: {},
	KindSoftObject: {}, KindSoftClass: {}, KindInterface: {}, KindStruct: {},
}

// IsNamed reports whether k requires a named-type reference.
func IsNamed(k Kind) bool {
	_, ok := namedKinds[k]
	return ok
}

// NamedType is a resolved reference to a class/struct/enum/interface.
type NamedType struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// Registry resolves named-type identifiers. An unresolved name must return
// an error carrying the attempted name.
type Registry interface {
	Resolve(kind Kind, name string) (*NamedType, error)
}

// Descriptor is the structured representation of a pin type.
type Descriptor struct {
	Container Container   `json:"container,omitempty"`
	Kind      Kind        `json:"kind,omitempty"`
	Named     *NamedType  `json:"named,omitempty"`
	Elem      *Descriptor `json:"elem,omitempty"`  // container element; map key
	Value     *Descriptor `json:"value,omitempty"` // map value
}

// Equal reports structural equality. Named types compare by short name.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.Container != other.Container || d.Kind != other.Kind {
		return false
	}
	if (d.Named == nil) != (other.Named == nil) {
		return false
	}
	if d.Named != nil && d.Named.Name != other.Named.Name {
		return false
	}
	if !d.Elem.Equal(other.Elem) {
		return false
	}
	return d.Value.Equal(other.Value)
}

// String serializes the descriptor back into the mini-language: canonical
// lowercase keywords, named short names embedded verbatim.
func (d *Descriptor) String() string {
	if d == nil {
		return ""
	}
	switch d.Container {
	case ContainerArray, ContainerSet:
		return string(d.Container) + "<" + d.Elem.String() + ">"
	case ContainerMap:
		return "map<" + d.Elem.String() + "," + d.Value.String() + ">"
	}
	if d.Named != nil {
		return string(d.Kind) + ":" + d.Named.Name
	}
	return string(d.Kind)
}

// Scalar builds a plain scalar descriptor.
func Scalar(k Kind) *Descriptor {
	return &Descriptor{Kind: k}
}

// Named builds a named-type descriptor.
func Named(k Kind, nt *NamedType) *Descriptor {
	return &Descriptor{Kind: k, Named: nt}
}

// Array wraps elem in an array container.
func Array(elem *Descriptor) *Descriptor {
	return &Descriptor{Container: ContainerArray, Elem: elem}
}

// Set wraps elem in a set container.
func Set(elem *Descriptor) *Descriptor {
	return &Descriptor{Container: ContainerSet, Elem: elem}
}

// Map builds a map container from key and value descriptors.
func Map(key, value *Descriptor) *Descriptor {
	return &Descriptor{Container: ContainerMap, Elem: key, Value: value}
}

// Composite reports whether the descriptor decomposes into sub-pins.
// Containers never split; only the built-in composite scalars do.
func (d *Descriptor) Composite() bool {
	if d == nil || d.Container != ContainerNone {
		return false
	}
	switch d.Kind {
	case KindVector, KindVector2D, KindVector4, KindRotator,
		KindTransform, KindColor, KindLinearColor:
		return true
	}
	return false
}

func normalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
