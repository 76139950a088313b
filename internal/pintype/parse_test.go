package pintype

import (
	"testing"

	"github.com/kevinpbuckley/blueprintd/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry resolves a fixed set of names, echoing the canonical casing.
type fakeRegistry struct {
	known map[string]string // lowercase name -> canonical name
}

func newFakeRegistry(names ...string) *fakeRegistry {
	r := &fakeRegistry{known: make(map[string]string)}
	for _, n := range names {
		r.known[normalizeKeyword(n)] = n
	}
	return r
}

func (r *fakeRegistry) Resolve(kind Kind, name string) (*NamedType, error) {
	if canonical, ok := r.known[normalizeKeyword(name)]; ok {
		return &NamedType{Name: canonical, Path: "/types/" + canonical}, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeTypeUnresolved, "no such type %q", name)
}

func TestParseScalars(t *testing.T) {
	c := NewCompiler(newFakeRegistry())

	tests := []struct {
		in   string
		want Kind
	}{
		{"bool", KindBool},
		{"int64", KindInt64},
		{"Float", KindFloat},
		{"STRING", KindString},
		{"vector2d", KindVector2D},
		{"LinearColor", KindLinearColor},
		{"  transform  ", KindTransform},
	}
	for _, tt := range tests {
		d, err := c.Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, d.Kind)
		assert.Equal(t, ContainerNone, d.Container)
	}
}

func TestParseNamedTypes(t *testing.T) {
	c := NewCompiler(newFakeRegistry("Widget", "EColorMode", "Actor"))

	d, err := c.Parse("object:widget")
	require.NoError(t, err)
	assert.Equal(t, KindObject, d.Kind)
	require.NotNil(t, d.Named)
	assert.Equal(t, "Widget", d.Named.Name)

	d, err = c.Parse("ENUM:EColorMode")
	require.NoError(t, err)
	assert.Equal(t, KindEnum, d.Kind)
	assert.Equal(t, "EColorMode", d.Named.Name)

	d, err = c.Parse("soft_class:Actor")
	require.NoError(t, err)
	assert.Equal(t, KindSoftClass, d.Kind)
}

func TestParseUnresolvedName(t *testing.T) {
	c := NewCompiler(newFakeRegistry("Widget"))

	_, err := c.Parse("struct:NoSuchThing")
	require.Error(t, err)
	ge, ok := err.(*schema.GraphError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeTypeUnresolved, ge.Code)
	assert.Equal(t, "NoSuchThing", ge.Identifier)
}

func TestParseContainers(t *testing.T) {
	c := NewCompiler(newFakeRegistry("Widget"))

	d, err := c.Parse("array<int>")
	require.NoError(t, err)
	assert.Equal(t, ContainerArray, d.Container)
	assert.Equal(t, KindInt, d.Elem.Kind)

	d, err = c.Parse("set<name>")
	require.NoError(t, err)
	assert.Equal(t, ContainerSet, d.Container)

	d, err = c.Parse("map<string, object:Widget>")
	require.NoError(t, err)
	assert.Equal(t, ContainerMap, d.Container)
	assert.Equal(t, KindString, d.Elem.Kind)
	assert.Equal(t, KindObject, d.Value.Kind)
	assert.Equal(t, "Widget", d.Value.Named.Name)

	// Nesting to arbitrary depth; the map comma split is top-level only.
	d, err = c.Parse("map<string,map<int,array<array<double>>>>")
	require.NoError(t, err)
	assert.Equal(t, ContainerMap, d.Container)
	assert.Equal(t, ContainerMap, d.Value.Container)
	assert.Equal(t, ContainerArray, d.Value.Value.Container)
	assert.Equal(t, KindDouble, d.Value.Value.Elem.Elem.Kind)
}

func TestParseErrors(t *testing.T) {
	c := NewCompiler(newFakeRegistry())

	for _, in := range []string{
		"",
		"array<int",
		"map<string>",
		"array<>",
		"frobnicator",
		"struct:",
		"int:Widget",
	} {
		_, err := c.Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseDepthLimit(t *testing.T) {
	c := NewCompiler(newFakeRegistry())

	deep := "int"
	for i := 0; i < 30; i++ {
		deep = "array<" + deep + ">"
	}
	_, err := c.Parse(deep)
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	c := NewCompiler(newFakeRegistry("Widget", "EMode", "FHit"))

	for _, in := range []string{
		"bool",
		"Array<Object:Widget>",
		"map<string,struct:FHit>",
		"set<enum:EMode>",
		"map<int,map<string,array<vector>>>",
		"rotator",
	} {
		first, err := c.Parse(in)
		require.NoError(t, err, in)

		serialized := first.String()
		second, err := c.Parse(serialized)
		require.NoError(t, err, serialized)
		assert.True(t, first.Equal(second), "round trip changed %q -> %q", in, serialized)
	}
}

func TestSerializeCanonical(t *testing.T) {
	c := NewCompiler(newFakeRegistry("Widget"))

	d, err := c.Parse("ARRAY<OBJECT:widget>")
	require.NoError(t, err)
	// Keywords normalize to lowercase; the short name is the registry's.
	assert.Equal(t, "array<object:Widget>", d.String())
}

func TestComposite(t *testing.T) {
	assert.True(t, Scalar(KindVector).Composite())
	assert.True(t, Scalar(KindLinearColor).Composite())
	assert.False(t, Scalar(KindInt).Composite())
	assert.False(t, Array(Scalar(KindVector)).Composite())
}
