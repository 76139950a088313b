package pintype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogVerbatimWithoutEntries(t *testing.T) {
	r := NewCatalogRegistry()

	nt, err := r.Resolve(KindObject, "Widget")
	require.NoError(t, err)
	assert.Equal(t, "Widget", nt.Name)
	assert.Empty(t, nt.Path)

	nt, err = r.Resolve(KindClass, "/Game/UI.HealthBar")
	require.NoError(t, err)
	assert.Equal(t, "HealthBar", nt.Name)
	assert.Equal(t, "/Game/UI.HealthBar", nt.Path)
}

func TestCatalogStrictAfterLoad(t *testing.T) {
	r := NewCatalogRegistry()
	r.Load([]CatalogEntry{
		{Kind: KindObject, Name: "Widget", Path: "/Game/UI.Widget"},
		{Kind: KindStruct, Name: "/Game/Math.Bounds"},
	})

	nt, err := r.Resolve(KindObject, "widget")
	require.NoError(t, err)
	assert.Equal(t, "Widget", nt.Name)
	assert.Equal(t, "/Game/UI.Widget", nt.Path)

	// Path-qualified lookup matches on the short name.
	nt, err = r.Resolve(KindStruct, "/Game/Math.Bounds")
	require.NoError(t, err)
	assert.Equal(t, "Bounds", nt.Name)

	_, err = r.Resolve(KindObject, "Bogus")
	assert.Error(t, err)

	// Kind is part of the key.
	_, err = r.Resolve(KindClass, "Widget")
	assert.Error(t, err)
}

func TestCatalogEmptyName(t *testing.T) {
	r := NewCatalogRegistry()
	_, err := r.Resolve(KindObject, "  ")
	assert.Error(t, err)
}
