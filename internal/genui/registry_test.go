package genui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowedType(t *testing.T) {
	for _, tag := range []string{"Button", "Card", "Navbar", "Sidebar", "Modal"} {
		assert.True(t, IsAllowedType(tag), tag)
	}
	for _, tag := range []string{"", "button", "Evil", "div", "script", "Card "} {
		assert.False(t, IsAllowedType(tag), "%q must not be allowed", tag)
	}
}

func catalogTypes() []ComponentType {
	var out []ComponentType
	for _, spec := range Catalog() {
		out = append(out, spec.Type)
	}
	return out
}

func TestCatalog_RegistryOrder(t *testing.T) {
	assert.Equal(t, []ComponentType{TypeButton, TypeCard, TypeNavbar, TypeSidebar, TypeModal}, catalogTypes())
}

func TestLookup_OnlyCardTakesChildren(t *testing.T) {
	for _, tag := range catalogTypes() {
		spec, ok := Lookup(tag)
		require.True(t, ok)
		assert.Equal(t, tag == TypeCard, spec.Children, tag)
	}
	_, ok := Lookup("Evil")
	assert.False(t, ok)
}

func TestLookup_PropContracts(t *testing.T) {
	names := func(tag ComponentType) []string {
		spec, _ := Lookup(tag)
		out := make([]string, len(spec.Props))
		for i, p := range spec.Props {
			out[i] = p.Name
		}
		return out
	}
	assert.Equal(t, []string{"label", "variant"}, names(TypeButton))
	assert.Equal(t, []string{"title"}, names(TypeCard))
	assert.Equal(t, []string{"title"}, names(TypeNavbar))
	assert.Equal(t, []string{"items"}, names(TypeSidebar))
	assert.Equal(t, []string{"title", "content"}, names(TypeModal))
}

func TestCatalog_IsACopy(t *testing.T) {
	c := Catalog()
	c[0].Type = "Evil"
	assert.True(t, IsAllowedType("Button"))
	assert.False(t, IsAllowedType("Evil"))
}
