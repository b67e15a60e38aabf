package genui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// tagRenderer renders each node as a compact tag so dispatch is easy to read.
type tagRenderer struct{}

func (tagRenderer) Button(p ButtonProps) string { return "B(" + p.Label + ")" }
func (tagRenderer) Card(p CardProps, children []string) string {
	return fmt.Sprintf("C(%s)[%s]", p.Title, strings.Join(children, ","))
}
func (tagRenderer) Navbar(p NavbarProps) string   { return "N(" + p.Title + ")" }
func (tagRenderer) Sidebar(p SidebarProps) string { return "S(" + strings.Join(p.Items, "|") + ")" }
func (tagRenderer) Modal(p ModalProps) string     { return "M(" + p.Title + ")" }

func TestRender_Dispatch(t *testing.T) {
	nodes := []ComponentNode{
		{Type: TypeNavbar, Props: NavbarProps{Title: "App"}},
		{Type: TypeCard, Props: CardProps{Title: "c"}, Children: []ComponentNode{
			{Type: TypeButton, Props: ButtonProps{Label: "1"}},
			{Type: TypeCard, Props: CardProps{Title: "inner"}, Children: []ComponentNode{}},
		}},
		{Type: TypeSidebar, Props: SidebarProps{Items: []string{"a", "b"}}},
		{Type: TypeModal, Props: ModalProps{Title: "m"}},
	}
	got := Render(nodes, tagRenderer{})
	assert.Equal(t, []string{"N(App)", "C(c)[B(1),C(inner)[]]", "S(a|b)", "M(m)"}, got)
}

func TestRender_NilPropsRendersNothing(t *testing.T) {
	assert.Equal(t, []string{""}, Render([]ComponentNode{{Type: TypeButton}}, tagRenderer{}))
}

func TestHTMLRenderer_Escapes(t *testing.T) {
	r := HTMLRenderer{}
	assert.Contains(t, r.Button(ButtonProps{Label: "<script>alert(1)</script>", Variant: VariantPrimary}),
		"&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, r.Modal(ModalProps{Title: "t", Content: `<img src=x onerror="y">`}), "<img")
	assert.Contains(t, r.Sidebar(SidebarProps{Items: []string{"a&b"}}), "<li class=\"text-gray-700\">a&amp;b</li>")
}

func TestHTMLRenderer_ButtonVariants(t *testing.T) {
	r := HTMLRenderer{}
	assert.Contains(t, r.Button(ButtonProps{Label: "x", Variant: VariantSecondary}), "bg-gray-200")
	assert.Contains(t, r.Button(ButtonProps{Label: "x", Variant: VariantPrimary}), "bg-blue-600")
	assert.Contains(t, r.Button(ButtonProps{Label: "x", Variant: "odd"}), "bg-blue-600")
}

func TestRenderHTML_Wrapper(t *testing.T) {
	got := RenderHTML([]ComponentNode{
		{Type: TypeCard, Props: CardProps{Title: "Box"}, Children: []ComponentNode{
			{Type: TypeNavbar, Props: NavbarProps{Title: "Inner"}},
		}},
	})
	assert.True(t, strings.HasPrefix(got, `<div class="w-full max-w-md space-y-4">`))
	assert.True(t, strings.HasSuffix(got, `</div>`))
	assert.Contains(t, got, "Box")
	assert.Contains(t, got, "Inner")
	assert.Equal(t, `<div class="w-full max-w-md space-y-4"></div>`, RenderHTML(nil))
}
