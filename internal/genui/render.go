package genui

import (
	"fmt"
	"html"
	"strings"
)

// Renderer is the presentation contract: one method per component variant.
// Card receives its children already rendered. Adding a component type adds a
// method here, so every implementation stops compiling until it handles it.
type Renderer interface {
	Button(p ButtonProps) string
	Card(p CardProps, children []string) string
	Navbar(p NavbarProps) string
	Sidebar(p SidebarProps) string
	Modal(p ModalProps) string
}

// Render renders each node in order with r.
func Render(nodes []ComponentNode, r Renderer) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, renderNode(n, r))
	}
	return out
}

func renderNode(n ComponentNode, r Renderer) string {
	switch p := n.Props.(type) {
	case ButtonProps:
		return r.Button(p)
	case CardProps:
		return r.Card(p, Render(n.Children, r))
	case NavbarProps:
		return r.Navbar(p)
	case SidebarProps:
		return r.Sidebar(p)
	case ModalProps:
		return r.Modal(p)
	}
	// Props is sealed; only a hand-built node with nil props gets here.
	return ""
}

// HTMLRenderer renders the live preview as escaped HTML with Tailwind classes.
type HTMLRenderer struct{}

var buttonStyles = map[ButtonVariant]string{
	VariantPrimary:   "bg-blue-600 text-white",
	VariantSecondary: "bg-gray-200 text-gray-800",
}

func (HTMLRenderer) Button(p ButtonProps) string {
	style, ok := buttonStyles[p.Variant]
	if !ok {
		style = buttonStyles[VariantPrimary]
	}
	return fmt.Sprintf(`<button class="px-4 py-2 rounded-md font-medium %s">%s</button>`,
		style, html.EscapeString(p.Label))
}

func (HTMLRenderer) Card(p CardProps, children []string) string {
	return fmt.Sprintf(`<div class="border rounded-lg p-4 shadow-sm bg-white"><h2 class="text-lg font-semibold mb-3">%s</h2><div class="space-y-3">%s</div></div>`,
		html.EscapeString(p.Title), strings.Join(children, ""))
}

func (HTMLRenderer) Navbar(p NavbarProps) string {
	return fmt.Sprintf(`<div class="w-full bg-gray-800 text-white px-6 py-3"><h1 class="text-lg font-bold">%s</h1></div>`,
		html.EscapeString(p.Title))
}

func (HTMLRenderer) Sidebar(p SidebarProps) string {
	var b strings.Builder
	b.WriteString(`<div class="w-60 bg-gray-100 p-4 h-full"><ul class="space-y-2">`)
	for _, item := range p.Items {
		b.WriteString(`<li class="text-gray-700">`)
		b.WriteString(html.EscapeString(item))
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></div>`)
	return b.String()
}

func (HTMLRenderer) Modal(p ModalProps) string {
	return fmt.Sprintf(`<div class="flex items-center justify-center bg-black/40 p-6"><div class="bg-white p-6 rounded-lg w-96"><h2 class="text-lg font-semibold mb-2">%s</h2><p>%s</p></div></div>`,
		html.EscapeString(p.Title), html.EscapeString(p.Content))
}

// RenderHTML renders a full preview fragment for a top-level node list.
func RenderHTML(nodes []ComponentNode) string {
	return `<div class="w-full max-w-md space-y-4">` + strings.Join(Render(nodes, HTMLRenderer{}), "") + `</div>`
}
