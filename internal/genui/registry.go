// Package genui holds the generated-UI core: the closed component vocabulary,
// the sanitizer that turns untrusted model output into a typed tree, the code
// generator, the preview renderer and the planner that asks the LLM for a new
// UI description.
package genui

// ComponentType is a tag from the closed component vocabulary.
type ComponentType string

const (
	TypeButton  ComponentType = "Button"
	TypeCard    ComponentType = "Card"
	TypeNavbar  ComponentType = "Navbar"
	TypeSidebar ComponentType = "Sidebar"
	TypeModal   ComponentType = "Modal"
)

// ButtonVariant is the visual variant of a Button.
type ButtonVariant string

const (
	VariantPrimary   ButtonVariant = "primary"
	VariantSecondary ButtonVariant = "secondary"
)

// Prop defaults applied when a prop is missing or has the wrong type.
const (
	DefaultButtonLabel  = "Button"
	DefaultCardTitle    = "Card"
	DefaultNavbarTitle  = "App"
	DefaultModalTitle   = "Modal"
	DefaultModalContent = ""

	DefaultLayout  = "dashboard"
	DefaultChanges = "No change description provided."
)

// PropKind is the declared value type of a prop.
type PropKind string

const (
	KindString     PropKind = "string"
	KindEnum       PropKind = "enum"
	KindStringList PropKind = "string_list"
)

// PropSpec describes one prop of a component contract.
type PropSpec struct {
	Name    string
	Kind    PropKind
	Default any
	Enum    []string // only for KindEnum
}

// ComponentSpec is the contract of one component type.
type ComponentSpec struct {
	Type        ComponentType
	Description string
	Props       []PropSpec
	Children    bool // only Card may hold children
}

// registry is the single source of truth for the vocabulary. Adding a widget
// means one entry here, one case in sanitizeNode and one Renderer method.
var registry = []ComponentSpec{
	{
		Type:        TypeButton,
		Description: "clickable button",
		Props: []PropSpec{
			{Name: "label", Kind: KindString, Default: DefaultButtonLabel},
			{Name: "variant", Kind: KindEnum, Default: string(VariantPrimary), Enum: []string{string(VariantPrimary), string(VariantSecondary)}},
		},
	},
	{
		Type:        TypeCard,
		Description: "titled container; the only component that accepts children",
		Props: []PropSpec{
			{Name: "title", Kind: KindString, Default: DefaultCardTitle},
		},
		Children: true,
	},
	{
		Type:        TypeNavbar,
		Description: "top navigation bar",
		Props: []PropSpec{
			{Name: "title", Kind: KindString, Default: DefaultNavbarTitle},
		},
	},
	{
		Type:        TypeSidebar,
		Description: "vertical list of navigation items",
		Props: []PropSpec{
			{Name: "items", Kind: KindStringList, Default: []string{}},
		},
	},
	{
		Type:        TypeModal,
		Description: "dialog with a title and body text",
		Props: []PropSpec{
			{Name: "title", Kind: KindString, Default: DefaultModalTitle},
			{Name: "content", Kind: KindString, Default: DefaultModalContent},
		},
	},
}

// IsAllowedType reports whether t names a registered component.
func IsAllowedType(t string) bool {
	_, ok := Lookup(ComponentType(t))
	return ok
}

// Lookup returns the contract for t.
func Lookup(t ComponentType) (ComponentSpec, bool) {
	for _, spec := range registry {
		if spec.Type == t {
			return spec, true
		}
	}
	return ComponentSpec{}, false
}

// Catalog returns a copy of all component contracts in registry order.
func Catalog() []ComponentSpec {
	out := make([]ComponentSpec, len(registry))
	copy(out, registry)
	return out
}
