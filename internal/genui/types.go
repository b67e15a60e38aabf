package genui

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidNode is returned when decoding a single node that the sanitizer drops.
var ErrInvalidNode = errors.New("invalid component node")

// Props is the closed set of per-type prop structs. The unexported method
// keeps the set sealed to this package.
type Props interface {
	Type() ComponentType
	// Fields lists the props in contract order.
	Fields() []Prop
	isProps()
}

// Prop is a single rendered key/value pair.
type Prop struct {
	Key   string
	Value any
}

// ButtonProps are the props of a Button.
type ButtonProps struct {
	Label   string        `json:"label"`
	Variant ButtonVariant `json:"variant"`
}

func (ButtonProps) Type() ComponentType { return TypeButton }
func (p ButtonProps) Fields() []Prop {
	return []Prop{{Key: "label", Value: p.Label}, {Key: "variant", Value: string(p.Variant)}}
}
func (ButtonProps) isProps() {}

// CardProps are the props of a Card.
type CardProps struct {
	Title string `json:"title"`
}

func (CardProps) Type() ComponentType { return TypeCard }
func (p CardProps) Fields() []Prop  { return []Prop{{Key: "title", Value: p.Title}} }
func (CardProps) isProps()           {}

// NavbarProps are the props of a Navbar.
type NavbarProps struct {
	Title string `json:"title"`
}

func (NavbarProps) Type() ComponentType { return TypeNavbar }
func (p NavbarProps) Fields() []Prop  { return []Prop{{Key: "title", Value: p.Title}} }
func (NavbarProps) isProps()           {}

// SidebarProps are the props of a Sidebar.
type SidebarProps struct {
	Items []string `json:"items"`
}

func (SidebarProps) Type() ComponentType { return TypeSidebar }
func (p SidebarProps) Fields() []Prop  { return []Prop{{Key: "items", Value: p.Items}} }
func (SidebarProps) isProps()           {}

// ModalProps are the props of a Modal.
type ModalProps struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (ModalProps) Type() ComponentType { return TypeModal }
func (p ModalProps) Fields() []Prop {
	return []Prop{{Key: "title", Value: p.Title}, {Key: "content", Value: p.Content}}
}
func (ModalProps) isProps() {}

// ComponentNode is one node of a sanitized UI tree. Children is non-nil only
// for Card.
type ComponentNode struct {
	Type     ComponentType
	Props    Props
	Children []ComponentNode
}

type nodeJSON struct {
	Type     ComponentType    `json:"type"`
	Props    Props            `json:"props"`
	Children *[]ComponentNode `json:"children,omitempty"`
}

// MarshalJSON writes {type, props} and, for Card only, children (always an array).
func (n ComponentNode) MarshalJSON() ([]byte, error) {
	out := nodeJSON{Type: n.Type, Props: n.Props}
	if n.Type == TypeCard {
		kids := n.Children
		if kids == nil {
			kids = []ComponentNode{}
		}
		out.Children = &kids
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a node through the sanitizer. A node the sanitizer
// would drop is an error here because there is no parent list to drop it from.
func (n *ComponentNode) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	node, ok := sanitizeNode(raw, 0)
	if !ok {
		return fmt.Errorf("genui: %w", ErrInvalidNode)
	}
	*n = node
	return nil
}

// UISchema is the root artifact produced by the sanitizer.
type UISchema struct {
	Layout     string          `json:"layout"`
	Components []ComponentNode `json:"components"`
	Changes    string          `json:"changes"`
}

// UnmarshalJSON decodes any JSON value through Sanitize, so a decoded
// UISchema is always well-formed.
func (s *UISchema) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Sanitize(raw)
	return nil
}

// CloneNodes deep-copies a node list.
func CloneNodes(nodes []ComponentNode) []ComponentNode {
	if nodes == nil {
		return nil
	}
	out := make([]ComponentNode, len(nodes))
	for i, n := range nodes {
		out[i] = ComponentNode{Type: n.Type, Props: cloneProps(n.Props)}
		if n.Children != nil {
			out[i].Children = CloneNodes(n.Children)
		}
	}
	return out
}

func cloneProps(p Props) Props {
	if sp, ok := p.(SidebarProps); ok {
		items := make([]string, len(sp.Items))
		copy(items, sp.Items)
		return SidebarProps{Items: items}
	}
	return p
}

// CountNodes returns the total number of nodes in the tree.
func CountNodes(nodes []ComponentNode) int {
	total := 0
	for _, n := range nodes {
		total += 1 + CountNodes(n.Children)
	}
	return total
}
