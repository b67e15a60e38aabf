package genui

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput means the model's text was not parseable JSON.
var ErrMalformedOutput = errors.New("malformed model output")

// MaxDepth bounds Card nesting. Children below it are dropped like any other
// invalid node.
const MaxDepth = 16

// Sanitize converts an untrusted decoded JSON value into a well-formed
// UISchema. It never fails: nodes with an unknown type are dropped, props
// outside the contract are never read, and missing or wrong-typed props get
// their defaults.
func Sanitize(raw any) UISchema {
	out := UISchema{
		Layout:     DefaultLayout,
		Components: []ComponentNode{},
		Changes:    DefaultChanges,
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	if s, ok := obj["layout"].(string); ok {
		out.Layout = s
	}
	if s, ok := obj["changes"].(string); ok {
		out.Changes = s
	}
	if list, ok := obj["components"].([]any); ok {
		out.Components = sanitizeNodes(list, 0)
	}
	return out
}

// sanitizeNodes keeps the relative order of surviving entries.
func sanitizeNodes(list []any, depth int) []ComponentNode {
	out := make([]ComponentNode, 0, len(list))
	for _, item := range list {
		if node, ok := sanitizeNode(item, depth); ok {
			out = append(out, node)
		}
	}
	return out
}

func sanitizeNode(v any, depth int) (ComponentNode, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return ComponentNode{}, false
	}
	t, _ := obj["type"].(string)
	if !IsAllowedType(t) {
		return ComponentNode{}, false
	}
	// A missing or non-object props value reads as empty: every prop defaults.
	props, _ := obj["props"].(map[string]any)

	node := ComponentNode{Type: ComponentType(t)}
	switch node.Type {
	case TypeButton:
		node.Props = ButtonProps{
			Label:   stringProp(props, "label", DefaultButtonLabel),
			Variant: variantProp(props),
		}
	case TypeCard:
		node.Props = CardProps{Title: stringProp(props, "title", DefaultCardTitle)}
		node.Children = []ComponentNode{}
		if kids, ok := obj["children"].([]any); ok && depth+1 < MaxDepth {
			node.Children = sanitizeNodes(kids, depth+1)
		}
	case TypeNavbar:
		node.Props = NavbarProps{Title: stringProp(props, "title", DefaultNavbarTitle)}
	case TypeSidebar:
		node.Props = SidebarProps{Items: stringListProp(props, "items")}
	case TypeModal:
		node.Props = ModalProps{
			Title:   stringProp(props, "title", DefaultModalTitle),
			Content: stringProp(props, "content", DefaultModalContent),
		}
	default:
		return ComponentNode{}, false
	}
	return node, true
}

func stringProp(props map[string]any, key, def string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return def
}

func variantProp(props map[string]any) ButtonVariant {
	switch v, _ := props["variant"].(string); ButtonVariant(v) {
	case VariantPrimary, VariantSecondary:
		return ButtonVariant(v)
	default:
		return VariantPrimary
	}
}

// stringListProp keeps only the string entries, in order.
func stringListProp(props map[string]any, key string) []string {
	out := []string{}
	list, ok := props[key].([]any)
	if !ok {
		return out
	}
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// DecodeModelOutput parses the model's raw text as JSON. Surrounding markdown
// code fences are tolerated; anything else that is not a single JSON value is
// ErrMalformedOutput.
func DecodeModelOutput(text string) (any, error) {
	body := stripCodeFence(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}
	var raw any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return raw, nil
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line (``` or ```json) and a trailing fence.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
