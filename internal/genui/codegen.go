package genui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	codeHeader = "export default function GeneratedUI() {\n" +
		"  return (\n" +
		"    <div className=\"flex flex-row h-full w-full gap-4 p-4\">\n"
	codeFooter = "\n    </div>\n  );\n}"

	// rootIndent is the indentation of top-level components.
	rootIndent = 2
	indentStep = 2
)

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;")

// Generate renders the schema's components as JSX source. It returns "" when
// there are no components.
func Generate(schema UISchema) string {
	return GenerateNodes(schema.Components)
}

// GenerateNodes renders a top-level component list inside a single wrapper.
// Output depends only on the tree, so equal trees give byte-identical text.
func GenerateNodes(nodes []ComponentNode) string {
	if len(nodes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(codeHeader)
	for i, n := range nodes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		writeNode(&b, n, rootIndent)
	}
	b.WriteString(codeFooter)
	return b.String()
}

func writeNode(b *strings.Builder, n ComponentNode, indent int) {
	pad := strings.Repeat(" ", indent)
	b.WriteString(pad)
	b.WriteByte('<')
	b.WriteString(string(n.Type))
	if attrs := renderProps(n.Props); attrs != "" {
		b.WriteByte(' ')
		b.WriteString(attrs)
	}
	if len(n.Children) == 0 {
		b.WriteString(" />")
		return
	}
	b.WriteByte('>')
	for _, child := range n.Children {
		b.WriteByte('\n')
		writeNode(b, child, indent+indentStep)
	}
	b.WriteByte('\n')
	b.WriteString(pad)
	b.WriteString("</")
	b.WriteString(string(n.Type))
	b.WriteByte('>')
}

func renderProps(p Props) string {
	if p == nil {
		return ""
	}
	fields := p.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			parts = append(parts, fmt.Sprintf(`%s="%s"`, f.Key, attrEscaper.Replace(v)))
		case []string:
			quoted := make([]string, len(v))
			for i, s := range v {
				quoted[i] = jsString(s)
			}
			parts = append(parts, fmt.Sprintf("%s={[%s]}", f.Key, strings.Join(quoted, ", ")))
		default:
			parts = append(parts, fmt.Sprintf("%s={%v}", f.Key, v))
		}
	}
	return strings.Join(parts, " ")
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
