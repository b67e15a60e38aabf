package genui

import (
	"fmt"
	"strings"
)

// SystemPromptPlanner is the system message for every planning call.
const SystemPromptPlanner = "You return strict raw JSON only. No markdown. No explanation."

// plannerFormat is the response shape the model is told to follow.
const plannerFormat = `{
  "layout": "string",
  "components": [
    { "type": "ComponentName", "props": {}, "children": [] }
  ],
  "changes": "string"
}`

// BuildPlannerPrompt assembles the user message: the response format, the
// component catalog, the user's request and the code generated so far.
func BuildPlannerPrompt(userInput, currentCode string) string {
	var b strings.Builder
	b.WriteString("You are a strict UI Planning Agent.\nReturn valid JSON only.\nNo markdown.\nNo explanation.\n\n")
	b.WriteString("Format:\n")
	b.WriteString(plannerFormat)
	b.WriteString("\n\nAvailable components (use no others, no style or className props):\n")
	b.WriteString(catalogText())
	b.WriteString("\nReturn the complete UI, not a diff. Describe what you changed in \"changes\".\n\n")
	b.WriteString("User Request:\n")
	b.WriteString(userInput)
	b.WriteString("\n\nExisting Code:\n")
	if strings.TrimSpace(currentCode) == "" {
		b.WriteString("None")
	} else {
		b.WriteString(currentCode)
	}
	b.WriteString("\n")
	return b.String()
}

func catalogText() string {
	var b strings.Builder
	for _, spec := range Catalog() {
		parts := make([]string, 0, len(spec.Props))
		for _, p := range spec.Props {
			switch p.Kind {
			case KindEnum:
				parts = append(parts, fmt.Sprintf("%s: %s", p.Name, strings.Join(p.Enum, "|")))
			case KindStringList:
				parts = append(parts, p.Name+": string[]")
			default:
				parts = append(parts, p.Name+": string")
			}
		}
		fmt.Fprintf(&b, "- %s (%s): props { %s }", spec.Type, spec.Description, strings.Join(parts, ", "))
		if spec.Children {
			b.WriteString("; children: component[]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
