package genui

// PreviewCSP is the Content-Security-Policy of a preview document. Only the
// Tailwind CDN script may run; generated markup never carries scripts.
const PreviewCSP = "default-src 'none'; script-src https://cdn.tailwindcss.com; " +
	"style-src 'unsafe-inline'; img-src data:; base-uri 'none'; form-action 'none'"

const (
	previewHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="Content-Security-Policy" content="` + PreviewCSP + `">
<title>uiforge preview</title>
<script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 p-4">
`
	previewFoot = "\n</body>\n</html>\n"
)

// PreviewDocument renders nodes as a standalone HTML page. The browser UI
// loads it into an iframe sandboxed without allow-same-origin.
func PreviewDocument(nodes []ComponentNode) string {
	return previewHead + RenderHTML(nodes) + previewFoot
}
