// Package catalog maps error codes to user-facing message templates.
package catalog

import (
	"bytes"
	"text/template"
)

// Format renders the message template for code with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata so
// template variables without metadata render as empty.
func Format(code string, metadata map[string]string) string {
	tmpl, ok := messages[code]
	if !ok {
		return code
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}
