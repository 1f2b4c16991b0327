package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// BulletList renders xs as "- a\n- b". An empty list still renders its
// leading marker.
func BulletList(xs []string) string {
	return "- " + strings.Join(xs, "\n- ")
}

// NumberedList renders xs as "1. a\n2. b".
func NumberedList(xs []string) string {
	lines := make([]string, len(xs))
	for i, x := range xs {
		lines[i] = fmt.Sprintf("%d. %s", i+1, x)
	}
	return strings.Join(lines, "\n")
}

func formatList(format ListFormat, xs []string) string {
	if format == ListNumbered {
		return NumberedList(xs)
	}
	return BulletList(xs)
}

// RenderCatalog renders catalog entries in the requested form. Entries
// without descriptions drop the description column.
func RenderCatalog(entries []ActionTemplate, rendering Rendering) (string, error) {
	described := false
	for _, e := range entries {
		if e.Effect != "" {
			described = true
			break
		}
	}

	switch rendering {
	case RenderTable:
		return renderTable(entries, described), nil
	case RenderNumbered:
		return renderNumbered(entries, described), nil
	case RenderJSON:
		return renderJSONTemplates(entries)
	}
	return "", goerr.Wrap(ErrInvalidStyle, "unknown catalog rendering", goerr.Value("rendering", rendering))
}

func renderTable(entries []ActionTemplate, described bool) string {
	var b strings.Builder
	if described {
		b.WriteString("| Action | Description |\n| --- | --- |")
	} else {
		b.WriteString("| Action |\n| --- |")
	}
	for _, e := range entries {
		b.WriteString("\n| ")
		b.WriteString(e.Template)
		if described {
			b.WriteString(" | ")
			b.WriteString(e.Effect)
		}
		b.WriteString(" |")
	}
	return b.String()
}

func renderNumbered(entries []ActionTemplate, described bool) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		if described && e.Effect != "" {
			lines[i] = fmt.Sprintf("%d. %s: %s", i+1, e.Template, e.Effect)
		} else {
			lines[i] = fmt.Sprintf("%d. %s", i+1, e.Template)
		}
	}
	return strings.Join(lines, "\n")
}

type jsonTemplate struct {
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

func renderJSONTemplates(entries []ActionTemplate) (string, error) {
	items := make([]jsonTemplate, len(entries))
	for i, e := range entries {
		items[i] = jsonTemplate{Action: e.Template, Description: e.Effect}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
