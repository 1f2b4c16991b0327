package prompt

import (
	"bytes"
	"sort"
	"text/template"
	"text/template/parse"

	"github.com/m-mizutani/goerr/v2"
)

// Template is a parsed prompt template together with the top-level
// placeholders it references.
type Template struct {
	name         string
	tmpl         *template.Template
	placeholders []string
}

// ParseTemplate parses text as a text/template. Missing map keys are an
// execution error rather than "<no value>".
func ParseTemplate(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse prompt template", goerr.Value("template", name))
	}

	seen := make(map[string]struct{})
	if tmpl.Tree != nil {
		collectFields(tmpl.Tree.Root, seen)
	}
	placeholders := make([]string, 0, len(seen))
	for k := range seen {
		placeholders = append(placeholders, k)
	}
	sort.Strings(placeholders)

	return &Template{name: name, tmpl: tmpl, placeholders: placeholders}, nil
}

func (t *Template) Name() string { return t.name }

// Placeholders returns the sorted top-level keys the template reads from dot.
func (t *Template) Placeholders() []string {
	out := make([]string, len(t.placeholders))
	copy(out, t.placeholders)
	return out
}

// Render executes the template against data. Every placeholder must be bound.
func (t *Template) Render(data Data) (string, error) {
	var missing []string
	for _, p := range t.placeholders {
		if _, ok := data[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return "", &RenderError{Template: t.name, Missing: missing}
	}

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, map[string]any(data)); err != nil {
		return "", &RenderError{Template: t.name, Err: err}
	}
	return buf.String(), nil
}

// collectFields walks the parse tree and records the first identifier of
// every field evaluated against the root dot. Bodies of range and with
// rebind dot and are skipped.
func collectFields(node parse.Node, seen map[string]struct{}) {
	switch n := node.(type) {
	case nil:
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			collectFields(c, seen)
		}
	case *parse.ActionNode:
		collectFields(n.Pipe, seen)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, c := range n.Cmds {
			collectFields(c, seen)
		}
	case *parse.CommandNode:
		for _, a := range n.Args {
			collectFields(a, seen)
		}
	case *parse.FieldNode:
		if len(n.Ident) > 0 {
			seen[n.Ident[0]] = struct{}{}
		}
	case *parse.ChainNode:
		collectFields(n.Node, seen)
	case *parse.IfNode:
		collectFields(n.Pipe, seen)
		collectFields(n.List, seen)
		collectFields(n.ElseList, seen)
	case *parse.RangeNode:
		collectFields(n.Pipe, seen)
		collectFields(n.ElseList, seen)
	case *parse.WithNode:
		collectFields(n.Pipe, seen)
		collectFields(n.ElseList, seen)
	case *parse.TemplateNode:
		collectFields(n.Pipe, seen)
	}
}
