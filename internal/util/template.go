package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"text/template"
	"text/template/parse"
)

// RenderTemplate replaces template variables using Go's text/template package.
// Field references missing from state render as empty strings; state itself
// is never modified.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := template.New("plugin").Funcs(template.FuncMap{
		"default": func(defaultVal any, val any) any {
			if val == nil || val == "" {
				return defaultVal
			}
			return val
		},
		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"urlquery": func(v any) string { return url.QueryEscape(fmt.Sprint(v)) },
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}).Parse(text)
	if err != nil {
		return "", err
	}

	filled := maps.Clone(state)
	if filled == nil {
		filled = map[string]any{}
	}
	fillNode(tmpl.Root, filled)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, filled); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fillNode walks the parse tree and fills every field path evaluated against
// the top-level dot. Range and with bodies rebind dot and are skipped.
func fillNode(node parse.Node, state map[string]any) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			fillNode(c, state)
		}
	case *parse.ActionNode:
		fillPipe(n.Pipe, state)
	case *parse.IfNode:
		fillPipe(n.Pipe, state)
		fillNode(n.List, state)
		fillNode(n.ElseList, state)
	case *parse.RangeNode:
		fillPipe(n.Pipe, state)
		fillNode(n.ElseList, state)
	case *parse.WithNode:
		fillPipe(n.Pipe, state)
		fillNode(n.ElseList, state)
	case *parse.TemplateNode:
		fillPipe(n.Pipe, state)
	}
}

func fillPipe(pipe *parse.PipeNode, state map[string]any) {
	if pipe == nil {
		return
	}
	for _, cmd := range pipe.Cmds {
		for _, arg := range cmd.Args {
			switch a := arg.(type) {
			case *parse.FieldNode:
				fillPath(state, a.Ident)
			case *parse.PipeNode:
				fillPipe(a, state)
			}
		}
	}
}

// fillPath sets a missing or nil leaf to "" and creates missing
// intermediate maps. Nested maps on the path are cloned before writing.
func fillPath(m map[string]any, path []string) {
	for i, key := range path {
		last := i == len(path)-1
		v, ok := m[key]
		if !ok {
			if last {
				m[key] = ""
				return
			}
			child := map[string]any{}
			m[key] = child
			m = child
			continue
		}
		if last {
			if v == nil {
				m[key] = ""
			}
			return
		}
		child, isMap := v.(map[string]any)
		if !isMap {
			return
		}
		child = maps.Clone(child)
		m[key] = child
		m = child
	}
}
