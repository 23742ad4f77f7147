// Package templater renders text templates that use [[ and ]] as action
// delimiters so they do not collide with WGSL attribute and array syntax.
package templater

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
	"text/template/parse"
)

const (
	leftDelim  = "[["
	rightDelim = "]]"
)

// ParseError is returned by [Templater.Format] when the template source is malformed,
// such as an unclosed [[ action.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "templater: parse: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// KeyNotFoundError is returned by [Templater.Format] when the template references
// a key that was never inserted.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return "templater: key not found: " + e.Key
}

// Templater holds the values substituted into a template. The zero value is ready to use.
type Templater struct {
	vals map[string]any
}

// New returns an empty Templater.
func New() *Templater {
	return &Templater{vals: make(map[string]any)}
}

// Insert sets the value rendered in place of [[.key]] and returns the Templater for chaining.
func (t *Templater) Insert(key string, value any) *Templater {
	if t.vals == nil {
		t.vals = make(map[string]any)
	}
	t.vals[key] = value
	return t
}

// Format renders src with the inserted values. Rendering the same source with the
// same values always yields identical text.
func (t *Templater) Format(src string) (string, error) {
	tmpl, err := template.New("").Delims(leftDelim, rightDelim).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", &ParseError{Err: err}
	}
	if tmpl.Tree != nil {
		if key, ok := t.missingKey(tmpl.Tree.Root); ok {
			return "", &KeyNotFoundError{Key: key}
		}
	}
	var sb strings.Builder
	sb.Grow(len(src))
	err = tmpl.Execute(&sb, t.vals)
	if err != nil {
		var execErr template.ExecError
		if errors.As(err, &execErr) {
			return "", fmt.Errorf("templater: %w", execErr.Err)
		}
		return "", fmt.Errorf("templater: %w", err)
	}
	return sb.String(), nil
}

// MustFormat is like Format but panics on error.
func (t *Templater) MustFormat(src string) string {
	s, err := t.Format(src)
	if err != nil {
		panic(err)
	}
	return s
}

// missingKey walks the actions evaluated with the root value as dot and
// reports the first field that was not inserted. Bodies of range and with
// actions rebind dot, so only their pipelines are checked.
func (t *Templater) missingKey(node parse.Node) (string, bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return "", false
		}
		for _, child := range n.Nodes {
			if key, ok := t.missingKey(child); ok {
				return key, true
			}
		}
	case *parse.ActionNode:
		return t.missingInPipe(n.Pipe)
	case *parse.IfNode:
		if key, ok := t.missingInPipe(n.Pipe); ok {
			return key, true
		}
		if key, ok := t.missingKey(n.List); ok {
			return key, true
		}
		if n.ElseList != nil {
			return t.missingKey(n.ElseList)
		}
	case *parse.RangeNode:
		return t.missingInPipe(n.Pipe)
	case *parse.WithNode:
		return t.missingInPipe(n.Pipe)
	}
	return "", false
}

func (t *Templater) missingInPipe(pipe *parse.PipeNode) (string, bool) {
	if pipe == nil {
		return "", false
	}
	for _, cmd := range pipe.Cmds {
		for _, arg := range cmd.Args {
			field, ok := arg.(*parse.FieldNode)
			if !ok || len(field.Ident) == 0 {
				continue
			}
			if _, ok := t.vals[field.Ident[0]]; !ok {
				return field.Ident[0], true
			}
		}
	}
	return "", false
}
