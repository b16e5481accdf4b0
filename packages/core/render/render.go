// Package render substitutes {{ variable }} expressions in stored
// requests using an environment's variables, producing a resolved
// request ready for the network layer. Unlike a best-effort template
// engine, an unresolved expression here is a hard failure: the send
// pipeline turns it into a captured response rather than dispatching a
// half-rendered request.
package render

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/quiverhq/quiver/packages/network"
	"github.com/quiverhq/quiver/packages/store"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Error reports an expression that could not be resolved.
type Error struct {
	Expr string
}

func (e *Error) Error() string {
	return fmt.Sprintf("render: unresolved expression: %s", e.Expr)
}

// Renderer resolves template expressions against a variable set.
type Renderer struct {
	variables map[string]string
}

// NewRenderer creates a renderer over the given variables.
func NewRenderer(variables map[string]string) *Renderer {
	if variables == nil {
		variables = make(map[string]string)
	}
	return &Renderer{variables: variables}
}

// Resolve substitutes every {{ expr }} in input. Expressions starting
// with $ read the OS environment. The first unresolved expression
// aborts with an *Error.
func (r *Renderer) Resolve(input string) (string, error) {
	var failed *Error
	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		if failed != nil {
			return match
		}
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if strings.HasPrefix(expr, "$") {
			if val, ok := os.LookupEnv(expr[1:]); ok {
				return val
			}
			failed = &Error{Expr: expr}
			return match
		}

		if val, ok := r.variables[expr]; ok {
			return val
		}
		failed = &Error{Expr: expr}
		return match
	})
	if failed != nil {
		return "", failed
	}
	return out, nil
}

// RenderRequest renders a stored request against an environment into a
// ResolvedRequest. A nil environment renders with no variables, so any
// template expression fails.
func RenderRequest(req *store.Request, env *store.Environment) (*network.ResolvedRequest, error) {
	var vars map[string]string
	if env != nil {
		vars = env.Variables
	}
	r := NewRenderer(vars)

	u, err := r.Resolve(req.URL)
	if err != nil {
		return nil, err
	}

	resolved := &network.ResolvedRequest{
		RequestID:   req.ID,
		Method:      req.Method,
		URL:         u,
		CookieJarID: req.CookieJarID,
	}

	for _, h := range req.Headers {
		name, err := r.Resolve(h.Name)
		if err != nil {
			return nil, err
		}
		value, err := r.Resolve(h.Value)
		if err != nil {
			return nil, err
		}
		resolved.Headers = append(resolved.Headers, store.Header{Name: name, Value: value})
	}

	resolved.Parameters, err = renderParams(r, req.Parameters)
	if err != nil {
		return nil, err
	}

	resolved.Body.MimeType = req.Body.MimeType
	if resolved.Body.Text, err = r.Resolve(req.Body.Text); err != nil {
		return nil, err
	}
	if resolved.Body.FileName, err = r.Resolve(req.Body.FileName); err != nil {
		return nil, err
	}
	if resolved.Body.Params, err = renderParams(r, req.Body.Params); err != nil {
		return nil, err
	}

	return resolved, nil
}

func renderParams(r *Renderer, params []store.Parameter) ([]store.Parameter, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make([]store.Parameter, 0, len(params))
	for _, p := range params {
		name, err := r.Resolve(p.Name)
		if err != nil {
			return nil, err
		}
		value, err := r.Resolve(p.Value)
		if err != nil {
			return nil, err
		}
		fileName, err := r.Resolve(p.FileName)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Parameter{Name: name, Value: value, Type: p.Type, FileName: fileName})
	}
	return out, nil
}
