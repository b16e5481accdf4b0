// Package export moves workspaces in and out of the store as YAML.
// Exports carry requests and environments; captured responses, cookie
// jars and certificate material stay local.
package export

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/quiverhq/quiver/packages/store"
)

// FormatVersion tags exported documents so future readers can tell
// incompatible layouts apart.
const FormatVersion = 1

// Document is the YAML shape of one exported workspace.
type Document struct {
	Version      int           `yaml:"version"`
	Workspace    string        `yaml:"workspace"`
	Environments []Environment `yaml:"environments,omitempty"`
	Requests     []Request     `yaml:"requests,omitempty"`
}

type Environment struct {
	Name      string            `yaml:"name"`
	Variables map[string]string `yaml:"variables,omitempty"`
}

type Request struct {
	Name       string      `yaml:"name,omitempty"`
	Method     string      `yaml:"method"`
	URL        string      `yaml:"url"`
	Headers    []Header    `yaml:"headers,omitempty"`
	Parameters []Parameter `yaml:"parameters,omitempty"`
	Body       *Body       `yaml:"body,omitempty"`
}

type Header struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type Parameter struct {
	Name     string `yaml:"name"`
	Value    string `yaml:"value,omitempty"`
	Type     string `yaml:"type,omitempty"`
	FileName string `yaml:"fileName,omitempty"`
}

type Body struct {
	MimeType string      `yaml:"mimeType,omitempty"`
	Text     string      `yaml:"text,omitempty"`
	FileName string      `yaml:"fileName,omitempty"`
	Params   []Parameter `yaml:"params,omitempty"`
}

// Workspace serializes the workspace and its children to YAML.
func Workspace(ctx context.Context, st *store.Store, workspaceID string, w io.Writer) error {
	ws, err := st.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}

	doc := Document{Version: FormatVersion, Workspace: ws.Name}

	envs, err := st.ListEnvironments(ctx, ws.ID)
	if err != nil {
		return err
	}
	for _, env := range envs {
		doc.Environments = append(doc.Environments, Environment{
			Name:      env.Name,
			Variables: env.Variables,
		})
	}

	requests, err := st.ListRequests(ctx, ws.ID)
	if err != nil {
		return err
	}
	for _, req := range requests {
		doc.Requests = append(doc.Requests, exportRequest(req))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode workspace: %w", err)
	}
	return enc.Close()
}

// Import reads an exported document and creates the workspace and its
// children. It returns the new workspace.
func Import(ctx context.Context, st *store.Store, r io.Reader) (*store.Workspace, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode workspace document: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}
	if doc.Workspace == "" {
		return nil, fmt.Errorf("document names no workspace")
	}

	ws := &store.Workspace{
		Meta: store.Meta{Type: store.TypeWorkspace},
		Name: doc.Workspace,
	}
	if err := st.Create(ctx, ws); err != nil {
		return nil, err
	}

	for _, env := range doc.Environments {
		stored := &store.Environment{
			Meta:      store.Meta{Type: store.TypeEnvironment, ParentID: ws.ID},
			Name:      env.Name,
			Variables: env.Variables,
		}
		if err := st.Create(ctx, stored); err != nil {
			return nil, err
		}
	}

	for _, req := range doc.Requests {
		if err := st.Create(ctx, importRequest(&req, ws.ID)); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

func exportRequest(req *store.Request) Request {
	out := Request{
		Name:   req.Name,
		Method: req.Method,
		URL:    req.URL,
	}
	for _, h := range req.Headers {
		out.Headers = append(out.Headers, Header(h))
	}
	for _, p := range req.Parameters {
		out.Parameters = append(out.Parameters, Parameter(p))
	}
	if req.Body.MimeType != "" || req.Body.Text != "" || req.Body.FileName != "" || len(req.Body.Params) > 0 {
		body := Body{
			MimeType: req.Body.MimeType,
			Text:     req.Body.Text,
			FileName: req.Body.FileName,
		}
		for _, p := range req.Body.Params {
			body.Params = append(body.Params, Parameter(p))
		}
		out.Body = &body
	}
	return out
}

func importRequest(req *Request, parentID string) *store.Request {
	out := &store.Request{
		Meta:   store.Meta{Type: store.TypeRequest, ParentID: parentID},
		Name:   req.Name,
		Method: req.Method,
		URL:    req.URL,
	}
	for _, h := range req.Headers {
		out.Headers = append(out.Headers, store.Header(h))
	}
	for _, p := range req.Parameters {
		out.Parameters = append(out.Parameters, store.Parameter(p))
	}
	if req.Body != nil {
		out.Body = store.Body{
			MimeType: req.Body.MimeType,
			Text:     req.Body.Text,
			FileName: req.Body.FileName,
		}
		for _, p := range req.Body.Params {
			out.Body.Params = append(out.Body.Params, store.Parameter(p))
		}
	}
	return out
}
