// Package store persists quiver workspace documents in SQLite. Every
// document lives in a single table keyed by a prefixed uuid, with the
// typed payload serialized as JSON alongside the lineage columns used
// for ancestor walks.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no document matches the requested
// type and id.
var ErrNotFound = errors.New("store: document not found")

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	parent_id   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	modified_at TIMESTAMP NOT NULL,
	data        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);
CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent_id);
`

// Store is a SQLite-backed document store.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Open opens (creating if needed) the database at path. Use ":memory:"
// for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, timeout: 30 * time.Second}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// NewID returns a fresh id for the given document type.
func NewID(t DocType) string {
	prefix, ok := idPrefixes[t]
	if !ok {
		prefix = "doc"
	}
	return prefix + "_" + uuid.NewString()
}

// Create assigns an id (unless already set) and timestamps, then
// inserts the document.
func (s *Store) Create(ctx context.Context, doc Doc) error {
	m := doc.DocMeta()
	if m.Type == "" {
		return fmt.Errorf("store: document has no type")
	}
	if m.ID == "" {
		m.ID = NewID(m.Type)
	}
	now := time.Now().UTC()
	m.Created = now
	m.Modified = now

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", m.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, type, parent_id, created_at, modified_at, data) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Type), m.ParentID, m.Created, m.Modified, string(data))
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", m.Type, err)
	}
	return nil
}

// Update bumps the modified timestamp and replaces the stored payload.
func (s *Store) Update(ctx context.Context, doc Doc) error {
	m := doc.DocMeta()
	if m.ID == "" {
		return fmt.Errorf("store: update of unsaved document")
	}
	m.Modified = time.Now().UTC()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", m.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET parent_id = ?, modified_at = ?, data = ? WHERE id = ? AND type = ?`,
		m.ParentID, m.Modified, string(data), m.ID, string(m.Type))
	if err != nil {
		return fmt.Errorf("store: update %s: %w", m.Type, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// get loads one document of the given type into dest.
func (s *Store) get(ctx context.Context, t DocType, id string, dest Doc) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE id = ? AND type = ?`, id, string(t)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: get %s %s: %w", t, id, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("store: unmarshal %s %s: %w", t, id, err)
	}
	return nil
}

// listByType loads every document of one type, oldest first, calling
// next for each raw payload.
func (s *Store) listByType(ctx context.Context, t DocType, next func(data []byte) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE type = ? ORDER BY created_at`, string(t))
	if err != nil {
		return fmt.Errorf("store: list %s: %w", t, err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("store: scan %s: %w", t, err)
		}
		if err := next([]byte(data)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetWorkspace loads a workspace by id.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	w := &Workspace{}
	if err := s.get(ctx, TypeWorkspace, id, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GetEnvironment loads an environment by id.
func (s *Store) GetEnvironment(ctx context.Context, id string) (*Environment, error) {
	e := &Environment{}
	if err := s.get(ctx, TypeEnvironment, id, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetRequest loads a request by id.
func (s *Store) GetRequest(ctx context.Context, id string) (*Request, error) {
	r := &Request{}
	if err := s.get(ctx, TypeRequest, id, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetCookieJar loads a cookie jar by id.
func (s *Store) GetCookieJar(ctx context.Context, id string) (*CookieJar, error) {
	j := &CookieJar{}
	if err := s.get(ctx, TypeCookieJar, id, j); err != nil {
		return nil, err
	}
	return j, nil
}

// GetResponse loads a response by id.
func (s *Store) GetResponse(ctx context.Context, id string) (*Response, error) {
	r := &Response{}
	if err := s.get(ctx, TypeResponse, id, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetSettings returns the singleton settings document, creating it with
// defaults on first access.
func (s *Store) GetSettings(ctx context.Context) (*Settings, error) {
	var found *Settings
	err := s.listByType(ctx, TypeSettings, func(data []byte) error {
		if found != nil {
			return nil
		}
		st := &Settings{}
		if err := json.Unmarshal(data, st); err != nil {
			return err
		}
		found = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found != nil {
		return found, nil
	}

	defaults := &Settings{
		Meta:            Meta{Type: TypeSettings},
		FollowRedirects: true,
		ValidateSSL:     true,
	}
	if err := s.Create(ctx, defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

// ListWorkspaces returns every workspace, oldest first.
func (s *Store) ListWorkspaces(ctx context.Context) ([]*Workspace, error) {
	var out []*Workspace
	err := s.listByType(ctx, TypeWorkspace, func(data []byte) error {
		w := &Workspace{}
		if err := json.Unmarshal(data, w); err != nil {
			return err
		}
		out = append(out, w)
		return nil
	})
	return out, err
}

// ListRequests returns the requests under the given parent (a workspace
// or request group), oldest first.
func (s *Store) ListRequests(ctx context.Context, parentID string) ([]*Request, error) {
	var out []*Request
	err := s.listByType(ctx, TypeRequest, func(data []byte) error {
		r := &Request{}
		if err := json.Unmarshal(data, r); err != nil {
			return err
		}
		if parentID == "" || r.ParentID == parentID {
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// ListEnvironments returns the environments under the given parent,
// oldest first. An empty parentID lists every environment.
func (s *Store) ListEnvironments(ctx context.Context, parentID string) ([]*Environment, error) {
	var out []*Environment
	err := s.listByType(ctx, TypeEnvironment, func(data []byte) error {
		e := &Environment{}
		if err := json.Unmarshal(data, e); err != nil {
			return err
		}
		if parentID == "" || e.ParentID == parentID {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// CertificatesForWorkspace returns the client certificates owned by the
// workspace, oldest first.
func (s *Store) CertificatesForWorkspace(ctx context.Context, workspaceID string) ([]*ClientCertificate, error) {
	var out []*ClientCertificate
	err := s.listByType(ctx, TypeClientCertificate, func(data []byte) error {
		c := &ClientCertificate{}
		if err := json.Unmarshal(data, c); err != nil {
			return err
		}
		if c.ParentID == workspaceID {
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// ResponsesForRequest returns the captured responses for a request,
// oldest first.
func (s *Store) ResponsesForRequest(ctx context.Context, requestID string) ([]*Response, error) {
	var out []*Response
	err := s.listByType(ctx, TypeResponse, func(data []byte) error {
		r := &Response{}
		if err := json.Unmarshal(data, r); err != nil {
			return err
		}
		if r.ParentID == requestID {
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Ancestors walks the parent chain of doc, nearest first. The walk
// stops at the first document without a parent.
func (s *Store) Ancestors(ctx context.Context, doc Doc) ([]Meta, error) {
	var chain []Meta
	parentID := doc.DocMeta().ParentID
	for parentID != "" {
		ctxq, cancel := context.WithTimeout(ctx, s.timeout)
		var (
			id, typ, parent string
			created, mod    time.Time
		)
		err := s.db.QueryRowContext(ctxq,
			`SELECT id, type, parent_id, created_at, modified_at FROM documents WHERE id = ?`,
			parentID).Scan(&id, &typ, &parent, &created, &mod)
		cancel()
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: ancestors of %s: %w", doc.DocMeta().ID, err)
		}
		chain = append(chain, Meta{ID: id, Type: DocType(typ), ParentID: parent, Created: created, Modified: mod})
		parentID = parent
	}
	return chain, nil
}

// WorkspaceFor resolves the workspace owning doc by walking its
// ancestor chain.
func (s *Store) WorkspaceFor(ctx context.Context, doc Doc) (*Workspace, error) {
	chain, err := s.Ancestors(ctx, doc)
	if err != nil {
		return nil, err
	}
	for _, m := range chain {
		if m.Type == TypeWorkspace {
			return s.GetWorkspace(ctx, m.ID)
		}
	}
	return nil, ErrNotFound
}
