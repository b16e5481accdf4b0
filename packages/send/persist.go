package send

import (
	"context"

	"github.com/quiverhq/quiver/packages/store"
)

// Persister writes captured responses and cookie jar updates through
// the document store. It satisfies both network.ResponsePersister and
// network.JarStore.
type Persister struct {
	store *store.Store
}

// NewPersister creates a persister over the store.
func NewPersister(st *store.Store) *Persister {
	return &Persister{store: st}
}

// Persist writes the response patch as a new document under its parent
// request. The request document itself is never touched.
func (p *Persister) Persist(ctx context.Context, patch *store.Response) (*store.Response, error) {
	if err := p.store.Create(ctx, patch); err != nil {
		return nil, err
	}
	return patch, nil
}

// UpdateCookieJar writes back a jar after inbound cookie coordination.
func (p *Persister) UpdateCookieJar(ctx context.Context, jar *store.CookieJar) error {
	return p.store.Update(ctx, jar)
}
