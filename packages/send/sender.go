// Package send orchestrates one logical send: load the stored request,
// render it against an environment, resolve the owning workspace for
// client certificates, and hand the resolved request to the network
// executor. Render failures are captured as responses with a
// distinguished status code instead of propagating to the caller.
package send

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/quiverhq/quiver/packages/core/render"
	"github.com/quiverhq/quiver/packages/network"
	"github.com/quiverhq/quiver/packages/store"
)

const (
	// DefaultSettleDelay absorbs editor debounce before a send picks
	// up the request document. It accommodates the UI, not the
	// protocol.
	DefaultSettleDelay = 100 * time.Millisecond

	// StatusCodeRenderFailure marks responses captured for requests
	// that never rendered.
	StatusCodeRenderFailure = 555

	// StatusMessageRenderFailure is its status message.
	StatusMessageRenderFailure = "Render Failed"
)

// Sender runs logical sends against a document store.
type Sender struct {
	store       *store.Store
	persister   *Persister
	executor    *network.Executor
	transport   network.Transport
	settleDelay time.Duration
	logger      zerolog.Logger

	settingsOverride func(*store.Settings)
}

// Option configures a Sender.
type Option func(*Sender)

// WithSettleDelay overrides the pre-send settle delay (tests use 0).
func WithSettleDelay(d time.Duration) Option {
	return func(s *Sender) { s.settleDelay = d }
}

// WithLogger sets the sender's logger and propagates it to the
// executor.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sender) { s.logger = logger }
}

// WithTransport replaces the executor's transport (used by tests).
func WithTransport(t network.Transport) Option {
	return func(s *Sender) { s.transport = t }
}

// WithSettingsOverride registers a hook that adjusts the loaded
// settings before each send. The stored document is not modified.
func WithSettingsOverride(fn func(*store.Settings)) Option {
	return func(s *Sender) { s.settingsOverride = fn }
}

// NewSender creates a sender over the store.
func NewSender(st *store.Store, opts ...Option) *Sender {
	s := &Sender{
		store:       st,
		persister:   NewPersister(st),
		transport:   network.NewHTTPTransport(),
		settleDelay: DefaultSettleDelay,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.executor = network.NewExecutor(s.persister,
		network.WithTransport(s.transport), network.WithLogger(s.logger))
	return s
}

// Cancel aborts the most recently dispatched send.
func (s *Sender) Cancel() {
	s.executor.Cancel()
}

// Send executes the stored request against the environment and returns
// the persisted response. Like the executor, it returns a nil error
// for outcomes that resolve to a captured response (render and config
// build failures) and a non-nil error for terminal transport failures
// and cancellation — the response is persisted in every case. Errors
// loading documents are returned without capturing anything.
func (s *Sender) Send(ctx context.Context, requestID, environmentID string) (*store.Response, error) {
	if s.settleDelay > 0 {
		select {
		case <-time.After(s.settleDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if s.settingsOverride != nil {
		s.settingsOverride(settings)
	}

	var env *store.Environment
	if environmentID != "" {
		env, err = s.store.GetEnvironment(ctx, environmentID)
		if err != nil {
			return nil, err
		}
	}

	resolved, err := render.RenderRequest(req, env)
	if err != nil {
		s.logger.Warn().Err(err).Str("request", requestID).Msg("request failed to render")
		return s.persister.Persist(ctx, &store.Response{
			Meta:          store.Meta{Type: store.TypeResponse, ParentID: req.ID},
			URL:           req.URL,
			StatusCode:    StatusCodeRenderFailure,
			StatusMessage: StatusMessageRenderFailure,
			Error:         err.Error(),
		})
	}

	in := network.SendInput{
		Request:  resolved,
		Settings: settings,
		Jars:     s.persister,
	}

	workspace, err := s.store.WorkspaceFor(ctx, req)
	switch {
	case err == nil:
		in.Certificates, err = s.store.CertificatesForWorkspace(ctx, workspace.ID)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, store.ErrNotFound):
		// A request outside any workspace sends without certificates.
	default:
		return nil, err
	}

	if resolved.CookieJarID != "" {
		jar, err := s.store.GetCookieJar(ctx, resolved.CookieJarID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		in.Jar = jar
	}

	return s.executor.Send(ctx, in)
}
