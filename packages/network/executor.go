// Package network executes fully-resolved requests over the wire and
// captures either a response or a classified failure. The pipeline
// runs per attempt: build the transport config, select client TLS
// material and proxy, apply outbound cookies, substitute the DNS
// host, dispatch, then classify the outcome. A reachability failure
// earns exactly one retry with IPv4 forced; everything else is
// terminal. Every logical send persists exactly one response.
package network

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/quiverhq/quiver/packages/store"
)

// Status messages written on non-success outcomes.
const (
	StatusMessageError     = "Error"
	StatusMessageCancelled = "Cancelled"
)

// ResponsePersister writes a captured response patch under its parent
// request and returns the stored record.
type ResponsePersister interface {
	Persist(ctx context.Context, patch *store.Response) (*store.Response, error)
}

// JarStore persists cookie jar updates after inbound coordination.
type JarStore interface {
	UpdateCookieJar(ctx context.Context, jar *store.CookieJar) error
}

// SendInput carries everything one logical send needs.
type SendInput struct {
	Request      *ResolvedRequest
	Settings     *store.Settings
	Certificates []*store.ClientCertificate

	// Jar is the request's cookie jar, nil when it has none. Jars,
	// when set, receives the jar back after inbound cookies applied.
	Jar  *store.CookieJar
	Jars JarStore

	Overrides []Override
}

// Executor orchestrates the send pipeline.
type Executor struct {
	transport Transport
	dns       *DNSResolver
	cookies   *CookieCoordinator
	cancel    *CancellationController
	persister ResponsePersister
	logger    zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTransport replaces the production transport (used by tests).
func WithTransport(t Transport) ExecutorOption {
	return func(e *Executor) { e.transport = t }
}

// WithLogger sets the executor's logger.
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
		e.cookies = NewCookieCoordinator(logger)
	}
}

// NewExecutor creates an executor persisting outcomes through
// persister.
func NewExecutor(persister ResponsePersister, opts ...ExecutorOption) *Executor {
	e := &Executor{
		transport: NewHTTPTransport(),
		dns:       NewDNSResolver(),
		cookies:   NewCookieCoordinator(zerolog.Nop()),
		cancel:    NewCancellationController(),
		persister: persister,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cancel aborts the most recently dispatched send. Earlier in-flight
// sends are no longer reachable once a newer dispatch has been armed.
func (e *Executor) Cancel() {
	e.cancel.Cancel()
}

// Send runs the pipeline for one logical send. The returned response
// is the persisted record. The error is nil on success and on config
// build failures (which resolve to a captured response), ErrCancelled
// on an aborted dispatch, and the classified transport error on
// terminal failures — in those cases the response is persisted too.
func (e *Executor) Send(ctx context.Context, in SendInput) (*store.Response, error) {
	req := in.Request

	for attempt := 0; ; attempt++ {
		forceIPv4 := attempt > 0

		cfg, err := BuildConfig(req, in.Settings, in.Overrides...)
		if err != nil {
			// Build failures resolve to a captured response and are
			// never retried.
			return e.persist(ctx, req, &store.Response{
				URL:           req.URL,
				StatusMessage: StatusMessageError,
				Error:         err.Error(),
			})
		}

		originalURL, err := url.Parse(cfg.URL)
		if err != nil {
			return e.persist(ctx, req, &store.Response{
				URL:           cfg.URL,
				StatusMessage: StatusMessageError,
				Error:         err.Error(),
			})
		}
		display := originalURL.String()

		if cert := SelectCertificate(originalURL.Hostname(), TargetPort(originalURL), in.Certificates); cert != nil {
			e.logger.Debug().Str("host", cert.Host).Msg("using client certificate")
			applyCertificate(cfg, cert)
		}

		if in.Jar != nil {
			if err := e.cookies.ApplyOutbound(cfg, in.Jar, originalURL); err != nil {
				return e.persist(ctx, req, &store.Response{
					URL:           display,
					StatusMessage: StatusMessageError,
					Error:         err.Error(),
				})
			}
		}

		substituted, err := e.dns.SubstituteHost(ctx, cfg.URL, forceIPv4)
		if err == nil {
			// Dispatch against the literal IP, but keep verification
			// and the captured URL on the human-readable host.
			cfg.ServerName = originalURL.Hostname()
			cfg.URL = substituted

			dispatchCtx, release := e.cancel.Arm(ctx)
			dispatchStart := time.Now()
			var result *TransportResult
			result, err = e.transport.RoundTrip(dispatchCtx, cfg)
			release()

			if err == nil {
				return e.success(ctx, in, display, result)
			}

			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				persisted, perr := e.persist(ctx, req, &store.Response{
					URL:           display,
					StatusMessage: StatusMessageCancelled,
					ElapsedTime:   time.Since(dispatchStart),
					Error:         "request was cancelled",
				})
				if perr != nil {
					return nil, perr
				}
				return persisted, ErrCancelled
			}
		}

		var terr *TransportError
		if errors.As(err, &terr) && terr.Reachability() && !forceIPv4 {
			e.logger.Debug().
				Str("code", terr.Code).
				Str("url", display).
				Msg("reachability failure, retrying with IPv4 forced")
			continue
		}

		persisted, perr := e.persist(ctx, req, &store.Response{
			URL:           display,
			StatusMessage: StatusMessageError,
			Error:         err.Error(),
		})
		if perr != nil {
			return nil, perr
		}
		return persisted, err
	}
}

// success runs inbound cookie coordination and persists the captured
// response.
func (e *Executor) success(ctx context.Context, in SendInput, display string, result *TransportResult) (*store.Response, error) {
	if in.Jar != nil {
		originalURL, err := url.Parse(display)
		if err == nil {
			if applied := e.cookies.ApplyInbound(in.Jar, originalURL, result.Headers); applied > 0 && in.Jars != nil {
				if err := in.Jars.UpdateCookieJar(ctx, in.Jar); err != nil {
					e.logger.Error().Err(err).Str("jar", in.Jar.ID).Msg("persisting cookie jar")
				}
			}
		}
	}

	return e.persist(ctx, in.Request, &store.Response{
		URL:           display,
		StatusCode:    result.StatusCode,
		StatusMessage: result.StatusMessage,
		ContentType:   headerValue(result.Headers, "Content-Type"),
		Headers:       result.Headers,
		Body:          result.Body,
		BodyEncoding:  store.BodyEncodingBase64,
		ElapsedTime:   result.ElapsedTime,
		BytesRead:     result.BytesRead,
	})
}

// persist stamps the patch with its parent request and writes it.
func (e *Executor) persist(ctx context.Context, req *ResolvedRequest, patch *store.Response) (*store.Response, error) {
	patch.Type = store.TypeResponse
	patch.ParentID = req.RequestID
	return e.persister.Persist(ctx, patch)
}
