package network

import (
	"time"

	"github.com/quiverhq/quiver/packages/store"
)

// ResolvedRequest is a request after template substitution, ready for
// transport. Header order is preserved; entries without a name are
// skipped when the transport config is built.
type ResolvedRequest struct {
	RequestID   string
	Method      string
	URL         string
	Headers     []store.Header
	Parameters  []store.Parameter
	Body        store.Body
	CookieJarID string
}

// TransportConfig is the ephemeral description of one HTTP exchange.
// It is built fresh for every attempt and never persisted.
type TransportConfig struct {
	Method          string
	URL             string
	Headers         []store.Header
	Body            []byte
	Timeout         time.Duration
	FollowRedirects bool
	MaxRedirects    int
	ValidateSSL     bool
	ProxyURL        string

	// ServerName pins TLS verification to the pre-substitution
	// hostname once DNS resolution has rewritten the URL host.
	ServerName string

	// ClientCert/ClientKey hold PEM material; PFX holds a PKCS#12
	// bundle. At most one of the two forms is set.
	ClientCert []byte
	ClientKey  []byte
	PFX        []byte
	Passphrase string
}

// TransportResult is the raw outcome of one dispatched exchange.
type TransportResult struct {
	StatusCode    int
	StatusMessage string
	Headers       []store.Header
	Body          []byte
	ElapsedTime   time.Duration
	BytesRead     int64
}
