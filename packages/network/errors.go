package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrCancelled reports that the in-flight send was aborted through the
// cancellation handle. Callers can distinguish it from transport
// failures with errors.Is.
var ErrCancelled = errors.New("network: send cancelled")

// BuildError wraps a failure while assembling the transport config
// (for example an unreadable file body). Build failures resolve to a
// captured response instead of propagating to the caller.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("network: building request config: %v", e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// TransportError is a classified failure from one dispatched exchange.
// Code carries the errno-style name used for classification;
// BytesParsed is non-zero when the response broke off mid-body.
type TransportError struct {
	Code        string
	BytesParsed int64
	Err         error
}

func (e *TransportError) Error() string {
	if e.BytesParsed > 0 {
		return fmt.Sprintf("%v (code=%s, bytesParsed=%d)", e.Err, e.Code, e.BytesParsed)
	}
	if e.Code != "" {
		return fmt.Sprintf("%v (code=%s)", e.Err, e.Code)
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Reachability reports whether the failure means the host could not be
// reached at all, as opposed to a protocol-level failure. Only
// reachability failures are eligible for the single IPv4-fallback
// retry.
func (e *TransportError) Reachability() bool {
	switch e.Code {
	case "ECONNREFUSED", "EHOSTUNREACH", "ENETUNREACH":
		return true
	}
	return false
}

// errnoNames maps the syscall errors we classify to their conventional
// names.
var errnoNames = map[syscall.Errno]string{
	syscall.ECONNREFUSED: "ECONNREFUSED",
	syscall.ECONNRESET:   "ECONNRESET",
	syscall.ECONNABORTED: "ECONNABORTED",
	syscall.EHOSTUNREACH: "EHOSTUNREACH",
	syscall.ENETUNREACH:  "ENETUNREACH",
	syscall.ETIMEDOUT:    "ETIMEDOUT",
	syscall.EPIPE:        "EPIPE",
}

// classifyError wraps a raw dispatch error into a *TransportError,
// passing context cancellation through untouched so the executor can
// tell an abort from a network failure.
func classifyError(err error, bytesParsed int64) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	code := ""
	var errno syscall.Errno
	if errors.As(err, &errno) {
		code = errnoNames[errno]
	}

	var dnsErr *net.DNSError
	if code == "" && errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			code = "ENOTFOUND"
		} else {
			code = "EAI_AGAIN"
		}
	}

	if code == "" {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			code = "ETIMEDOUT"
		}
	}

	return &TransportError{Code: code, BytesParsed: bytesParsed, Err: err}
}
