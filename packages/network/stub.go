package network

import (
	"context"
	"sync"
)

// StubTransport is a configurable Transport for tests. Queued outcomes
// are consumed in order; the last one sticks for any further calls.
type StubTransport struct {
	mu       sync.Mutex
	outcomes []stubOutcome
	calls    []*TransportConfig

	// Hook, when set, runs for every call before an outcome is
	// chosen. It can block to simulate a slow exchange.
	Hook func(ctx context.Context, cfg *TransportConfig) error
}

type stubOutcome struct {
	result *TransportResult
	err    error
}

// NewStubTransport creates an empty stub.
func NewStubTransport() *StubTransport {
	return &StubTransport{}
}

// StubResult queues a successful outcome.
func (s *StubTransport) StubResult(result *TransportResult) *StubTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, stubOutcome{result: result})
	return s
}

// StubError queues a failed outcome.
func (s *StubTransport) StubError(err error) *StubTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, stubOutcome{err: err})
	return s
}

// Calls returns the configs seen so far.
func (s *StubTransport) Calls() []*TransportConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*TransportConfig, len(s.calls))
	copy(out, s.calls)
	return out
}

// RoundTrip implements Transport.
func (s *StubTransport) RoundTrip(ctx context.Context, cfg *TransportConfig) (*TransportResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, cfg)
	hook := s.Hook
	var outcome stubOutcome
	if len(s.outcomes) > 0 {
		outcome = s.outcomes[0]
		if len(s.outcomes) > 1 {
			s.outcomes = s.outcomes[1:]
		}
	}
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if outcome.err != nil {
		return nil, classifyError(outcome.err, 0)
	}
	if outcome.result != nil {
		return outcome.result, nil
	}
	return &TransportResult{StatusCode: 200, StatusMessage: "OK"}, nil
}
