package network

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverhq/quiver/packages/store"
)

type memPersister struct {
	mu        sync.Mutex
	responses []*store.Response
}

func (p *memPersister) Persist(_ context.Context, patch *store.Response) (*store.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	patch.ID = fmt.Sprintf("res_%d", len(p.responses)+1)
	patch.Created = time.Now().UTC()
	patch.Modified = patch.Created
	p.responses = append(p.responses, patch)
	return patch, nil
}

func (p *memPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.responses)
}

type memJars struct {
	mu      sync.Mutex
	updates int
}

func (j *memJars) UpdateCookieJar(context.Context, *store.CookieJar) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.updates++
	return nil
}

func resolvedGET(url string) *ResolvedRequest {
	return &ResolvedRequest{RequestID: "req_1", Method: "GET", URL: url}
}

func TestExecutor_Success(t *testing.T) {
	stub := NewStubTransport().StubResult(&TransportResult{
		StatusCode:    200,
		StatusMessage: "OK",
		Headers:       []store.Header{{Name: "Content-Type", Value: "text/plain"}},
		Body:          []byte("hi"),
		ElapsedTime:   12 * time.Millisecond,
		BytesRead:     2,
	})
	persister := &memPersister{}
	e := NewExecutor(persister, WithTransport(stub))

	resp, err := e.Send(context.Background(), SendInput{Request: resolvedGET("http://127.0.0.1:9999/greet")})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK", resp.StatusMessage)
	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, "hi", string(resp.Body))
	assert.Equal(t, store.BodyEncodingBase64, resp.BodyEncoding)
	assert.Equal(t, int64(2), resp.BytesRead)
	assert.Equal(t, "http://127.0.0.1:9999/greet", resp.URL)
	assert.Equal(t, "req_1", resp.ParentID)
	assert.Equal(t, 1, persister.count())
	assert.Len(t, stub.Calls(), 1)
}

func TestExecutor_BuildFailureResolves(t *testing.T) {
	stub := NewStubTransport()
	persister := &memPersister{}
	e := NewExecutor(persister, WithTransport(stub))

	req := resolvedGET("http://127.0.0.1:9999/upload")
	req.Method = "POST"
	req.Body = store.Body{FileName: "/nonexistent/payload.bin"}

	resp, err := e.Send(context.Background(), SendInput{Request: req})

	// Resolved, not rejected: the failure is captured as a response.
	require.NoError(t, err)
	assert.Equal(t, StatusMessageError, resp.StatusMessage)
	assert.NotEmpty(t, resp.Error)
	assert.Zero(t, resp.ElapsedTime)
	assert.Equal(t, "req_1", resp.ParentID)
	assert.Equal(t, 1, persister.count())
	assert.Empty(t, stub.Calls(), "build failure must not dispatch")
}

func TestExecutor_ReachabilityRetriesOnceWithIPv4(t *testing.T) {
	stub := NewStubTransport().
		StubError(syscall.ECONNREFUSED).
		StubError(syscall.ECONNREFUSED)
	persister := &memPersister{}
	e := NewExecutor(persister, WithTransport(stub))

	resp, err := e.Send(context.Background(), SendInput{Request: resolvedGET("http://127.0.0.1:9999/")})

	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "ECONNREFUSED", terr.Code)

	assert.Len(t, stub.Calls(), 2, "exactly one retry")
	assert.Equal(t, 1, persister.count(), "one persisted response per logical send")
	assert.Equal(t, StatusMessageError, resp.StatusMessage)
}

func TestExecutor_ReachabilityThenSuccess(t *testing.T) {
	stub := NewStubTransport().
		StubError(syscall.ECONNREFUSED).
		StubResult(&TransportResult{StatusCode: 200, StatusMessage: "OK", BytesRead: 0})
	persister := &memPersister{}
	e := NewExecutor(persister, WithTransport(stub))

	resp, err := e.Send(context.Background(), SendInput{Request: resolvedGET("http://127.0.0.1:9999/")})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Len(t, stub.Calls(), 2)
	assert.Equal(t, 1, persister.count())
}

func TestExecutor_TerminalErrorNoRetry(t *testing.T) {
	stub := NewStubTransport().StubError(syscall.ECONNRESET)
	persister := &memPersister{}
	e := NewExecutor(persister, WithTransport(stub))

	resp, err := e.Send(context.Background(), SendInput{Request: resolvedGET("http://127.0.0.1:9999/")})

	require.Error(t, err)
	assert.Len(t, stub.Calls(), 1)
	assert.Equal(t, 1, persister.count())
	assert.Equal(t, StatusMessageError, resp.StatusMessage)
	assert.Contains(t, resp.Error, "ECONNRESET")
}

func TestExecutor_CancelDuringDispatch(t *testing.T) {
	stub := NewStubTransport()
	stub.Hook = func(ctx context.Context, _ *TransportConfig) error {
		<-ctx.Done()
		return ctx.Err()
	}
	persister := &memPersister{}
	e := NewExecutor(persister, WithTransport(stub))

	go func() {
		time.Sleep(30 * time.Millisecond)
		e.Cancel()
	}()

	resp, err := e.Send(context.Background(), SendInput{Request: resolvedGET("http://127.0.0.1:9999/slow")})

	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StatusMessageCancelled, resp.StatusMessage)
	assert.GreaterOrEqual(t, resp.ElapsedTime, time.Duration(0))
	assert.Equal(t, 1, persister.count())
}

func TestExecutor_InboundCookiesPersistJarOnce(t *testing.T) {
	stub := NewStubTransport().StubResult(&TransportResult{
		StatusCode:    200,
		StatusMessage: "OK",
		Headers: []store.Header{
			{Name: "Set-Cookie", Value: "sid=abc; Path=/"},
			{Name: "Set-Cookie", Value: "theme=dark; Path=/"},
		},
	})
	persister := &memPersister{}
	jars := &memJars{}
	e := NewExecutor(persister, WithTransport(stub))

	jar := &store.CookieJar{Meta: store.Meta{ID: "jar_1", Type: store.TypeCookieJar}}
	_, err := e.Send(context.Background(), SendInput{
		Request: resolvedGET("http://127.0.0.1:9999/login"),
		Jar:     jar,
		Jars:    jars,
	})
	require.NoError(t, err)

	assert.Len(t, jar.Cookies, 2)
	assert.Equal(t, 1, jars.updates, "jar persisted exactly once")
}

func TestExecutor_NoCookiesNoJarUpdate(t *testing.T) {
	stub := NewStubTransport().StubResult(&TransportResult{StatusCode: 204, StatusMessage: "No Content"})
	jars := &memJars{}
	e := NewExecutor(&memPersister{}, WithTransport(stub))

	jar := &store.CookieJar{Meta: store.Meta{ID: "jar_1", Type: store.TypeCookieJar}}
	_, err := e.Send(context.Background(), SendInput{
		Request: resolvedGET("http://127.0.0.1:9999/"),
		Jar:     jar,
		Jars:    jars,
	})
	require.NoError(t, err)
	assert.Zero(t, jars.updates)
}

func TestExecutor_OutboundCookieHeaderSent(t *testing.T) {
	stub := NewStubTransport().StubResult(&TransportResult{StatusCode: 200, StatusMessage: "OK"})
	e := NewExecutor(&memPersister{}, WithTransport(stub))

	jar := &store.CookieJar{
		Meta:    store.Meta{ID: "jar_1", Type: store.TypeCookieJar},
		Cookies: []store.Cookie{{Key: "sid", Value: "abc", Domain: "127.0.0.1", Path: "/", HostOnly: true}},
	}
	_, err := e.Send(context.Background(), SendInput{
		Request: resolvedGET("http://127.0.0.1:9999/users"),
		Jar:     jar,
	})
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sid=abc", headerValue(calls[0].Headers, "Cookie"))
}

func TestExecutor_CertificateAppliedForMatchingHost(t *testing.T) {
	stub := NewStubTransport().StubResult(&TransportResult{StatusCode: 200, StatusMessage: "OK"})
	e := NewExecutor(&memPersister{}, WithTransport(stub))

	certs := []*store.ClientCertificate{
		{Host: "127.0.0.1:9999", Cert: []byte("cert-pem"), Key: []byte("key-pem")},
	}
	_, err := e.Send(context.Background(), SendInput{
		Request:      resolvedGET("https://127.0.0.1:9999/"),
		Certificates: certs,
	})
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []byte("cert-pem"), calls[0].ClientCert)
}
