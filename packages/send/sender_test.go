package send

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverhq/quiver/packages/network"
	"github.com/quiverhq/quiver/packages/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedRequest(t *testing.T, st *store.Store, req *store.Request) *store.Request {
	t.Helper()
	ws := &store.Workspace{Meta: store.Meta{Type: store.TypeWorkspace}, Name: "Test"}
	require.NoError(t, st.Create(context.Background(), ws))
	req.Meta = store.Meta{Type: store.TypeRequest, ParentID: ws.ID}
	require.NoError(t, st.Create(context.Background(), req))
	return req
}

func TestSender_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hi"))
	}))
	defer server.Close()

	st := testStore(t)
	req := seedRequest(t, st, &store.Request{Name: "greet", Method: "GET", URL: server.URL})

	sender := NewSender(st, WithSettleDelay(0))
	resp, err := sender.Send(context.Background(), req.ID, "")
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, "hi", string(resp.Body))
	assert.Equal(t, int64(2), resp.BytesRead)
	assert.Equal(t, req.ID, resp.ParentID)

	// The outcome is durable under the request.
	stored, err := st.ResponsesForRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 200, stored[0].StatusCode)
}

func TestSender_RenderFailureCaptured(t *testing.T) {
	st := testStore(t)
	req := seedRequest(t, st, &store.Request{
		Name:   "broken",
		Method: "GET",
		URL:    "https://{{ host }}/users",
	})

	sender := NewSender(st, WithSettleDelay(0), WithTransport(network.NewStubTransport()))
	resp, err := sender.Send(context.Background(), req.ID, "")

	// Never propagated: captured with the distinguished status code.
	require.NoError(t, err)
	assert.Equal(t, StatusCodeRenderFailure, resp.StatusCode)
	assert.Equal(t, StatusMessageRenderFailure, resp.StatusMessage)
	assert.Contains(t, resp.Error, "host")

	stored, err := st.ResponsesForRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSender_RendersAgainstEnvironment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "k-123", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	st := testStore(t)
	env := &store.Environment{
		Meta:      store.Meta{Type: store.TypeEnvironment},
		Name:      "staging",
		Variables: map[string]string{"base": server.URL, "apiKey": "k-123"},
	}
	require.NoError(t, st.Create(context.Background(), env))

	req := seedRequest(t, st, &store.Request{
		Method:  "GET",
		URL:     "{{ base }}/users",
		Headers: []store.Header{{Name: "X-Api-Key", Value: "{{ apiKey }}"}},
	})

	sender := NewSender(st, WithSettleDelay(0))
	resp, err := sender.Send(context.Background(), req.ID, env.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSender_UnknownRequest(t *testing.T) {
	st := testStore(t)
	sender := NewSender(st, WithSettleDelay(0))

	_, err := sender.Send(context.Background(), "req_missing", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSender_JarRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
			w.WriteHeader(http.StatusOK)
			return
		}
		cookie, err := r.Cookie("sid")
		if assert.NoError(t, err) {
			assert.Equal(t, "abc", cookie.Value)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	st := testStore(t)
	ctx := context.Background()

	jar := &store.CookieJar{Meta: store.Meta{Type: store.TypeCookieJar}, Name: "Default"}
	require.NoError(t, st.Create(ctx, jar))

	login := seedRequest(t, st, &store.Request{Method: "GET", URL: server.URL + "/login", CookieJarID: jar.ID})
	profile := &store.Request{Meta: store.Meta{Type: store.TypeRequest, ParentID: login.ParentID},
		Method: "GET", URL: server.URL + "/profile", CookieJarID: jar.ID}
	require.NoError(t, st.Create(ctx, profile))

	sender := NewSender(st, WithSettleDelay(0))

	_, err := sender.Send(ctx, login.ID, "")
	require.NoError(t, err)

	// The jar persisted the inbound cookie...
	updated, err := st.GetCookieJar(ctx, jar.ID)
	require.NoError(t, err)
	require.Len(t, updated.Cookies, 1)
	assert.Equal(t, "sid", updated.Cookies[0].Key)

	// ...and the follow-up request sends it back.
	_, err = sender.Send(ctx, profile.ID, "")
	require.NoError(t, err)
}

func TestSender_TerminalTransportErrorPersistsAndReturns(t *testing.T) {
	st := testStore(t)
	req := seedRequest(t, st, &store.Request{Method: "GET", URL: "http://127.0.0.1:1/"})

	stub := network.NewStubTransport().StubError(assert.AnError)
	sender := NewSender(st, WithSettleDelay(0), WithTransport(stub))

	resp, err := sender.Send(context.Background(), req.ID, "")
	require.Error(t, err)
	assert.Equal(t, network.StatusMessageError, resp.StatusMessage)

	stored, serr := st.ResponsesForRequest(context.Background(), req.ID)
	require.NoError(t, serr)
	assert.Len(t, stored, 1)
}
