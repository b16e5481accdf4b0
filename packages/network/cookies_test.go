package network

import (
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverhq/quiver/packages/store"
)

func testJar(cookies ...store.Cookie) *store.CookieJar {
	return &store.CookieJar{
		Meta:    store.Meta{ID: "jar_1", Type: store.TypeCookieJar},
		Name:    "Default",
		Cookies: cookies,
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestApplyOutbound_AddsCookieHeader(t *testing.T) {
	jar := testJar(
		store.Cookie{Key: "sid", Value: "abc", Domain: "acme.test", Path: "/", HostOnly: true},
		store.Cookie{Key: "other", Value: "x", Domain: "elsewhere.test", Path: "/", HostOnly: true},
	)
	cfg := &TransportConfig{}

	c := NewCookieCoordinator(zerolog.Nop())
	err := c.ApplyOutbound(cfg, jar, mustParse(t, "http://acme.test/users"))
	require.NoError(t, err)

	assert.Equal(t, "sid=abc", headerValue(cfg.Headers, "Cookie"))
}

func TestApplyOutbound_AppendsToExistingHeader(t *testing.T) {
	jar := testJar(store.Cookie{Key: "sid", Value: "abc", Domain: "acme.test", Path: "/", HostOnly: true})
	cfg := &TransportConfig{Headers: []store.Header{{Name: "cookie", Value: "manual=1"}}}

	c := NewCookieCoordinator(zerolog.Nop())
	require.NoError(t, c.ApplyOutbound(cfg, jar, mustParse(t, "http://acme.test/")))

	// Always joined with "; ", and the existing case-variant header is
	// extended rather than replaced.
	require.Len(t, cfg.Headers, 1)
	assert.Equal(t, "cookie", cfg.Headers[0].Name)
	assert.Equal(t, "manual=1; sid=abc", cfg.Headers[0].Value)
}

func TestApplyOutbound_SecureCookieNotSentOverHTTP(t *testing.T) {
	jar := testJar(store.Cookie{Key: "sid", Value: "abc", Domain: "acme.test", Path: "/", Secure: true, HostOnly: true})
	cfg := &TransportConfig{}

	c := NewCookieCoordinator(zerolog.Nop())
	require.NoError(t, c.ApplyOutbound(cfg, jar, mustParse(t, "http://acme.test/")))
	assert.Empty(t, cfg.Headers)

	require.NoError(t, c.ApplyOutbound(cfg, jar, mustParse(t, "https://acme.test/")))
	assert.Equal(t, "sid=abc", headerValue(cfg.Headers, "Cookie"))
}

func TestApplyOutbound_EmptyJarIsNoop(t *testing.T) {
	cfg := &TransportConfig{}
	c := NewCookieCoordinator(zerolog.Nop())

	require.NoError(t, c.ApplyOutbound(cfg, testJar(), mustParse(t, "http://acme.test/")))
	require.NoError(t, c.ApplyOutbound(cfg, nil, mustParse(t, "http://acme.test/")))
	assert.Empty(t, cfg.Headers)
}

func TestApplyInbound_MultipleSetCookieHeaders(t *testing.T) {
	jar := testJar()
	c := NewCookieCoordinator(zerolog.Nop())

	applied := c.ApplyInbound(jar, mustParse(t, "http://acme.test/login"), []store.Header{
		{Name: "Content-Type", Value: "text/html"},
		{Name: "Set-Cookie", Value: "sid=abc; Path=/"},
		{Name: "set-cookie", Value: "theme=dark"},
	})

	assert.Equal(t, 2, applied)
	require.Len(t, jar.Cookies, 2)
	assert.Equal(t, "sid", jar.Cookies[0].Key)
	assert.Equal(t, "/", jar.Cookies[0].Path)
	assert.Equal(t, "acme.test", jar.Cookies[0].Domain)
	assert.True(t, jar.Cookies[0].HostOnly)
	assert.Equal(t, "theme", jar.Cookies[1].Key)
}

func TestApplyInbound_ParseFailureSkipped(t *testing.T) {
	jar := testJar()
	c := NewCookieCoordinator(zerolog.Nop())

	applied := c.ApplyInbound(jar, mustParse(t, "http://acme.test/"), []store.Header{
		{Name: "Set-Cookie", Value: ""},
		{Name: "Set-Cookie", Value: "ok=1"},
	})

	assert.Equal(t, 1, applied)
	require.Len(t, jar.Cookies, 1)
	assert.Equal(t, "ok", jar.Cookies[0].Key)
}

func TestApplyInbound_UpsertsExistingRecord(t *testing.T) {
	jar := testJar(store.Cookie{Key: "sid", Value: "old", Domain: "acme.test", Path: "/", HostOnly: true})
	c := NewCookieCoordinator(zerolog.Nop())

	applied := c.ApplyInbound(jar, mustParse(t, "http://acme.test/"), []store.Header{
		{Name: "Set-Cookie", Value: "sid=new; Path=/"},
	})

	assert.Equal(t, 1, applied)
	require.Len(t, jar.Cookies, 1)
	assert.Equal(t, "new", jar.Cookies[0].Value)
}

func TestDefaultCookiePath(t *testing.T) {
	tests := []struct {
		requestPath string
		want        string
	}{
		{"", "/"},
		{"/", "/"},
		{"/users", "/"},
		{"/users/42", "/users"},
		{"relative", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultCookiePath(tt.requestPath), "path %q", tt.requestPath)
	}
}
