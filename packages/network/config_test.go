package network

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverhq/quiver/packages/store"
)

func TestBuildConfig_FormURLEncodedBody(t *testing.T) {
	req := &ResolvedRequest{
		Method: "POST",
		URL:    "https://api.acme.test/login",
		Body: store.Body{
			MimeType: MimeFormURLEncoded,
			Params: []store.Parameter{
				{Name: "z param", Value: "one&two"},
				{Name: "a", Value: "first"},
				{Name: "", Value: "skipped"},
				{Name: "a", Value: "second"},
			},
		},
	}

	cfg, err := BuildConfig(req, nil)
	require.NoError(t, err)
	// Document order preserved, nameless entries skipped.
	assert.Equal(t, "z+param=one%26two&a=first&a=second", string(cfg.Body))
}

func TestBuildConfig_LiteralTextBodyDefault(t *testing.T) {
	cfg, err := BuildConfig(&ResolvedRequest{
		Method: "POST",
		URL:    "https://api.acme.test",
		Body:   store.Body{MimeType: "application/json", Text: `{"a":1}`},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(cfg.Body))

	empty, err := BuildConfig(&ResolvedRequest{Method: "GET", URL: "https://api.acme.test"}, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Body)
}

func TestBuildConfig_FileBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x1, 0x2, 0x3}, 0o600))

	cfg, err := BuildConfig(&ResolvedRequest{
		Method: "POST",
		URL:    "https://api.acme.test/upload",
		Body:   store.Body{FileName: path},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1, 0x2, 0x3}, cfg.Body)
}

func TestBuildConfig_FileBodyUnreadable(t *testing.T) {
	_, err := BuildConfig(&ResolvedRequest{
		Method: "POST",
		URL:    "https://api.acme.test/upload",
		Body:   store.Body{FileName: filepath.Join(t.TempDir(), "missing.bin")},
	}, nil)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
}

func TestBuildConfig_MultipartBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "avatar.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))

	cfg, err := BuildConfig(&ResolvedRequest{
		Method: "POST",
		URL:    "https://api.acme.test/profile",
		Headers: []store.Header{
			{Name: "Content-Type", Value: MimeMultipartForm},
		},
		Body: store.Body{
			MimeType: MimeMultipartForm,
			Params: []store.Parameter{
				{Name: "name", Value: "ada"},
				{Name: "missing"},
				{Name: "avatar", Type: store.ParamTypeFile, FileName: path},
			},
		},
	}, nil)
	require.NoError(t, err)

	body := string(cfg.Body)
	assert.Contains(t, body, `name="name"`)
	assert.Contains(t, body, "ada")
	// Non-file param without a value is sent as an empty literal.
	assert.Contains(t, body, `name="missing"`)
	assert.Contains(t, body, `filename="avatar.png"`)
	assert.Contains(t, body, "Content-Type: image/png")
	assert.Contains(t, body, "png-bytes")

	// The boundary-carrying content type replaces the declared one,
	// keeping its position.
	ct := headerValue(cfg.Headers, "Content-Type")
	assert.True(t, strings.HasPrefix(ct, "multipart/form-data; boundary="), ct)
	assert.Equal(t, "Content-Type", cfg.Headers[0].Name)
}

func TestBuildConfig_HeadersCopiedSkippingNameless(t *testing.T) {
	cfg, err := BuildConfig(&ResolvedRequest{
		Method: "GET",
		URL:    "https://api.acme.test",
		Headers: []store.Header{
			{Name: "Accept", Value: "application/json"},
			{Name: "", Value: "dropped"},
			{Name: "X-Trace", Value: "1"},
		},
	}, nil)
	require.NoError(t, err)

	names := make([]string, 0, len(cfg.Headers))
	for _, h := range cfg.Headers {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Accept", "X-Trace", "Host"}, names)
}

func TestBuildConfig_HostHeaderOverwrites(t *testing.T) {
	cfg, err := BuildConfig(&ResolvedRequest{
		Method: "GET",
		URL:    "https://api.acme.test:8443/v1",
		Headers: []store.Header{
			{Name: "host", Value: "spoofed.example"},
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "api.acme.test:8443", headerValue(cfg.Headers, "Host"))
	assert.Len(t, cfg.Headers, 1)
}

func TestBuildConfig_QueryParamsAndSchemeDefault(t *testing.T) {
	cfg, err := BuildConfig(&ResolvedRequest{
		Method: "GET",
		URL:    "api.acme.test/search?q=base",
		Parameters: []store.Parameter{
			{Name: "page", Value: "2"},
			{Name: "sort", Value: "name asc"},
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://api.acme.test/search?q=base&page=2&sort=name+asc", cfg.URL)
}

func TestBuildConfig_SettingsAndProxySelection(t *testing.T) {
	settings := &store.Settings{
		HTTPProxy:       "http://proxy.internal:3128",
		HTTPSProxy:      "http://sproxy.internal:3128",
		FollowRedirects: false,
		ValidateSSL:     false,
		Timeout:         30 * time.Second,
	}

	httpsCfg, err := BuildConfig(&ResolvedRequest{Method: "GET", URL: "https://api.acme.test"}, settings)
	require.NoError(t, err)
	assert.Equal(t, "http://sproxy.internal:3128", httpsCfg.ProxyURL)
	assert.False(t, httpsCfg.FollowRedirects)
	assert.False(t, httpsCfg.ValidateSSL)
	assert.Equal(t, 30*time.Second, httpsCfg.Timeout)

	httpCfg, err := BuildConfig(&ResolvedRequest{Method: "GET", URL: "http://api.acme.test"}, settings)
	require.NoError(t, err)
	assert.Equal(t, "http://proxy.internal:3128", httpCfg.ProxyURL)
}

func TestBuildConfig_OverridesWinLast(t *testing.T) {
	cfg, err := BuildConfig(
		&ResolvedRequest{Method: "GET", URL: "https://api.acme.test"},
		&store.Settings{FollowRedirects: true, ValidateSSL: true},
		func(c *TransportConfig) { c.Method = "HEAD" },
		func(c *TransportConfig) { c.Method = "OPTIONS"; c.MaxRedirects = 3 },
	)
	require.NoError(t, err)
	assert.Equal(t, "OPTIONS", cfg.Method)
	assert.Equal(t, 3, cfg.MaxRedirects)
}
