package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quiverhq/quiver/packages/store"
)

// Transport executes one HTTP exchange described by a TransportConfig.
// Implementations return either a complete result or an error that
// classifyError has already shaped.
type Transport interface {
	RoundTrip(ctx context.Context, cfg *TransportConfig) (*TransportResult, error)
}

// HTTPTransport is the production transport on net/http. The underlying
// client is assembled fresh per call because every attempt carries its
// own TLS, proxy and redirect policy.
type HTTPTransport struct{}

// NewHTTPTransport creates the production transport.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{}
}

// RoundTrip dispatches the exchange and buffers the full response
// body. Decompression is left to net/http (transparent for gzip);
// cookies are never handled here — the coordinator owns them.
func (t *HTTPTransport) RoundTrip(ctx context.Context, cfg *TransportConfig) (*TransportResult, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: !cfg.ValidateSSL,
		ServerName:         cfg.ServerName,
	}
	pair, ok, err := loadKeyPair(cfg)
	if err != nil {
		return nil, classifyError(err, 0)
	}
	if ok {
		tlsConfig.Certificates = []tls.Certificate{pair}
	}

	transport := &http.Transport{
		TLSClientConfig: tlsConfig,
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, classifyError(fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err), 0)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !cfg.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= cfg.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	var body io.Reader
	if len(cfg.Body) > 0 {
		body = bytes.NewReader(cfg.Body)
	}
	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, body)
	if err != nil {
		return nil, classifyError(err, 0)
	}
	for _, h := range cfg.Headers {
		if h.Name == "" {
			continue
		}
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyError(err, 0)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		// The response broke off mid-body; report how far we got.
		return nil, classifyError(err, int64(len(respBody)))
	}

	var headers []store.Header
	for name, values := range resp.Header {
		for _, v := range values {
			headers = append(headers, store.Header{Name: name, Value: v})
		}
	}

	return &TransportResult{
		StatusCode:    resp.StatusCode,
		StatusMessage: statusMessage(resp.Status, resp.StatusCode),
		Headers:       headers,
		Body:          respBody,
		ElapsedTime:   elapsed,
		BytesRead:     int64(len(respBody)),
	}, nil
}

// statusMessage strips the numeric code from a "200 OK" status line.
func statusMessage(status string, code int) string {
	msg := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
	if msg == "" {
		return http.StatusText(code)
	}
	return msg
}
