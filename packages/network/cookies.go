package network

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/quiverhq/quiver/packages/store"
)

// CookieCoordinator moves cookies between a stored jar and the
// Cookie/Set-Cookie headers of one exchange. Domain and path matching
// is delegated to net/http/cookiejar with the public suffix list.
type CookieCoordinator struct {
	logger zerolog.Logger
}

// NewCookieCoordinator creates a coordinator logging through logger.
func NewCookieCoordinator(logger zerolog.Logger) *CookieCoordinator {
	return &CookieCoordinator{logger: logger}
}

// ApplyOutbound computes the Cookie header value for the target URL
// from the jar and merges it into the config headers. An existing
// Cookie header, whatever its casing, is extended with a "; "
// separator rather than replaced.
func (c *CookieCoordinator) ApplyOutbound(cfg *TransportConfig, jar *store.CookieJar, target *url.URL) error {
	if jar == nil || len(jar.Cookies) == 0 {
		return nil
	}

	matching, err := matchJarCookies(jar, target)
	if err != nil {
		return err
	}
	if len(matching) == 0 {
		return nil
	}

	pairs := make([]string, 0, len(matching))
	for _, ck := range matching {
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	value := strings.Join(pairs, "; ")

	if i := findHeader(cfg.Headers, "Cookie"); i >= 0 {
		cfg.Headers[i].Value += "; " + value
	} else {
		cfg.Headers = append(cfg.Headers, store.Header{Name: "Cookie", Value: value})
	}
	return nil
}

// matchJarCookies seeds a stdlib jar with the stored records and asks
// it which cookies apply to the target URL.
func matchJarCookies(jar *store.CookieJar, target *url.URL) ([]*http.Cookie, error) {
	stdJar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, record := range jar.Cookies {
		if !record.Expires.IsZero() && record.Expires.Before(now) {
			continue
		}
		seed := &url.URL{
			Scheme: "http",
			Host:   strings.TrimPrefix(record.Domain, "."),
			Path:   record.Path,
		}
		if record.Secure {
			seed.Scheme = "https"
		}
		ck := &http.Cookie{
			Name:     record.Key,
			Value:    record.Value,
			Path:     record.Path,
			Expires:  record.Expires,
			Secure:   record.Secure,
			HttpOnly: record.HTTPOnly,
		}
		if !record.HostOnly {
			ck.Domain = record.Domain
		}
		stdJar.SetCookies(seed, []*http.Cookie{ck})
	}

	return stdJar.Cookies(target), nil
}

// ApplyInbound scans response headers for every Set-Cookie occurrence
// (case-insensitive; multiple are legal) and applies them to the jar
// against the original pre-substitution URL. A cookie that fails to
// parse is logged and skipped. Returns the number of cookies applied;
// the caller persists the jar iff at least one applied.
func (c *CookieCoordinator) ApplyInbound(jar *store.CookieJar, originalURL *url.URL, headers []store.Header) int {
	if jar == nil {
		return 0
	}

	applied := 0
	for _, h := range headers {
		if !strings.EqualFold(h.Name, "Set-Cookie") {
			continue
		}
		ck, err := http.ParseSetCookie(h.Value)
		if err != nil {
			c.logger.Warn().Err(err).Str("header", h.Value).Msg("skipping unparseable set-cookie header")
			continue
		}
		applyCookie(jar, originalURL, ck)
		applied++
	}
	return applied
}

// applyCookie upserts one parsed cookie into the jar, keyed by
// domain, path and name, preserving record order.
func applyCookie(jar *store.CookieJar, originalURL *url.URL, ck *http.Cookie) {
	record := store.Cookie{
		Key:      ck.Name,
		Value:    ck.Value,
		Domain:   strings.TrimPrefix(ck.Domain, "."),
		Path:     ck.Path,
		Expires:  ck.Expires,
		Secure:   ck.Secure,
		HTTPOnly: ck.HttpOnly,
	}
	if record.Domain == "" {
		record.Domain = originalURL.Hostname()
		record.HostOnly = true
	}
	if record.Path == "" {
		record.Path = defaultCookiePath(originalURL.Path)
	}
	if ck.MaxAge > 0 {
		record.Expires = time.Now().Add(time.Duration(ck.MaxAge) * time.Second)
	} else if ck.MaxAge < 0 {
		record.Expires = time.Unix(1, 0)
	}

	for i, existing := range jar.Cookies {
		if existing.Key == record.Key && existing.Domain == record.Domain && existing.Path == record.Path {
			jar.Cookies[i] = record
			return
		}
	}
	jar.Cookies = append(jar.Cookies, record)
}

// defaultCookiePath implements the RFC 6265 default-path computation.
func defaultCookiePath(requestPath string) string {
	if requestPath == "" || !strings.HasPrefix(requestPath, "/") {
		return "/"
	}
	i := strings.LastIndex(requestPath, "/")
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}
