package network

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/quiverhq/quiver/packages/store"
)

// Body mime types with dedicated assembly rules. Anything else is sent
// as literal text.
const (
	MimeFormURLEncoded = "application/x-www-form-urlencoded"
	MimeMultipartForm  = "multipart/form-data"
)

// DefaultMaxRedirects bounds redirect following for every send.
const DefaultMaxRedirects = 50

// Override patches a built transport config. Overrides run after the
// computed defaults, so the last one wins.
type Override func(*TransportConfig)

var schemePattern = regexp.MustCompile(`(?i)^[a-z][a-z0-9.+-]*://`)

// BuildConfig assembles the ephemeral transport config for one attempt
// from a resolved request and the workspace settings. The only side
// effect is reading file-backed bodies; a read failure returns a
// *BuildError.
func BuildConfig(req *ResolvedRequest, settings *store.Settings, overrides ...Override) (*TransportConfig, error) {
	cfg := &TransportConfig{
		Method:          req.Method,
		FollowRedirects: true,
		MaxRedirects:    DefaultMaxRedirects,
		ValidateSSL:     true,
	}
	if settings != nil {
		cfg.FollowRedirects = settings.FollowRedirects
		cfg.ValidateSSL = settings.ValidateSSL
		cfg.Timeout = settings.Timeout
	}

	// Headers are copied verbatim, skipping entries without a name.
	for _, h := range req.Headers {
		if h.Name == "" {
			continue
		}
		cfg.Headers = append(cfg.Headers, h)
	}

	body, multipartType, err := buildBody(req.Body)
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	cfg.Body = body
	if multipartType != "" {
		// The boundary-carrying content type must win over whatever
		// the request document declared.
		cfg.Headers = setHeader(cfg.Headers, "Content-Type", multipartType)
	}

	finalURL, err := buildURL(req.URL, req.Parameters)
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	cfg.URL = finalURL

	u, err := url.Parse(finalURL)
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	cfg.Headers = setHeader(cfg.Headers, "Host", u.Host)

	if settings != nil {
		if u.Scheme == "https" {
			cfg.ProxyURL = settings.HTTPSProxy
		} else {
			cfg.ProxyURL = settings.HTTPProxy
		}
	}

	for _, o := range overrides {
		o(cfg)
	}
	return cfg, nil
}

// buildBody assembles the raw body bytes for the request. For
// multipart bodies the second return value carries the generated
// content type with its boundary.
func buildBody(body store.Body) ([]byte, string, error) {
	switch {
	case body.MimeType == MimeFormURLEncoded:
		return []byte(EncodeFormParams(body.Params)), "", nil
	case body.MimeType == MimeMultipartForm:
		return buildMultipartBody(body.Params)
	case body.FileName != "":
		data, err := os.ReadFile(body.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("reading body file: %w", err)
		}
		return data, "", nil
	default:
		return []byte(body.Text), "", nil
	}
}

// EncodeFormParams encodes form parameters deterministically,
// preserving document order. Entries without a name are skipped.
func EncodeFormParams(params []store.Parameter) string {
	var b strings.Builder
	for _, p := range params {
		if p.Name == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildMultipartBody writes a multipart/form-data body. File-typed
// params are read from disk with their base filename and an
// extension-guessed content type; other params are written as literal
// string fields.
func buildMultipartBody(params []store.Parameter) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	for _, p := range params {
		if p.Name == "" {
			continue
		}
		if p.Type != store.ParamTypeFile {
			if err := writer.WriteField(p.Name, p.Value); err != nil {
				return nil, "", err
			}
			continue
		}

		file, err := os.Open(p.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("reading multipart file: %w", err)
		}

		contentType := mime.TypeByExtension(filepath.Ext(p.FileName))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(p.Name), quoteEscaper.Replace(filepath.Base(p.FileName))))
		h.Set("Content-Type", contentType)

		part, err := writer.CreatePart(h)
		if err != nil {
			file.Close()
			return nil, "", err
		}
		_, err = io.Copy(part, file)
		file.Close()
		if err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// buildURL joins the base URL with the serialized query parameters and
// normalizes it to carry an explicit scheme.
func buildURL(base string, params []store.Parameter) (string, error) {
	if !schemePattern.MatchString(base) {
		base = "http://" + base
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", base, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q has no host", base)
	}

	if qs := EncodeFormParams(params); qs != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&" + qs
		} else {
			u.RawQuery = qs
		}
	}
	return u.String(), nil
}
