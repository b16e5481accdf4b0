// Package curl converts curl command lines into stored request
// documents.
package curl

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/quiverhq/quiver/packages/store"
)

// Parse converts a single curl command into a request document. The
// returned request carries no ID or parent; the caller decides where
// it lives.
func Parse(curlCmd string) (*store.Request, error) {
	curlCmd = strings.TrimSpace(curlCmd)
	if strings.HasPrefix(curlCmd, "curl ") {
		curlCmd = strings.TrimPrefix(curlCmd, "curl ")
	} else if curlCmd == "curl" || curlCmd == "" {
		return nil, fmt.Errorf("no URL specified")
	}

	req := &store.Request{
		Meta:   store.Meta{Type: store.TypeRequest},
		Method: "GET",
	}
	var basicAuth string

	tokens := tokenize(curlCmd)
	i := 0
	for i < len(tokens) {
		token := tokens[i]

		switch {
		case token == "-X" || token == "--request":
			value, n, err := flagValue(tokens, i)
			if err != nil {
				return nil, err
			}
			req.Method = strings.ToUpper(value)
			i = n

		case token == "-H" || token == "--header":
			value, n, err := flagValue(tokens, i)
			if err != nil {
				return nil, err
			}
			if name, hv, ok := strings.Cut(value, ":"); ok {
				req.Headers = append(req.Headers, store.Header{
					Name:  strings.TrimSpace(name),
					Value: strings.TrimSpace(hv),
				})
			}
			i = n

		case token == "-d" || token == "--data" || token == "--data-raw" || token == "--data-binary":
			value, n, err := flagValue(tokens, i)
			if err != nil {
				return nil, err
			}
			req.Body = store.Body{Text: value}
			if req.Method == "GET" {
				req.Method = "POST"
			}
			i = n

		case token == "-u" || token == "--user":
			value, n, err := flagValue(tokens, i)
			if err != nil {
				return nil, err
			}
			basicAuth = value
			i = n

		case token == "-A" || token == "--user-agent":
			value, n, err := flagValue(tokens, i)
			if err != nil {
				return nil, err
			}
			req.Headers = append(req.Headers, store.Header{Name: "User-Agent", Value: value})
			i = n

		case token == "-e" || token == "--referer":
			value, n, err := flagValue(tokens, i)
			if err != nil {
				return nil, err
			}
			req.Headers = append(req.Headers, store.Header{Name: "Referer", Value: value})
			i = n

		case token == "-b" || token == "--cookie":
			value, n, err := flagValue(tokens, i)
			if err != nil {
				return nil, err
			}
			req.Headers = append(req.Headers, store.Header{Name: "Cookie", Value: value})
			i = n

		case token == "-k" || token == "--insecure" || token == "-L" || token == "--location" ||
			token == "-s" || token == "--silent" || token == "-v" || token == "--verbose":
			// Transport behavior lives in settings, not the request.
			i++

		case strings.HasPrefix(token, "-"):
			// Skip unknown flags with potential values.
			if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
				i += 2
			} else {
				i++
			}

		default:
			if req.URL == "" && isURL(token) {
				req.URL = token
			}
			i++
		}
	}

	if req.URL == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}

	if basicAuth != "" {
		encoded := base64.StdEncoding.EncodeToString([]byte(basicAuth))
		req.Headers = append(req.Headers, store.Header{Name: "Authorization", Value: "Basic " + encoded})
	}

	req.Name = generateName(req.URL, req.Method)
	return req, nil
}

// flagValue returns the value following the flag at index i and the
// next token index.
func flagValue(tokens []string, i int) (string, int, error) {
	if i+1 >= len(tokens) {
		return "", 0, fmt.Errorf("missing value for %s", tokens[i])
	}
	return tokens[i+1], i + 2, nil
}

// tokenize splits a curl command into tokens, respecting quotes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			escaped = true
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
			} else {
				current.WriteRune(r)
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
			} else {
				current.WriteRune(r)
			}
		case ' ', '\t':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else {
				flush()
			}
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func generateName(rawURL, method string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return method + " " + rawURL
	}
	return method + " " + u.Path
}
