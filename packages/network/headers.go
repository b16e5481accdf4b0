package network

import (
	"strings"

	"github.com/quiverhq/quiver/packages/store"
)

// findHeader returns the index of the first header whose name matches
// case-insensitively, or -1.
func findHeader(headers []store.Header, name string) int {
	for i, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return i
		}
	}
	return -1
}

// headerValue returns the value of the first case-insensitive match,
// or "".
func headerValue(headers []store.Header, name string) string {
	if i := findHeader(headers, name); i >= 0 {
		return headers[i].Value
	}
	return ""
}

// setHeader replaces the first case-insensitive match in place,
// preserving order, or appends when absent.
func setHeader(headers []store.Header, name, value string) []store.Header {
	if i := findHeader(headers, name); i >= 0 {
		headers[i].Value = value
		return headers
	}
	return append(headers, store.Header{Name: name, Value: value})
}

// UpdateMimeType rewrites the Content-Type entry of an ordered header
// list for a new body mime type. An existing entry, whatever its
// casing, is replaced in place; every other entry keeps its position.
// An empty mime type removes the entry entirely.
func UpdateMimeType(headers []store.Header, mimeType string) []store.Header {
	i := findHeader(headers, "Content-Type")

	if mimeType == "" {
		if i < 0 {
			return headers
		}
		return append(headers[:i], headers[i+1:]...)
	}

	if i >= 0 {
		headers[i].Value = mimeType
		return headers
	}
	return append(headers, store.Header{Name: "Content-Type", Value: mimeType})
}
