package cache

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidKey indicates a URL that cannot be turned into a cache key.
var ErrInvalidKey = errors.New("invalid cache key")

// Key identifies a cached response.
//
// A key is a relative, slash-separated path: reversed host labels, the URL
// path segments and, when query parameters are present, a final leaf of
// sorted "k=v" pairs joined with "&". A port is appended to the last host
// label as "%3A<port>"; escaped path segments never contain "%3A", so a port
// can't be mistaken for a path segment.
//
// Example:
//
//	https://test.openml.org/api/v1/xml/task/31?param2=value2&param1=value1
//	-> org/openml/test/api/v1/xml/task/31/param1=value1&param2=value2
type Key string

// NewKey generates a deterministic cache key for a request URL and its query
// parameters. Parameters embedded in rawURL are merged with params.
func NewKey(rawURL string, params url.Values) (Key, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidKey, rawURL)
	}

	parts := make([]string, 0, 16)

	// Host labels, most significant first
	labels := strings.Split(strings.ToLower(u.Hostname()), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		if labels[i] != "" {
			parts = append(parts, escapeSegment(labels[i]))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %q has no host labels", ErrInvalidKey, rawURL)
	}
	if port := u.Port(); port != "" {
		parts[len(parts)-1] += portSeparator + port
	}

	for _, segment := range strings.Split(u.Path, "/") {
		if segment != "" {
			parts = append(parts, escapeSegment(segment))
		}
	}

	query := u.Query()
	for name, values := range params {
		for _, value := range values {
			query.Add(name, value)
		}
	}
	if leaf := queryLeaf(query); leaf != "" {
		parts = append(parts, leaf)
	}

	return Key(strings.Join(parts, "/")), nil
}

// portSeparator joins the port to the last host label. It is the escaped
// form of ":", which url.PathEscape leaves unescaped in path segments.
const portSeparator = "%3A"

// String returns the key as a slash-separated path.
func (k Key) String() string {
	return string(k)
}

// Segments returns the path segments of the key.
func (k Key) Segments() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), "/")
}

// escapeSegment makes a path segment safe to use as a directory name.
// "=" is escaped so a path segment never looks like a query leaf.
func escapeSegment(segment string) string {
	escaped := strings.ReplaceAll(url.PathEscape(segment), "=", "%3D")
	switch escaped {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return escaped
}

// queryLeaf renders query parameters sorted by name, then value.
func queryLeaf(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		values := append([]string(nil), query[name]...)
		sort.Strings(values)
		for _, value := range values {
			pairs = append(pairs, url.QueryEscape(name)+"="+url.QueryEscape(value))
		}
	}
	return strings.Join(pairs, "&")
}
