package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Entry represents a cached response.
type Entry struct {
	// StatusCode is the HTTP status code of the cached response
	StatusCode int

	// URL is the final URL the response was served from
	URL string

	// Reason is the status text (e.g. "OK")
	Reason string

	// Headers are the response headers in their original order
	Headers Headers

	// Body is the raw response body
	Body []byte

	// Encoding is the character encoding of Body
	Encoding string

	// Elapsed is the time the live request took
	Elapsed time.Duration

	// StoredAt is when we cached this response
	StoredAt time.Time
}

// IsExpired reports whether the entry is no longer valid at now.
func (e *Entry) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) >= ttl
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL(now time.Time, ttl time.Duration) time.Duration {
	remaining := ttl - now.Sub(e.StoredAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Header is a single response header.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered name -> value mapping. It marshals to a JSON object
// that keeps the order of its fields.
type Headers []Header

// HeadersFromHTTP converts http.Header into Headers sorted by name.
// Multiple values of one header are joined with ", ".
func HeadersFromHTTP(h http.Header) Headers {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	headers := make(Headers, 0, len(names))
	for _, name := range names {
		headers = append(headers, Header{Name: name, Value: strings.Join(h[name], ", ")})
	}
	return headers
}

// Get returns the value of the first header matching name case-insensitively.
func (h Headers) Get(name string) string {
	for _, header := range h {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// HTTP converts the headers back into an http.Header.
func (h Headers) HTTP() http.Header {
	out := make(http.Header, len(h))
	for _, header := range h {
		out.Add(header.Name, header.Value)
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (h Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, header := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(header.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(header.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Headers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("headers: expected object, got %v", tok)
	}

	headers := Headers{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("headers: expected name, got %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("headers: value of %q: %w", name, err)
		}
		headers = append(headers, Header{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*h = headers
	return nil
}
