package client

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/openml-client/pkg/cache"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Response is a fully read HTTP response, either live or served from cache.
type Response struct {
	StatusCode int
	Reason     string
	URL        string // final URL without api_key
	Header     http.Header
	Body       []byte
	Encoding   string
	Elapsed    time.Duration

	// FromCache is set when the response was served from the cache.
	// StoredAt is then the time it was cached.
	FromCache bool
	StoredAt  time.Time
}

// Text decodes the body using the response encoding.
func (r *Response) Text() (string, error) {
	return DecodeText(r.Body, r.Encoding)
}

// MD5 returns the hex MD5 digest of the body.
func (r *Response) MD5() string {
	sum := md5.Sum(r.Body)
	return hex.EncodeToString(sum[:])
}

// entry converts the response for storage in the cache.
func (r *Response) entry() *cache.Entry {
	return &cache.Entry{
		StatusCode: r.StatusCode,
		URL:        r.URL,
		Reason:     r.Reason,
		Headers:    cache.HeadersFromHTTP(r.Header),
		Body:       r.Body,
		Encoding:   r.Encoding,
		Elapsed:    r.Elapsed,
	}
}

// newResponse builds a response from a cache entry without any network
// access. Callers set FromCache and StoredAt for cached entries.
func newResponse(e *cache.Entry) *Response {
	return &Response{
		StatusCode: e.StatusCode,
		Reason:     e.Reason,
		URL:        e.URL,
		Header:     e.Headers.HTTP(),
		Body:       e.Body,
		Encoding:   e.Encoding,
		Elapsed:    e.Elapsed,
	}
}

// verifyChecksum compares the body digest with the expected hex MD5.
func verifyChecksum(resp *Response, expected string) error {
	actual := resp.MD5()
	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		checksumFailuresTotal.Inc()
		return &ChecksumError{URL: resp.URL, Expected: expected, Actual: actual}
	}
	return nil
}

// Encoding looks up a text encoding by its WHATWG or IANA name.
func Encoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = cache.DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// DecodeText converts body from the named encoding to a Go string.
func DecodeText(body []byte, name string) (string, error) {
	enc, err := Encoding(name)
	if err != nil {
		return "", err
	}
	if enc == unicode.UTF8 {
		return string(body), nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", name, err)
	}
	return string(decoded), nil
}
