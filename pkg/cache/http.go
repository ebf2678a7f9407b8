package cache

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultEncoding is assumed when a response does not declare a charset.
const DefaultEncoding = "utf-8"

// ResponseToEntry reads and closes the body of resp and converts the
// response to an Entry. The body is restored for the caller. URL is the
// request URL as sent; callers strip credentials from it.
func ResponseToEntry(resp *http.Response, elapsed time.Duration) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	finalURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Entry{
		StatusCode: resp.StatusCode,
		URL:        finalURL,
		Reason:     reason(resp),
		Headers:    HeadersFromHTTP(resp.Header),
		Body:       body,
		Encoding:   ParseEncoding(resp.Header.Get("Content-Type")),
		Elapsed:    elapsed,
	}, nil
}

// ParseEncoding returns the charset of a Content-Type header value, or
// DefaultEncoding if there is none.
func ParseEncoding(contentType string) string {
	if contentType == "" {
		return DefaultEncoding
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return DefaultEncoding
	}
	if charset := params["charset"]; charset != "" {
		return strings.ToLower(charset)
	}
	return DefaultEncoding
}

// reason extracts the status text ("OK") from "200 OK".
func reason(resp *http.Response) string {
	if resp.Status == "" {
		return http.StatusText(resp.StatusCode)
	}
	return strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
}
