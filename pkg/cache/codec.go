package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Artifact names below a key directory.
const (
	MetaFile    = "meta.json"
	HeadersFile = "headers.json"
	BodyFile    = "body.bin"
)

// meta is the on-disk form of meta.json.
type meta struct {
	StatusCode int       `json:"status_code"`
	URL        string    `json:"url"`
	Reason     string    `json:"reason"`
	Encoding   string    `json:"encoding"`
	Elapsed    float64   `json:"elapsed"`
	StoredAt   time.Time `json:"stored_at"`
}

// artifacts holds the three separately loadable pieces of an entry.
type artifacts struct {
	meta    []byte
	headers []byte
	body    []byte
}

func encodeEntry(entry *Entry) (artifacts, error) {
	m, err := json.Marshal(meta{
		StatusCode: entry.StatusCode,
		URL:        entry.URL,
		Reason:     entry.Reason,
		Encoding:   entry.Encoding,
		Elapsed:    entry.Elapsed.Seconds(),
		StoredAt:   entry.StoredAt.UTC(),
	})
	if err != nil {
		return artifacts{}, fmt.Errorf("marshal meta: %w", err)
	}

	headers := entry.Headers
	if headers == nil {
		headers = Headers{}
	}
	h, err := json.Marshal(headers)
	if err != nil {
		return artifacts{}, fmt.Errorf("marshal headers: %w", err)
	}

	body := entry.Body
	if body == nil {
		body = []byte{}
	}

	return artifacts{meta: m, headers: h, body: body}, nil
}

func decodeEntry(a artifacts) (*Entry, error) {
	var m meta
	if err := json.Unmarshal(a.meta, &m); err != nil {
		return nil, fmt.Errorf("%w: meta: %v", ErrInvalidEntry, err)
	}
	if m.StatusCode == 0 || m.StoredAt.IsZero() {
		return nil, fmt.Errorf("%w: meta: missing status_code or stored_at", ErrInvalidEntry)
	}

	var headers Headers
	if err := json.Unmarshal(a.headers, &headers); err != nil {
		return nil, fmt.Errorf("%w: headers: %v", ErrInvalidEntry, err)
	}

	return &Entry{
		StatusCode: m.StatusCode,
		URL:        m.URL,
		Reason:     m.Reason,
		Headers:    headers,
		Body:       a.body,
		Encoding:   m.Encoding,
		Elapsed:    time.Duration(math.Round(m.Elapsed * float64(time.Second))),
		StoredAt:   m.StoredAt,
	}, nil
}
