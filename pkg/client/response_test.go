package client

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestResponse_Text(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		encoding string
		want     string
	}{
		{"utf-8", []byte("caf\xc3\xa9"), "utf-8", "café"},
		{"latin1", []byte("caf\xe9"), "iso-8859-1", "café"},
		{"default", []byte("plain"), "", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{Body: tt.body, Encoding: tt.encoding}
			got, err := resp.Text()
			if err != nil {
				t.Fatalf("Text failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResponse_TextUnknownEncoding(t *testing.T) {
	resp := &Response{Body: []byte("x"), Encoding: "klingon"}
	if _, err := resp.Text(); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestResponse_EntryRoundTrip(t *testing.T) {
	resp := &Response{
		StatusCode: 200,
		Reason:     "OK",
		URL:        "https://www.openml.org/api/v1/xml/task/1",
		Header:     map[string][]string{"Content-Type": {"text/xml"}},
		Body:       []byte("<oml:task/>"),
		Encoding:   "utf-8",
	}

	back := newResponse(resp.entry())
	if back.FromCache {
		t.Error("FromCache must be left to the caller")
	}
	if back.StatusCode != resp.StatusCode || back.Reason != resp.Reason || back.URL != resp.URL {
		t.Errorf("response changed: %+v", back)
	}
	if !bytes.Equal(back.Body, resp.Body) {
		t.Errorf("Body = %s", back.Body)
	}
	if back.Header.Get("Content-Type") != "text/xml" {
		t.Errorf("Content-Type = %q", back.Header.Get("Content-Type"))
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.openml.org/api/v1/xml/task/1?api_key=abc123", "https://www.openml.org/api/v1/xml/task/1?api_key=xxxxx"},
		{"https://x/task?a=1&api_key=abc&b=2", "https://x/task?a=1&api_key=xxxxx&b=2"},
		{`Get "https://x/t?api_key=abc": timeout`, `Get "https://x/t?api_key=xxxxx": timeout`},
		{"https://x/task/1", "https://x/task/1"},
	}

	for _, tt := range tests {
		if got := RedactURL(tt.in); got != tt.want {
			t.Errorf("RedactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripAPIKey(t *testing.T) {
	u, _ := url.Parse("https://x/task/1?api_key=abc&format=xml")
	if got := stripAPIKey(u); got != "https://x/task/1?format=xml" {
		t.Errorf("stripAPIKey = %s", got)
	}
	if u.Query().Get("api_key") != "abc" {
		t.Error("stripAPIKey modified its argument")
	}
}

func TestLeveledLogger_Redacts(t *testing.T) {
	var buf bytes.Buffer
	logger := leveledLogger{logger: zerolog.New(&buf)}

	logger.Error("request failed",
		"url", "https://x/t?api_key=abc",
		"error", errors.New(`Get "https://x/t?api_key=abc": EOF`),
		"attempt", 2,
	)

	out := buf.String()
	if strings.Contains(out, "abc") {
		t.Errorf("log output leaks api key: %s", out)
	}
	if !strings.Contains(out, `"attempt":2`) {
		t.Errorf("log output lost fields: %s", out)
	}
}
