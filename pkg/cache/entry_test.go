package cache

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		storedAt time.Time
		ttl      time.Duration
		want     bool
	}{
		{"fresh", now.Add(-time.Minute), time.Hour, false},
		{"exactly ttl old", now.Add(-time.Hour), time.Hour, true},
		{"older than ttl", now.Add(-2 * time.Second), time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{StoredAt: tt.storedAt}
			if got := entry.IsExpired(now, tt.ttl); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	now := time.Now()
	entry := &Entry{StoredAt: now.Add(-10 * time.Minute)}

	if ttl := entry.TTL(now, time.Hour); ttl != 50*time.Minute {
		t.Errorf("TTL = %v, want 50m", ttl)
	}
	if ttl := entry.TTL(now, time.Minute); ttl != 0 {
		t.Errorf("TTL = %v, want 0 for expired entry", ttl)
	}
}

func TestHeaders_JSONKeepsOrder(t *testing.T) {
	headers := Headers{
		{Name: "Server", Value: "nginx"},
		{Name: "Content-Type", Value: "text/xml"},
		{Name: "A-Last", Value: "1"},
	}

	data, err := json.Marshal(headers)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"Server":"nginx","Content-Type":"text/xml","A-Last":"1"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var decoded Headers
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decoded) != len(headers) {
		t.Fatalf("decoded %d headers, want %d", len(decoded), len(headers))
	}
	for i := range headers {
		if decoded[i] != headers[i] {
			t.Errorf("header[%d] = %v, want %v", i, decoded[i], headers[i])
		}
	}
}

func TestHeaders_UnmarshalRejectsNonObject(t *testing.T) {
	var h Headers
	if err := json.Unmarshal([]byte(`["a"]`), &h); err == nil {
		t.Error("expected error for array input")
	}
}

func TestHeaders_HTTPConversion(t *testing.T) {
	h := http.Header{
		"Content-Type": []string{"text/xml"},
		"Vary":         []string{"Accept", "Origin"},
	}

	headers := HeadersFromHTTP(h)
	if headers[0].Name != "Content-Type" || headers[1].Name != "Vary" {
		t.Errorf("headers not sorted by name: %v", headers)
	}
	if got := headers.Get("vary"); got != "Accept, Origin" {
		t.Errorf("Get(vary) = %q", got)
	}
	if got := headers.HTTP().Get("Content-Type"); got != "text/xml" {
		t.Errorf("HTTP().Get(Content-Type) = %q", got)
	}
}
