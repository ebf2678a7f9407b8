// Package cache provides the persistent, TTL-based response cache used by the
// OpenML transport.
//
// The cache has the following features:
//
// - Deterministic, human-inspectable keys derived from the request URL and
// its sorted query parameters
// - Time-based expiry (an entry is valid while now - StoredAt < TTL)
// - Pluggable storage: a directory tree on disk (default) or Redis
// - Atomic replacement of entries for concurrent readers
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create a file-backed cache with a one week TTL
//	c, err := cache.NewFileCache("~/.cache/openml", 7*24*time.Hour)
//	if err != nil {
//		return err
//	}
//
//	// Derive a key
//	key, err := cache.NewKey("https://www.openml.org/api/v1/xml/task/31",
//		url.Values{"param1": []string{"value1"}})
//	// key == "org/openml/www/api/v1/xml/task/31/param1=value1"
//
//	// Load from cache
//	entry, err := c.Load(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from the server and Save
//	}
//
// # Disk Layout
//
// Every entry is stored as three sibling files below its key directory:
//
//	<root>/<key>/meta.json     status code, final URL, reason, encoding, elapsed, stored_at
//	<root>/<key>/headers.json  response headers (ordered name -> value)
//	<root>/<key>/body.bin      raw response body
//
// External tooling relies on this layout, so it must not change.
//
// # Metrics
//
// The cache exports Prometheus metrics:
//
//   - openml_cache_hits_total{store} - Cache hits
//   - openml_cache_misses_total{reason} - Cache misses (absent, expired, invalid)
//   - openml_cache_stored_bytes_total{store} - Bytes written
//   - openml_cache_errors_total{operation} - Cache operation errors
package cache
