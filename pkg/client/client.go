// Package client provides the HTTP transport of the OpenML client: URL
// resolution against a versioned API root, retries driven by a RetryPolicy,
// the optional response cache, and typed errors.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/openml-client/pkg/cache"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version is the client version reported in the User-Agent header.
const Version = "0.1.0"

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "openml-go/" + Version

const apiKeyParam = "api_key"

// Client talks to one API version of one server. It is safe for concurrent
// use.
type Client struct {
	http   *retryablehttp.Client
	base   *url.URL
	config Config
	retry  RetryConfig
	logger zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Version labels logs and metrics ("v1", "v2").
	Version string

	// Server is the absolute server URL, BasePath the API root below it.
	Server   string
	BasePath string

	// APIKey is sent as api_key query parameter to the configured server.
	// It never becomes part of a cache key.
	APIKey string

	// Timeout applies to every single attempt.
	Timeout time.Duration

	// Retries is the number of retries after the first attempt.
	Retries int
	Policy  RetryPolicy

	// Cache is optional; without it Get never caches.
	Cache *cache.Cache

	UserAgent string
	Logger    *zerolog.Logger

	// HTTPClient and Backoff replace the defaults (for testing).
	HTTPClient *http.Client
	Backoff    retryablehttp.Backoff
}

// DefaultConfig returns a configuration with the HUMAN policy defaults.
func DefaultConfig(server, basePath string) Config {
	return Config{
		Server:    server,
		BasePath:  basePath,
		Timeout:   10 * time.Second,
		Retries:   RetryConfigForPolicy(PolicyHuman).DefaultRetries,
		Policy:    PolicyHuman,
		UserAgent: DefaultUserAgent,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("server is required")
	}
	server, err := url.Parse(cfg.Server)
	if err != nil || server.Scheme == "" || server.Host == "" {
		return nil, fmt.Errorf("server must be an absolute URL (got %q)", cfg.Server)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0 (got %d)", cfg.Retries)
	}
	if !cfg.Policy.Valid() {
		return nil, fmt.Errorf("unknown retry policy %q", cfg.Policy)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	base, err := resolveBase(server, cfg.BasePath)
	if err != nil {
		return nil, err
	}

	logger := log.With().Str("component", "openml-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("version", cfg.Version).Logger()

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		httpClient = &copied
	}
	httpClient.Timeout = cfg.Timeout

	c := &Client{
		base:   base,
		config: cfg,
		retry:  RetryConfigForPolicy(cfg.Policy),
		logger: logger,
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.Logger = leveledLogger{logger: logger}
	rc.RetryMax = cfg.Retries
	rc.RetryWaitMin = c.retry.InitialBackoff
	rc.RetryWaitMax = c.retry.MaxBackoff
	rc.CheckRetry = c.checkRetry
	rc.Backoff = c.backoff
	if cfg.Backoff != nil {
		rc.Backoff = cfg.Backoff
	}
	rc.RequestLogHook = c.logAttempt
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.http = rc

	return c, nil
}

// resolveBase joins the server URL and the base path into the API root.
func resolveBase(server *url.URL, basePath string) (*url.URL, error) {
	root := *server
	if !strings.HasSuffix(root.Path, "/") {
		root.Path += "/"
	}

	basePath = strings.TrimLeft(basePath, "/")
	if basePath != "" && !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	ref, err := url.Parse(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base path %q: %w", basePath, err)
	}
	return root.ResolveReference(ref), nil
}

// BaseURL returns the API root all relative paths resolve against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// APIVersion returns the configured version label.
func (c *Client) APIVersion() string {
	return c.config.Version
}

// Cache returns the response cache, or nil.
func (c *Client) Cache() *cache.Cache {
	return c.config.Cache
}

// GetOptions controls a GET request.
type GetOptions struct {
	Params url.Values

	// UseCache serves a valid cached response and stores live responses.
	UseCache bool

	// ResetCache skips the lookup but still stores the live response when
	// UseCache is set.
	ResetCache bool

	// MD5Checksum is the expected hex digest of the body, if any.
	MD5Checksum string
}

// Get performs a GET request. path is resolved against the API root unless
// it is an absolute URL.
//
// With UseCache and without ResetCache, a valid cached response is returned
// without network access. Otherwise the request goes to the server, and with
// UseCache the fresh response replaces the cached one. Failing to store a
// response is logged, not returned.
func (c *Client) Get(ctx context.Context, path string, opts GetOptions) (*Response, error) {
	target, err := c.resolve(path, opts.Params)
	if err != nil {
		return nil, err
	}

	useCache := opts.UseCache && c.config.Cache != nil
	var key cache.Key
	if useCache {
		key, err = cache.NewKey(target.String(), nil)
		if err != nil {
			return nil, err
		}
		if !opts.ResetCache {
			if resp, ok := c.fromCache(ctx, key, opts.MD5Checksum); ok {
				return resp, nil
			}
		}
	}

	resp, err := c.do(ctx, http.MethodGet, target, nil, "")
	if err != nil {
		return nil, err
	}

	if opts.MD5Checksum != "" {
		if err := verifyChecksum(resp, opts.MD5Checksum); err != nil {
			return nil, err
		}
	}

	if useCache {
		if err := c.config.Cache.Save(ctx, key, resp.entry()); err != nil {
			c.logger.Warn().Err(err).Str("key", string(key)).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// fromCache returns the cached response for key if it is valid and matches
// the checksum.
func (c *Client) fromCache(ctx context.Context, key cache.Key, checksum string) (*Response, bool) {
	entry, err := c.config.Cache.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", string(key)).Msg("Cache lookup failed")
		}
		return nil, false
	}

	resp := newResponse(entry)
	resp.FromCache = true
	resp.StoredAt = entry.StoredAt
	if checksum != "" {
		if err := verifyChecksum(resp, checksum); err != nil {
			c.logger.Warn().Err(err).Str("key", string(key)).Msg("Cached body failed checksum, refetching")
			return nil, false
		}
	}
	return resp, true
}

// File is a file part of a multipart POST.
type File struct {
	Field   string
	Name    string
	Content []byte
}

// PostOptions holds the form of a POST request. Without files the form is
// URL-encoded, otherwise it is sent as multipart/form-data.
type PostOptions struct {
	Data  url.Values
	Files []File
}

// Post performs a POST request. Responses are never cached.
func (c *Client) Post(ctx context.Context, path string, opts PostOptions) (*Response, error) {
	target, err := c.resolve(path, nil)
	if err != nil {
		return nil, err
	}
	body, contentType, err := encodeForm(opts)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, target, body, contentType)
}

// Delete performs a DELETE request. Responses are never cached.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	target, err := c.resolve(path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodDelete, target, nil, "")
}

// Invalidate drops the cached GET response for path and params.
func (c *Client) Invalidate(ctx context.Context, path string, params url.Values) error {
	if c.config.Cache == nil {
		return nil
	}
	target, err := c.resolve(path, params)
	if err != nil {
		return err
	}
	key, err := cache.NewKey(target.String(), nil)
	if err != nil {
		return err
	}
	return c.config.Cache.Invalidate(ctx, key)
}

// resolve builds the request URL without api_key.
func (c *Client) resolve(path string, params url.Values) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}

	target := ref
	if !ref.IsAbs() {
		rel, err := url.Parse(strings.TrimLeft(path, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", path, err)
		}
		target = c.base.ResolveReference(rel)
	}

	q := target.Query()
	for name, values := range params {
		for _, v := range values {
			q.Add(name, v)
		}
	}
	q.Del(apiKeyParam)
	target.RawQuery = q.Encode()

	return target, nil
}

// withAPIKey adds the API key to URLs on the configured server.
func (c *Client) withAPIKey(target *url.URL) string {
	if c.config.APIKey == "" || target.Host != c.base.Host {
		return target.String()
	}
	u := *target
	q := u.Query()
	q.Set(apiKeyParam, c.config.APIKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// do executes a request through the retry loop and reads the response.
func (c *Client) do(ctx context.Context, method string, target *url.URL, body []byte, contentType string) (*Response, error) {
	redacted := target.String()
	state := &attemptState{}
	ctx = context.WithValue(ctx, attemptStateKey{}, state)

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.withAPIKey(target), rawBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", redacted).
		Msg("Executing request")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	requestDuration.WithLabelValues(c.config.Version, method).Observe(elapsed.Seconds())

	var entry *cache.Entry
	if resp != nil {
		var readErr error
		entry, readErr = cache.ResponseToEntry(resp, elapsed)
		if readErr != nil && err == nil {
			err = readErr
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		requestsTotal.WithLabelValues(c.config.Version, method, "canceled").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, redacted, ctxErr)
	}

	redactURLError(err)

	apiErr := &APIError{
		Method:    method,
		URL:       redacted,
		Attempts:  max(state.attempts, 1),
		Exhausted: state.retryable,
		Err:       err,
	}
	if resp != nil {
		apiErr.StatusCode = resp.StatusCode
		apiErr.ErrorClass = classifyStatus(resp.StatusCode)
		if entry != nil {
			apiErr.Body = entry.Body
		}
	}
	if err != nil {
		apiErr.ErrorClass = classifyError(err)
	}

	switch {
	case apiErr.Exhausted:
		retryExhaustedTotal.WithLabelValues(c.config.Version).Inc()
		return nil, c.fail(apiErr)
	case err != nil, resp.StatusCode >= 400:
		return nil, c.fail(apiErr)
	}

	requestsTotal.WithLabelValues(c.config.Version, method, strconv.Itoa(resp.StatusCode)).Inc()

	entry.URL = finalURL(resp, redacted)
	live := newResponse(entry)
	live.Header = resp.Header
	return live, nil
}

// fail records a failed request.
func (c *Client) fail(apiErr *APIError) error {
	status := "error"
	if apiErr.StatusCode != 0 {
		status = strconv.Itoa(apiErr.StatusCode)
	}
	requestsTotal.WithLabelValues(c.config.Version, apiErr.Method, status).Inc()
	errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

	c.logger.Warn().
		Str("method", apiErr.Method).
		Str("url", apiErr.URL).
		Int("status", apiErr.StatusCode).
		Str("error_class", string(apiErr.ErrorClass)).
		Int("attempts", apiErr.Attempts).
		Bool("exhausted", apiErr.Exhausted).
		Msg("Request failed")

	return apiErr
}

// redactURLError masks the API key inside a *url.Error.
func redactURLError(err error) {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = RedactURL(urlErr.URL)
	}
}

func finalURL(resp *http.Response, fallback string) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return fallback
	}
	return stripAPIKey(resp.Request.URL)
}

// encodeForm serializes a POST form.
func encodeForm(opts PostOptions) ([]byte, string, error) {
	if len(opts.Files) == 0 {
		if len(opts.Data) == 0 {
			return nil, "", nil
		}
		return []byte(opts.Data.Encode()), "application/x-www-form-urlencoded", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(opts.Data))
	for name := range opts.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range opts.Data[name] {
			if err := w.WriteField(name, v); err != nil {
				return nil, "", fmt.Errorf("write form field %s: %w", name, err)
			}
		}
	}

	for _, f := range opts.Files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
