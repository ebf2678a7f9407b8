package resource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/openml-client/pkg/cache"
	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Transport is the part of *client.Client an endpoint needs.
type Transport interface {
	Get(ctx context.Context, path string, opts client.GetOptions) (*client.Response, error)
	Post(ctx context.Context, path string, opts client.PostOptions) (*client.Response, error)
	Delete(ctx context.Context, path string) (*client.Response, error)
	Invalidate(ctx context.Context, path string, params url.Values) error
	Cache() *cache.Cache
}

// Endpoint exposes the operations of one resource type in one API version.
// Unsupported operations fail with a *NotSupportedError.
type Endpoint interface {
	ResourceType() ResourceType
	APIVersion() APIVersion

	// Get fetches one resource. Responses are cached.
	Get(ctx context.Context, id int) (*client.Response, error)

	// List fetches a listing. Responses are not cached.
	List(ctx context.Context, opts ListOptions) (*client.Response, error)

	// Delete removes a resource and drops its cached representation.
	Delete(ctx context.Context, id int) error

	// Publish uploads files to path and returns the id of the new resource.
	Publish(ctx context.Context, path string, files []client.File) (int, error)

	// Tag and Untag change the tags of a resource and return the tags it
	// carries afterwards.
	Tag(ctx context.Context, id int, tag string) ([]string, error)
	Untag(ctx context.Context, id int, tag string) ([]string, error)

	// Download stores the body of rawURL below the cache directory and
	// returns the file path. An existing file is returned without any
	// network access.
	Download(ctx context.Context, rawURL string, opts DownloadOptions) (string, error)
}

// ListOptions holds listing filters. Zero Limit and Offset are omitted.
type ListOptions struct {
	Limit   int
	Offset  int
	Filters url.Values
}

// Option configures an endpoint.
type Option func(*endpoint)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *endpoint) {
		e.logger = logger
	}
}

type endpoint struct {
	version   APIVersion
	resource  ResourceType
	caps      Capabilities
	transport Transport
	logger    zerolog.Logger
}

// New creates the endpoint of resource type rt for version, backed by
// transport.
func New(version APIVersion, rt ResourceType, transport Transport, opts ...Option) (Endpoint, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	caps, ok := Lookup(version, rt)
	if !ok {
		return nil, fmt.Errorf("no endpoint registered for %s %s", version, rt)
	}

	e := &endpoint{
		version:   version,
		resource:  rt,
		caps:      caps,
		transport: transport,
		logger:    log.With().Str("component", "resource").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().
		Str("api_version", string(version)).
		Str("resource", string(rt)).
		Logger()

	return e, nil
}

func (e *endpoint) ResourceType() ResourceType {
	return e.resource
}

func (e *endpoint) APIVersion() APIVersion {
	return e.version
}

// check returns a *NotSupportedError if op is not in the capability table.
func (e *endpoint) check(op Operation) error {
	if e.caps.Supports(op) {
		return nil
	}
	return &NotSupportedError{Version: e.version, Resource: e.resource, Operation: op}
}

// fail adds the endpoint context to err.
func (e *endpoint) fail(op Operation, err error) error {
	return &OperationError{
		Version:   e.version,
		Resource:  e.resource,
		Operation: op,
		Err:       asServerError(err),
	}
}

func (e *endpoint) itemPath(id int) string {
	return e.caps.Segment + "/" + strconv.Itoa(id)
}

func (e *endpoint) Get(ctx context.Context, id int) (*client.Response, error) {
	if err := e.check(OpGet); err != nil {
		return nil, err
	}
	resp, err := e.transport.Get(ctx, e.itemPath(id), client.GetOptions{UseCache: true})
	if err != nil {
		return nil, e.fail(OpGet, err)
	}
	return resp, nil
}

func (e *endpoint) List(ctx context.Context, opts ListOptions) (*client.Response, error) {
	if err := e.check(OpList); err != nil {
		return nil, err
	}

	var (
		path   string
		params url.Values
	)
	switch e.version {
	case V1:
		path = e.listPathV1(opts)
	default:
		path, params = e.caps.Segment+"/list", listParams(opts)
	}

	resp, err := e.transport.Get(ctx, path, client.GetOptions{Params: params})
	if err != nil {
		return nil, e.fail(OpList, err)
	}
	return resp, nil
}

// listPathV1 encodes filters as path pairs: data/list/limit/10/tag/study_14.
func (e *endpoint) listPathV1(opts ListOptions) string {
	parts := []string{e.caps.Segment, "list"}
	if opts.Limit > 0 {
		parts = append(parts, "limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		parts = append(parts, "offset", strconv.Itoa(opts.Offset))
	}
	for _, name := range sortedKeys(opts.Filters) {
		for _, value := range opts.Filters[name] {
			parts = append(parts, url.PathEscape(name), url.PathEscape(value))
		}
	}
	return strings.Join(parts, "/")
}

// listParams encodes filters as query parameters.
func listParams(opts ListOptions) url.Values {
	params := url.Values{}
	for name, values := range opts.Filters {
		params[name] = append([]string(nil), values...)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}
	return params
}

func (e *endpoint) Delete(ctx context.Context, id int) error {
	if err := e.check(OpDelete); err != nil {
		return err
	}
	if _, err := e.transport.Delete(ctx, e.itemPath(id)); err != nil {
		return e.fail(OpDelete, err)
	}
	e.invalidate(ctx, id)
	return nil
}

func (e *endpoint) Publish(ctx context.Context, path string, files []client.File) (int, error) {
	if err := e.check(OpPublish); err != nil {
		return 0, err
	}
	resp, err := e.transport.Post(ctx, path, client.PostOptions{Files: files})
	if err != nil {
		return 0, e.fail(OpPublish, err)
	}

	_, values, err := scanXML(resp.Body, "id")
	if err != nil {
		return 0, e.fail(OpPublish, err)
	}
	id, err := strconv.Atoi(first(values["id"]))
	if err != nil {
		return 0, e.fail(OpPublish, fmt.Errorf("response carries no resource id: %w", err))
	}

	e.logger.Info().Int("id", id).Msg("Published resource")
	return id, nil
}

func (e *endpoint) Tag(ctx context.Context, id int, tag string) ([]string, error) {
	return e.changeTag(ctx, OpTag, id, tag)
}

func (e *endpoint) Untag(ctx context.Context, id int, tag string) ([]string, error) {
	return e.changeTag(ctx, OpUntag, id, tag)
}

// changeTag posts {<segment>_id, tag} to <segment>/tag or <segment>/untag.
func (e *endpoint) changeTag(ctx context.Context, op Operation, id int, tag string) ([]string, error) {
	if err := e.check(op); err != nil {
		return nil, err
	}
	if tag == "" {
		return nil, e.fail(op, fmt.Errorf("tag must not be empty"))
	}

	form := url.Values{
		e.caps.Segment + "_id": []string{strconv.Itoa(id)},
		"tag":                  []string{tag},
	}
	resp, err := e.transport.Post(ctx, e.caps.Segment+"/"+string(op), client.PostOptions{Data: form})
	if err != nil {
		return nil, e.fail(op, err)
	}
	e.invalidate(ctx, id)

	_, values, err := scanXML(resp.Body, "tag")
	if err != nil {
		return nil, e.fail(op, err)
	}
	tags := values["tag"]
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// invalidate drops the cached representation of a changed resource.
func (e *endpoint) invalidate(ctx context.Context, id int) {
	if err := e.transport.Invalidate(ctx, e.itemPath(id), nil); err != nil {
		e.logger.Warn().Err(err).Int("id", id).Msg("Failed to invalidate cached resource")
	}
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
