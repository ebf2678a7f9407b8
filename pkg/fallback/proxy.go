package fallback

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/Sternrassler/openml-client/pkg/resource"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Proxy implements resource.Endpoint over a preferred and a secondary
// endpoint. It holds no state besides the two endpoints and is safe for
// concurrent use when they are.
type Proxy struct {
	preferred resource.Endpoint
	secondary resource.Endpoint
	logger    zerolog.Logger
}

var _ resource.Endpoint = (*Proxy)(nil)

// Option configures a Proxy.
type Option func(*Proxy)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Proxy) {
		p.logger = logger
	}
}

// New creates a proxy. Both endpoints must be non-nil and serve the same
// resource type.
func New(preferred, secondary resource.Endpoint, opts ...Option) (*Proxy, error) {
	if preferred == nil || secondary == nil {
		return nil, fmt.Errorf("fallback: preferred and secondary endpoints are required")
	}
	if preferred.ResourceType() != secondary.ResourceType() {
		return nil, fmt.Errorf("fallback: resource type mismatch (%s vs %s)",
			preferred.ResourceType(), secondary.ResourceType())
	}

	p := &Proxy{
		preferred: preferred,
		secondary: secondary,
		logger:    log.With().Str("component", "fallback").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("resource", string(preferred.ResourceType())).Logger()

	return p, nil
}

// Preferred returns the endpoint tried first.
func (p *Proxy) Preferred() resource.Endpoint {
	return p.preferred
}

// Secondary returns the fallback endpoint.
func (p *Proxy) Secondary() resource.Endpoint {
	return p.secondary
}

// ResourceType returns the shared resource type.
func (p *Proxy) ResourceType() resource.ResourceType {
	return p.preferred.ResourceType()
}

// APIVersion returns the version of the preferred endpoint.
func (p *Proxy) APIVersion() resource.APIVersion {
	return p.preferred.APIVersion()
}

func (p *Proxy) Get(ctx context.Context, id int) (*client.Response, error) {
	return call(p, resource.OpGet, func(e resource.Endpoint) (*client.Response, error) {
		return e.Get(ctx, id)
	})
}

func (p *Proxy) List(ctx context.Context, opts resource.ListOptions) (*client.Response, error) {
	return call(p, resource.OpList, func(e resource.Endpoint) (*client.Response, error) {
		return e.List(ctx, opts)
	})
}

func (p *Proxy) Delete(ctx context.Context, id int) error {
	_, err := call(p, resource.OpDelete, func(e resource.Endpoint) (struct{}, error) {
		return struct{}{}, e.Delete(ctx, id)
	})
	return err
}

func (p *Proxy) Publish(ctx context.Context, path string, files []client.File) (int, error) {
	return call(p, resource.OpPublish, func(e resource.Endpoint) (int, error) {
		return e.Publish(ctx, path, files)
	})
}

func (p *Proxy) Tag(ctx context.Context, id int, tag string) ([]string, error) {
	return call(p, resource.OpTag, func(e resource.Endpoint) ([]string, error) {
		return e.Tag(ctx, id, tag)
	})
}

func (p *Proxy) Untag(ctx context.Context, id int, tag string) ([]string, error) {
	return call(p, resource.OpUntag, func(e resource.Endpoint) ([]string, error) {
		return e.Untag(ctx, id, tag)
	})
}

func (p *Proxy) Download(ctx context.Context, rawURL string, opts resource.DownloadOptions) (string, error) {
	return call(p, resource.OpDownload, func(e resource.Endpoint) (string, error) {
		return e.Download(ctx, rawURL, opts)
	})
}

// call runs fn on the preferred endpoint and, if that reports the operation
// as unsupported, on the secondary endpoint.
func call[T any](p *Proxy, op resource.Operation, fn func(resource.Endpoint) (T, error)) (T, error) {
	result, err := fn(p.preferred)
	if err == nil || !errors.Is(err, resource.ErrNotSupported) {
		return result, err
	}

	from, to := p.preferred.APIVersion(), p.secondary.APIVersion()
	p.logger.Debug().
		Str("operation", string(op)).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Operation not supported, falling back")
	FallbackTotal.WithLabelValues(string(p.ResourceType()), string(op), string(from), string(to)).Inc()

	result, secondaryErr := fn(p.secondary)
	if secondaryErr != nil {
		var zero T
		return zero, &Error{
			Resource:  p.ResourceType(),
			Operation: op,
			From:      from,
			To:        to,
			Preferred: err,
			Secondary: secondaryErr,
		}
	}
	return result, nil
}
