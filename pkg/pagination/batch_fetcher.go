// Package pagination provides parallel batch fetching for OpenML list calls
package pagination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/Sternrassler/openml-client/pkg/resource"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// NoResultsCode is the error code the server answers with when a list
// offset lies past the last result.
const NoResultsCode = "372"

// Config holds batch fetcher configuration
type Config struct {
	// BatchSize is the number of results requested per page
	BatchSize int
	// MaxConcurrency is the number of pages requested in parallel
	MaxConcurrency int
	// MaxResults stops fetching once this many results were requested (0: all)
	MaxResults int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:      1000,
		MaxConcurrency: 4,
		Timeout:        60 * time.Second,
	}
}

// Lister fetches one page of a list. resource.Endpoint implements it.
type Lister interface {
	List(ctx context.Context, opts resource.ListOptions) (*client.Response, error)
}

// Page is a fetched list page.
type Page struct {
	Offset   int
	Limit    int
	Response *client.Response
}

// BatchFetcher fetches all pages of a list in windows of parallel requests
type BatchFetcher struct {
	lister Lister
	config Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(lister Lister, config Config) *BatchFetcher {
	defaults := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher{
		lister: lister,
		config: config,
	}
}

// IsNoResults reports whether err is the server's "no results" answer.
func IsNoResults(err error) bool {
	var serverErr *resource.ServerError
	return errors.As(err, &serverErr) && serverErr.Code == NoResultsCode
}

// FetchAll lists every page starting at opts.Offset, in offset order.
// opts.Limit is ignored; pages are sized by Config.BatchSize. The listing
// ends at the first page answered with "no results" or an empty JSON list,
// or once MaxResults are covered. Errors of pages past the end are ignored.
func (bf *BatchFetcher) FetchAll(ctx context.Context, opts resource.ListOptions) ([]Page, error) {
	start := time.Now()
	offset := opts.Offset

	var pages []Page
	for window := 0; ; window++ {
		limits := bf.windowLimits(offset, opts.Offset)
		if len(limits) == 0 {
			break
		}

		results := make([]Page, len(limits))
		errs := make([]error, len(limits))

		var g errgroup.Group
		pageOffset := offset
		for i, limit := range limits {
			i, page := i, resource.ListOptions{
				Limit:   limit,
				Offset:  pageOffset,
				Filters: opts.Filters,
			}
			pageOffset += limit

			g.Go(func() error {
				pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
				defer cancel()

				resp, err := bf.lister.List(pageCtx, page)
				results[i] = Page{Offset: page.Offset, Limit: page.Limit, Response: resp}
				errs[i] = err
				return nil
			})
		}
		_ = g.Wait()

		for i, err := range errs {
			switch {
			case IsNoResults(err), err == nil && isEmpty(results[i].Response):
				log.Debug().
					Int("offset", results[i].Offset).
					Int("pages", len(pages)).
					Dur("duration", time.Since(start)).
					Msg("List complete")
				return pages, nil
			case err != nil:
				return pages, fmt.Errorf("page at offset %d (partial data: %d pages): %w", results[i].Offset, len(pages), err)
			}
			pages = append(pages, results[i])
		}

		offset = pageOffset
		log.Debug().
			Int("window", window).
			Int("pages", len(pages)).
			Msg("Fetch progress")
	}

	log.Debug().
		Int("pages", len(pages)).
		Dur("duration", time.Since(start)).
		Msg("List complete (result limit reached)")
	return pages, nil
}

// isEmpty reports whether resp is an empty JSON list.
func isEmpty(resp *client.Response) bool {
	return resp == nil || string(bytes.TrimSpace(resp.Body)) == "[]"
}

// windowLimits returns the page sizes of the next window starting at
// offset, honoring MaxResults counted from first.
func (bf *BatchFetcher) windowLimits(offset, first int) []int {
	limits := make([]int, 0, bf.config.MaxConcurrency)
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		limit := bf.config.BatchSize
		if bf.config.MaxResults > 0 {
			remaining := first + bf.config.MaxResults - offset
			if remaining <= 0 {
				break
			}
			if remaining < limit {
				limit = remaining
			}
		}
		limits = append(limits, limit)
		offset += limit
	}
	return limits
}
