package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/Sternrassler/openml-client/pkg/resource"
)

// fakeLister serves total results and answers "no results" past the end.
type fakeLister struct {
	mu      sync.Mutex
	total   int
	failAt  int
	calls   []resource.ListOptions
	jsonEnd bool
}

func (f *fakeLister) List(ctx context.Context, opts resource.ListOptions) (*client.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()

	if f.failAt > 0 && opts.Offset == f.failAt {
		return nil, errors.New("connection reset")
	}
	if opts.Offset >= f.total {
		if f.jsonEnd {
			return &client.Response{StatusCode: 200, Body: []byte("[]\n")}, nil
		}
		return nil, &resource.OperationError{
			Version:   resource.V1,
			Resource:  resource.Dataset,
			Operation: resource.OpList,
			Err:       &resource.ServerError{StatusCode: 412, Code: NoResultsCode, Message: "No results"},
		}
	}
	return &client.Response{StatusCode: 200, Body: []byte(fmt.Sprintf("offset=%d limit=%d", opts.Offset, opts.Limit))}, nil
}

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(&fakeLister{}, Config{})

	if bf.config.BatchSize != 1000 {
		t.Errorf("Expected batch size 1000, got %d", bf.config.BatchSize)
	}
	if bf.config.MaxConcurrency != 4 {
		t.Errorf("Expected concurrency 4, got %d", bf.config.MaxConcurrency)
	}
	if bf.config.Timeout <= 0 {
		t.Error("Expected a default timeout")
	}
}

func TestFetchAll(t *testing.T) {
	tests := []struct {
		name      string
		lister    *fakeLister
		config    Config
		opts      resource.ListOptions
		wantPages []int // offsets
	}{
		{
			name:      "stops_at_no_results",
			lister:    &fakeLister{total: 25},
			config:    Config{BatchSize: 10, MaxConcurrency: 2},
			wantPages: []int{0, 10, 20},
		},
		{
			name:      "stops_at_empty_json_list",
			lister:    &fakeLister{total: 20, jsonEnd: true},
			config:    Config{BatchSize: 10, MaxConcurrency: 3},
			wantPages: []int{0, 10},
		},
		{
			name:      "empty_list",
			lister:    &fakeLister{total: 0},
			config:    Config{BatchSize: 10, MaxConcurrency: 2},
			wantPages: nil,
		},
		{
			name:      "max_results",
			lister:    &fakeLister{total: 100},
			config:    Config{BatchSize: 10, MaxConcurrency: 2, MaxResults: 25},
			wantPages: []int{0, 10, 20},
		},
		{
			name:      "start_offset",
			lister:    &fakeLister{total: 30},
			config:    Config{BatchSize: 10, MaxConcurrency: 4},
			opts:      resource.ListOptions{Offset: 5},
			wantPages: []int{5, 15, 25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := NewBatchFetcher(tt.lister, tt.config).FetchAll(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("FetchAll failed: %v", err)
			}

			if len(pages) != len(tt.wantPages) {
				t.Fatalf("Expected %d pages, got %d", len(tt.wantPages), len(pages))
			}
			for i, page := range pages {
				if page.Offset != tt.wantPages[i] {
					t.Errorf("Page %d: expected offset %d, got %d", i, tt.wantPages[i], page.Offset)
				}
				if page.Response == nil {
					t.Errorf("Page %d has no response", i)
				}
			}
		})
	}
}

func TestFetchAll_MaxResultsTrimsLastPage(t *testing.T) {
	lister := &fakeLister{total: 100}
	pages, err := NewBatchFetcher(lister, Config{BatchSize: 10, MaxConcurrency: 2, MaxResults: 25}).
		FetchAll(context.Background(), resource.ListOptions{})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if last := pages[len(pages)-1]; last.Limit != 5 {
		t.Errorf("Expected last page limit 5, got %d", last.Limit)
	}
	if len(lister.calls) != 3 {
		t.Errorf("Expected 3 list calls, got %d", len(lister.calls))
	}
}

func TestFetchAll_PassesFilters(t *testing.T) {
	lister := &fakeLister{total: 5}
	filters := map[string][]string{"tag": {"study_14"}}

	_, err := NewBatchFetcher(lister, Config{BatchSize: 10, MaxConcurrency: 1}).
		FetchAll(context.Background(), resource.ListOptions{Filters: filters, Limit: 3})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	for _, call := range lister.calls {
		if call.Filters.Get("tag") != "study_14" {
			t.Errorf("Expected tag filter on every page, got %v", call.Filters)
		}
		if call.Limit != 10 {
			t.Errorf("Expected batch size as limit, got %d", call.Limit)
		}
	}
}

func TestFetchAll_Error(t *testing.T) {
	lister := &fakeLister{total: 100, failAt: 20}
	pages, err := NewBatchFetcher(lister, Config{BatchSize: 10, MaxConcurrency: 4}).
		FetchAll(context.Background(), resource.ListOptions{})

	if err == nil {
		t.Fatal("Expected error")
	}
	if len(pages) != 2 {
		t.Errorf("Expected 2 partial pages, got %d", len(pages))
	}
}

func TestFetchAll_ErrorPastEndIgnored(t *testing.T) {
	lister := &fakeLister{total: 10, failAt: 20}
	pages, err := NewBatchFetcher(lister, Config{BatchSize: 10, MaxConcurrency: 4}).
		FetchAll(context.Background(), resource.ListOptions{})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(pages) != 1 {
		t.Errorf("Expected 1 page, got %d", len(pages))
	}
}

func TestIsNoResults(t *testing.T) {
	if !IsNoResults(&resource.ServerError{Code: "372"}) {
		t.Error("Expected code 372 to mean no results")
	}
	if IsNoResults(&resource.ServerError{Code: "151"}) {
		t.Error("Expected code 151 not to mean no results")
	}
	if IsNoResults(errors.New("boom")) {
		t.Error("Expected plain error not to mean no results")
	}
}
