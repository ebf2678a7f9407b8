// Package pagination provides parallel batch fetching for OpenML list calls.
//
// OpenML lists are paged with limit/offset and do not report the total
// number of results; an offset past the last result is answered with error
// code 372 ("no results"). The batch fetcher requests windows of
// MaxConcurrency pages in parallel and stops at the first such answer.
//
// Example usage:
//
//	config := pagination.DefaultConfig()
//	fetcher := pagination.NewBatchFetcher(b.Dataset(), config)
//	pages, err := fetcher.FetchAll(ctx, resource.ListOptions{
//		Filters: url.Values{"tag": {"study_14"}},
//	})
//
// The batch fetcher:
//   - Sizes pages by BatchSize, capped by MaxResults
//   - Fetches MaxConcurrency pages per window
//   - Returns pages in offset order
//   - Returns the pages fetched so far together with the first error
package pagination
