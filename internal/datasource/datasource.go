// Package datasource defines the page-oriented source the ingestion loop
// pulls from.
package datasource

import (
	"context"

	"pushdown/internal/jsonvalue"
)

// Page is one fetched page body.
type Page struct {
	Body jsonvalue.Value

	// Exhausted is set when the source knows this is the last page. The
	// ingestion loop lands Body and stops.
	Exhausted bool
}

// PageFetcher returns page number page (1-indexed) holding up to size
// records.
type PageFetcher interface {
	FetchPage(ctx context.Context, page, size int) (Page, error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc func(ctx context.Context, page, size int) (Page, error)

func (f FetcherFunc) FetchPage(ctx context.Context, page, size int) (Page, error) {
	return f(ctx, page, size)
}
