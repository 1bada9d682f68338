// Package ingest pulls pages from a PageFetcher and lands every record, in
// order, before anything downstream looks at them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pushdown/internal/datasource"
	"pushdown/internal/jsonvalue"
	"pushdown/internal/landing"
	"pushdown/internal/metrics"

	"golang.org/x/time/rate"
)

// DefaultWrapperKeys are the envelope fields checked, in order, for the
// record array of an object page body.
var DefaultWrapperKeys = []string{"data", "results", "items", "records", "rows", "value", "content", "entries"}

// Options configures one ingestion run.
type Options struct {
	// Job labels metrics.
	Job      string
	RunID    string
	PageSize int
	// MaxPages bounds the number of page requests.
	MaxPages int

	// WrapperKeys are checked after DefaultWrapperKeys.
	WrapperKeys []string

	// Limiter, when set, is waited on before every page request.
	Limiter *rate.Limiter

	// Now stamps LoadedAt; time.Now when nil.
	Now func() time.Time
}

// Result summarizes a run.
type Result struct {
	// Pages is the number of pages requested, including a final empty one.
	Pages   int
	Records int64
	// HitPageLimit is set when MaxPages stopped the loop before the source
	// reported exhaustion.
	HitPageLimit bool
}

// FetchError is a failed page request. It aborts the run; pages landed
// before it stay landed.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("ingest: fetch page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err carries a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Run requests pages 1, 2, ... and appends each non-empty batch to sink
// before requesting the next page. It stops on the first empty batch, on a
// page flagged Exhausted (after landing it), or after MaxPages requests.
func Run(ctx context.Context, fetcher datasource.PageFetcher, sink landing.Sink, opts Options) (Result, error) {
	var res Result
	if fetcher == nil || sink == nil {
		return res, fmt.Errorf("ingest: fetcher and sink are required")
	}
	if opts.PageSize <= 0 {
		return res, fmt.Errorf("ingest: page size must be positive, got %d", opts.PageSize)
	}
	if opts.MaxPages <= 0 {
		return res, fmt.Errorf("ingest: max pages must be positive, got %d", opts.MaxPages)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	keys := append(append([]string(nil), DefaultWrapperKeys...), opts.WrapperKeys...)

	var seq int64
	for page := 1; page <= opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return res, fmt.Errorf("ingest: pace page %d: %w", page, err)
			}
		}

		p, err := fetcher.FetchPage(ctx, page, opts.PageSize)
		res.Pages++
		metrics.RecordPages(opts.Job, 1)
		if err != nil {
			return res, &FetchError{Page: page, Err: err}
		}

		batch := Normalize(p.Body, keys)
		if len(batch) == 0 {
			return res, nil
		}

		loadedAt := now()
		recs := make([]landing.Record, len(batch))
		for i, v := range batch {
			seq++
			recs[i] = landing.NewRecord(seq, opts.RunID, loadedAt, v)
		}
		if err := sink.Append(ctx, recs); err != nil {
			return res, fmt.Errorf("ingest: land page %d: %w", page, err)
		}
		res.Records += int64(len(recs))
		metrics.RecordRow(opts.Job, "landed", int64(len(recs)))

		if p.Exhausted {
			return res, nil
		}
	}
	res.HitPageLimit = true
	return res, nil
}

// Normalize turns a page body into its records: an array yields its
// elements, an object holding an array under one of keys yields that array
// (first key wins), null yields nothing, anything else is one record. An
// object with no wrapper array but a wrapper key set to null, such as
// {"data":null,"total":0}, is an empty page.
func Normalize(body jsonvalue.Value, keys []string) []jsonvalue.Value {
	switch body.Kind() {
	case jsonvalue.Null:
		return nil
	case jsonvalue.Array:
		return body.Elements()
	case jsonvalue.Object:
		nullWrapper := false
		for _, k := range keys {
			v, ok := body.Get(k)
			if !ok {
				continue
			}
			switch v.Kind() {
			case jsonvalue.Array:
				return v.Elements()
			case jsonvalue.Null:
				nullWrapper = true
			}
		}
		if nullWrapper {
			return nil
		}
	}
	return []jsonvalue.Value{body}
}
