package file

import (
	"context"
	"fmt"
	"os"

	"pushdown/internal/datasource"
	"pushdown/internal/jsonvalue"
)

// Replay serves page n from the n-th file. Pages past the last file are
// empty, which ends ingestion. The size argument is ignored; a recording
// already has whatever page size it was captured with.
type Replay struct{ paths []string }

// NewReplay returns a Replay over paths in page order.
func NewReplay(paths ...string) *Replay {
	return &Replay{paths: append([]string(nil), paths...)}
}

// Len returns the number of recorded pages.
func (r *Replay) Len() int { return len(r.paths) }

// FetchPage implements datasource.PageFetcher.
func (r *Replay) FetchPage(ctx context.Context, page, _ int) (datasource.Page, error) {
	if err := ctx.Err(); err != nil {
		return datasource.Page{}, err
	}
	if page < 1 {
		return datasource.Page{}, fmt.Errorf("replay: page must be >= 1, got %d", page)
	}
	if page > len(r.paths) {
		return datasource.Page{Body: jsonvalue.NullValue(), Exhausted: true}, nil
	}

	path := r.paths[page-1]
	b, err := os.ReadFile(path)
	if err != nil {
		return datasource.Page{}, fmt.Errorf("replay: open %s: %w", path, err)
	}
	v, err := jsonvalue.Parse(b)
	if err != nil {
		return datasource.Page{}, fmt.Errorf("replay: parse %s: %w", path, err)
	}
	return datasource.Page{Body: v, Exhausted: page == len(r.paths)}, nil
}
