// Package landing holds raw JSON records between ingestion and flattening.
// A Sink is single-writer for the duration of a run: the ingestion loop
// appends page batches, the flatten step reads everything back once, and
// cleanup truncates.
package landing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pushdown/internal/jsonvalue"

	"github.com/zeebo/xxh3"
)

// ErrChecksum reports a landed record whose payload no longer matches the
// checksum computed when it was appended.
var ErrChecksum = errors.New("landing: checksum mismatch")

// Record is one landed raw JSON value.
type Record struct {
	// Seq is the append sequence, strictly increasing within a run.
	Seq      int64
	RunID    string
	LoadedAt time.Time
	Raw      json.RawMessage
	Checksum uint64
}

// NewRecord encodes v and stamps it with its sequence and checksum.
func NewRecord(seq int64, runID string, loadedAt time.Time, v jsonvalue.Value) Record {
	raw := v.Raw()
	return Record{
		Seq:      seq,
		RunID:    runID,
		LoadedAt: loadedAt.UTC(),
		Raw:      raw,
		Checksum: xxh3.Hash(raw),
	}
}

// Verify checks the payload against its checksum.
func (r Record) Verify() error {
	if got := xxh3.Hash(r.Raw); got != r.Checksum {
		return fmt.Errorf("%w: seq=%d", ErrChecksum, r.Seq)
	}
	return nil
}

// Value verifies and decodes the payload.
func (r Record) Value() (jsonvalue.Value, error) {
	if err := r.Verify(); err != nil {
		return jsonvalue.Value{}, err
	}
	v, err := jsonvalue.Parse(r.Raw)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("landing: decode seq=%d: %w", r.Seq, err)
	}
	return v, nil
}

// Values decodes every record in order.
func Values(recs []Record) ([]jsonvalue.Value, error) {
	out := make([]jsonvalue.Value, 0, len(recs))
	for _, r := range recs {
		v, err := r.Value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Sink is the landing store.
type Sink interface {
	// Create makes sure the store exists and is empty.
	Create(ctx context.Context) error

	// Append durably adds one page batch. It returns only after the batch
	// is visible to ReadAll.
	Append(ctx context.Context, recs []Record) error

	// ReadAll returns every landed record ordered by Seq.
	ReadAll(ctx context.Context) ([]Record, error)

	// Truncate removes all landed records.
	Truncate(ctx context.Context) error

	Close() error
}

// Config is the backend-independent sink configuration.
type Config struct {
	Kind string
	// DSN is a driver DSN, a badger directory or a mongodb:// URI.
	DSN string
	// Table is the table, key prefix or collection name.
	Table string
	// Database is used by the mongo sink.
	Database string
}

// Factory opens a Sink for cfg.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a sink available under kind, replacing any earlier one.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the sink registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Sink, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported landing.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
