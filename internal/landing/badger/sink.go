// Package badger lands raw JSON records in an embedded Badger key-value
// store. Keys are the table prefix followed by the big-endian sequence, so a
// prefix scan returns records in append order.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pushdown/internal/landing"

	"github.com/dgraph-io/badger/v4"
)

// Options configures the Badger sink.
type Options struct {
	// Path is the database directory. Empty runs in memory.
	Path string
	// Prefix namespaces the keys, normally the landing table name.
	Prefix string
	// Logger for Badger. Nil disables Badger's own logging.
	Logger badger.Logger
}

// Sink is a Badger-backed landing store.
type Sink struct {
	db     *badger.DB
	prefix []byte
}

// envelope is the stored value. Raw is a string so the payload bytes are
// kept exactly as landed.
type envelope struct {
	RunID    string    `json:"run_id"`
	LoadedAt time.Time `json:"loaded_at"`
	Raw      string    `json:"raw"`
	Checksum uint64    `json:"checksum"`
}

// Open opens (or creates) the store.
func Open(opts Options) (*Sink, error) {
	if strings.TrimSpace(opts.Prefix) == "" {
		return nil, fmt.Errorf("badger landing: prefix must not be empty")
	}
	bo := badger.DefaultOptions(opts.Path)
	if opts.Path == "" {
		bo = bo.WithInMemory(true)
	}
	bo = bo.WithLogger(opts.Logger)

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Sink{db: db, prefix: []byte(opts.Prefix + "/")}, nil
}

func (s *Sink) key(seq int64) []byte {
	k := make([]byte, len(s.prefix)+8)
	copy(k, s.prefix)
	binary.BigEndian.PutUint64(k[len(s.prefix):], uint64(seq))
	return k
}

// Create empties the prefix; Badger needs no schema.
func (s *Sink) Create(ctx context.Context) error {
	return s.Truncate(ctx)
}

func (s *Sink) Append(ctx context.Context, recs []landing.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, r := range recs {
			val, err := json.Marshal(envelope{RunID: r.RunID, LoadedAt: r.LoadedAt, Raw: string(r.Raw), Checksum: r.Checksum})
			if err != nil {
				return fmt.Errorf("encode seq=%d: %w", r.Seq, err)
			}
			if err := txn.Set(s.key(r.Seq), val); err != nil {
				return fmt.Errorf("set seq=%d: %w", r.Seq, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger landing: append: %w", err)
	}
	return nil
}

func (s *Sink) ReadAll(ctx context.Context) ([]landing.Record, error) {
	var out []landing.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(s.prefix); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			k := item.Key()
			if len(k) != len(s.prefix)+8 {
				return fmt.Errorf("unexpected key %q", k)
			}
			r := landing.Record{Seq: int64(binary.BigEndian.Uint64(k[len(s.prefix):]))}
			err := item.Value(func(val []byte) error {
				var env envelope
				if err := json.Unmarshal(val, &env); err != nil {
					return fmt.Errorf("decode seq=%d: %w", r.Seq, err)
				}
				r.RunID = env.RunID
				r.LoadedAt = env.LoadedAt.UTC()
				r.Raw = json.RawMessage(env.Raw)
				r.Checksum = env.Checksum
				return nil
			})
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger landing: read: %w", err)
	}
	return out, nil
}

func (s *Sink) Truncate(context.Context) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(s.prefix); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger landing: scan keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("badger landing: delete: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger landing: flush deletes: %w", err)
	}
	return nil
}

func (s *Sink) Close() error { return s.db.Close() }

func init() {
	landing.Register("badger", func(_ context.Context, cfg landing.Config) (landing.Sink, error) {
		return Open(Options{Path: cfg.DSN, Prefix: cfg.Table})
	})
}
