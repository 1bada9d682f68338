// Package mongo lands raw JSON records in a MongoDB collection, one
// document per record keyed by sequence.
package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pushdown/internal/landing"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// document is the stored shape. Raw is kept as a string; a BSON sub-document
// would not preserve the payload bytes.
type document struct {
	Seq      int64     `bson:"_id"`
	RunID    string    `bson:"run_id"`
	LoadedAt time.Time `bson:"loaded_at"`
	Raw      string    `bson:"raw"`
	Checksum int64     `bson:"checksum"`
}

func toDocument(r landing.Record) document {
	return document{Seq: r.Seq, RunID: r.RunID, LoadedAt: r.LoadedAt, Raw: string(r.Raw), Checksum: int64(r.Checksum)}
}

func (d document) record() landing.Record {
	return landing.Record{
		Seq:      d.Seq,
		RunID:    d.RunID,
		LoadedAt: d.LoadedAt.UTC(),
		Raw:      json.RawMessage(d.Raw),
		Checksum: uint64(d.Checksum),
	}
}

// Sink writes to database.collection.
type Sink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open connects to uri and pings the server.
func Open(ctx context.Context, uri, database, collection string) (*Sink, error) {
	if strings.TrimSpace(database) == "" || strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("mongo landing: database and collection are required")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo landing: ping: %w", err)
	}
	return &Sink{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// Create empties the collection; MongoDB creates it on first insert.
func (s *Sink) Create(ctx context.Context) error {
	return s.Truncate(ctx)
}

func (s *Sink) Append(ctx context.Context, recs []landing.Record) error {
	if len(recs) == 0 {
		return nil
	}
	docs := make([]any, len(recs))
	for i, r := range recs {
		docs[i] = toDocument(r)
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo landing: insert: %w", err)
	}
	return nil
}

func (s *Sink) ReadAll(ctx context.Context) ([]landing.Record, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo landing: find: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo landing: decode: %w", err)
	}
	out := make([]landing.Record, len(docs))
	for i, d := range docs {
		out[i] = d.record()
	}
	return out, nil
}

func (s *Sink) Truncate(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("mongo landing: delete: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func init() {
	landing.Register("mongo", func(ctx context.Context, cfg landing.Config) (landing.Sink, error) {
		return Open(ctx, cfg.DSN, cfg.Database, cfg.Table)
	})
}
