// Package pipeline runs one pushdown: land every page, infer the schema from
// the landed records, build the secured flat table, populate it and clean
// the landing store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pushdown/internal/config"
	"pushdown/internal/datasource"
	"pushdown/internal/flatten"
	"pushdown/internal/ingest"
	"pushdown/internal/jsonvalue"
	"pushdown/internal/landing"
	"pushdown/internal/metrics"
	"pushdown/internal/policy"
	"pushdown/internal/schema"
	"pushdown/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Default batching between projection and the store.
const (
	DefaultBatchSize     = 1000
	DefaultChannelBuffer = 4096
)

// Deps are the external systems of a run. The caller owns and closes them.
type Deps struct {
	Fetcher datasource.PageFetcher
	Sink    landing.Sink
	Store   storage.Repository
}

// Options are the resolved settings of a run.
type Options struct {
	Job string
	// RunID stamps landed records; a random UUID when empty.
	RunID string
	// Table is the flattened table, optionally schema-qualified.
	Table string

	PageSize    int
	MaxPages    int
	WrapperKeys []string
	Limiter     *rate.Limiter

	Policy policy.Options
	Filter flatten.FilterOptions

	BatchSize     int
	ChannelBuffer int
}

// OptionsFromConfig resolves Options from a pipeline file. p should have had
// defaults applied.
func OptionsFromConfig(p config.Pipeline) Options {
	h := p.Source.HTTP
	o := Options{
		Job:         p.Job,
		Table:       p.Storage.DB.Table,
		PageSize:    h.PageSize,
		MaxPages:    h.MaxPages,
		WrapperKeys: h.WrapperKeys,
		Policy:      policy.Options{ExtraSensitiveTerms: p.Policy.ExtraSensitiveTerms},
		Filter: flatten.FilterOptions{
			Targets:  p.Policy.Filter.Targets,
			Disabled: p.Policy.Filter.Disabled,
		},
		BatchSize:     p.Runtime.BatchSize,
		ChannelBuffer: p.Runtime.ChannelBuffer,
	}
	if h.RequestsPerSecond > 0 {
		o.Limiter = rate.NewLimiter(rate.Limit(h.RequestsPerSecond), 1)
	}
	return o
}

// Run executes one pushdown. On a fetch error the landing store keeps the
// pages landed so far and nothing is flattened or cleaned. The returned
// Report is filled as far as the run got, also on error.
func Run(ctx context.Context, deps Deps, opts Options) (*Report, error) {
	if deps.Fetcher == nil || deps.Sink == nil || deps.Store == nil {
		return nil, errors.New("pipeline: fetcher, sink and store are required")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ChannelBuffer <= 0 {
		opts.ChannelBuffer = DefaultChannelBuffer
	}

	r := &runner{deps: deps, opts: opts, rep: &Report{RunID: opts.RunID, Table: opts.Table}}
	start := time.Now()
	err := r.run(ctx)
	r.rep.Duration = time.Since(start)
	return r.rep, err
}

type runner struct {
	deps Deps
	opts Options
	rep  *Report
}

// step times fn and reports it under name.
func (r *runner) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(r.opts.Job, name, err, time.Since(start))
	if err != nil {
		log.Printf("pipeline: step=%s failed after %s: %v", name, time.Since(start).Truncate(time.Millisecond), err)
	}
	return err
}

func (r *runner) run(ctx context.Context) error {
	rep := r.rep

	if err := r.step("landing_create", func() error {
		return r.deps.Sink.Create(ctx)
	}); err != nil {
		return fmt.Errorf("landing create: %w", err)
	}

	if err := r.step("ingest", func() error {
		res, err := ingest.Run(ctx, r.deps.Fetcher, r.deps.Sink, ingest.Options{
			Job:         r.opts.Job,
			RunID:       r.opts.RunID,
			PageSize:    r.opts.PageSize,
			MaxPages:    r.opts.MaxPages,
			WrapperKeys: r.opts.WrapperKeys,
			Limiter:     r.opts.Limiter,
		})
		rep.Pages, rep.Records, rep.HitPageLimit = res.Pages, res.Records, res.HitPageLimit
		return err
	}); err != nil {
		return err
	}
	if rep.HitPageLimit {
		log.Printf("pipeline: stopped at max_pages=%d before the source ran dry", r.opts.MaxPages)
	}

	var values []jsonvalue.Value
	if err := r.step("landing_read", func() error {
		recs, err := r.deps.Sink.ReadAll(ctx)
		if err != nil {
			return err
		}
		values, err = landing.Values(recs)
		return err
	}); err != nil {
		return fmt.Errorf("landing read: %w", err)
	}

	discoverStart := time.Now()
	plan := policy.New(r.opts.Policy).Classify(schema.Discover(values))
	metrics.RecordStep(r.opts.Job, "discover", nil, time.Since(discoverStart))
	rep.recordPlan(plan)

	s, pred, outcome := flatten.Build(r.opts.Table, plan, r.opts.Filter)
	rep.SchemaOutcome = outcome.String()
	rep.Filter = pred.Describe()

	if outcome != flatten.Ready {
		rep.Outcome = OutcomeEmptySchema
		log.Printf("pipeline: no columns to flatten (%s); skipping table creation", outcome)
	} else {
		if err := r.flatten(ctx, values, s, pred); err != nil {
			return err
		}
		rep.Outcome = OutcomeCompleted
	}

	if err := r.step("cleanup", func() error {
		return r.deps.Sink.Truncate(ctx)
	}); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	rep.Cleaned = true
	return nil
}

func (r *runner) flatten(ctx context.Context, values []jsonvalue.Value, s flatten.Schema, pred *flatten.Predicate) error {
	rep := r.rep

	demoted, cells := s.Demote(values, pred)
	for i := range s.Columns {
		if s.Columns[i].Type != demoted.Columns[i].Type {
			rep.Demoted = append(rep.Demoted, s.Columns[i].Name)
		}
	}
	if cells > 0 {
		log.Printf("pipeline: %d cells do not fit their column type; stored as raw JSON in %v", cells, rep.Demoted)
	}
	s = demoted
	rep.Columns = s.Names()
	rep.Fallbacks = int64(cells)

	if err := r.step("create_schema", func() error {
		return r.deps.Store.CreateSchema(ctx, s.TableDef())
	}); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if err := r.step("populate", func() error {
		return r.populate(ctx, values, s, pred)
	}); err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	if err := r.step("count", func() error {
		n, err := r.deps.Store.Count(ctx)
		rep.Flattened = n
		return err
	}); err != nil {
		return fmt.Errorf("count: %w", err)
	}
	return nil
}

// populate runs projection and the batch loader as a producer/consumer pair.
// A loader failure cancels the producer so it never blocks on a full channel.
func (r *runner) populate(ctx context.Context, values []jsonvalue.Value, s flatten.Schema, pred *flatten.Predicate) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan []any, r.opts.ChannelBuffer)

	var (
		wg     sync.WaitGroup
		st     flatten.Stats
		popErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		st, popErr = flatten.Populate(ctx, values, s, pred, rows)
	}()

	log.Printf("loader: started with batchSize=%d columns=%d", r.opts.BatchSize, len(s.Columns))
	copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		n, err := r.deps.Store.CopyFrom(ctx, columns, batch)
		if err == nil {
			metrics.RecordBatches(r.opts.Job, 1)
		}
		return n, err
	}
	inserted, loadErr := storage.LoadBatches(ctx, s.Names(), rows, r.opts.BatchSize, copyFn)
	if loadErr != nil {
		cancel()
	}
	wg.Wait()

	rep := r.rep
	rep.Elements, rep.Kept, rep.Filtered = st.Elements, st.Kept, st.Filtered
	rep.Fallbacks += st.Fallbacks
	rep.Inserted = inserted

	job := r.opts.Job
	metrics.RecordRow(job, "elements", st.Elements)
	metrics.RecordRow(job, "kept", st.Kept)
	metrics.RecordRow(job, "filtered", st.Filtered)
	metrics.RecordRow(job, "fallback", rep.Fallbacks)
	metrics.RecordRow(job, "inserted", inserted)

	if loadErr != nil {
		return loadErr
	}
	return popErr
}
