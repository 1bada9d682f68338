// Package main wires the pushdown run end to end. This file keeps the CLI
// layer thin: it resolves backends through the registries and never imports
// database drivers directly.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"pushdown/internal/config"
	"pushdown/internal/datasource"
	"pushdown/internal/datasource/httpapi"
	"pushdown/internal/landing"
	"pushdown/internal/pipeline"
	"pushdown/internal/storage"
)

// runtimeConfig is the resolved batching of a run, from the config with
// environment overrides.
type runtimeConfig struct {
	batchSize  int
	bufferSize int
}

// Function variables used as test seams.
var (
	newFetcherFn = func(cfg config.SourceHTTP) (datasource.PageFetcher, error) {
		return httpapi.New(cfg)
	}

	newSinkFn = func(ctx context.Context, cfg landing.Config) (landing.Sink, error) {
		return landing.New(ctx, cfg)
	}

	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}
)

// run opens the source, the landing sink and the flattened store described
// by p and executes the pipeline. p must already carry defaults.
func run(ctx context.Context, p config.Pipeline) (*pipeline.Report, error) {
	rt := newRuntimeConfig(p)
	log.Printf("stream runtime: batch=%d buffer=%d", rt.batchSize, rt.bufferSize)

	if p.Source.Kind != "http" {
		return nil, fmt.Errorf("unsupported source.kind=%s", p.Source.Kind)
	}
	fetcher, err := newFetcherFn(p.Source.HTTP)
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}

	sink, err := newSinkFn(ctx, landing.Config{
		Kind:     p.Landing.Kind,
		DSN:      p.Landing.DSN,
		Table:    p.Landing.Table,
		Database: p.Landing.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("init landing: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Printf("landing: close: %v", err)
		}
	}()
	log.Printf("landing: kind=%s table=%s", p.Landing.Kind, p.Landing.Table)

	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:    p.Storage.Kind,
		DSN:     p.Storage.DB.DSN,
		Table:   p.Storage.DB.Table,
		Replace: p.Storage.DB.Replace,
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()
	log.Printf("storage: kind=%s table=%s replace=%v", p.Storage.Kind, p.Storage.DB.Table, p.Storage.DB.Replace)

	opts := pipeline.OptionsFromConfig(p)
	opts.BatchSize = rt.batchSize
	opts.ChannelBuffer = rt.bufferSize

	rep, err := pipeline.Run(ctx, pipeline.Deps{Fetcher: fetcher, Sink: sink, Store: repo}, opts)
	if rep != nil {
		logGlobalSummary(rep)
	}
	return rep, err
}

func newRuntimeConfig(p config.Pipeline) runtimeConfig {
	return runtimeConfig{
		batchSize:  pickInt(p.Runtime.BatchSize, getenvInt("PUSHDOWN_BATCH_SIZE", pipeline.DefaultBatchSize)),
		bufferSize: pickInt(p.Runtime.ChannelBuffer, getenvInt("PUSHDOWN_CH_BUFFER", pipeline.DefaultChannelBuffer)),
	}
}

// logGlobalSummary prints the end-of-run statistics and the columns kept
// out of the table.
func logGlobalSummary(rep *pipeline.Report) {
	log.Print(rep.Summary())
	for _, c := range rep.Excluded {
		log.Printf("  excluded: %s (key=%q, %s)", c.Name, c.Key, c.Reason)
	}
	if len(rep.Demoted) > 0 {
		log.Printf("  stored as raw JSON: %v", rep.Demoted)
	}
	if rep.HitPageLimit {
		log.Printf("WARNING: page limit reached; the source may hold more records")
	}
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
