package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"pushdown/internal/config"
	"pushdown/internal/datasource"
	"pushdown/internal/datasource/file"
	"pushdown/internal/datasource/httpapi"
	"pushdown/internal/ddl"
	"pushdown/internal/flatten"
	"pushdown/internal/policy"
	"pushdown/internal/probe"
	"pushdown/internal/storage/duckdb"
	"pushdown/internal/storage/mssql"
	"pushdown/internal/storage/mysql"
	"pushdown/internal/storage/postgres"
	"pushdown/internal/storage/sqlite"
)

var dialects = map[string]ddl.Dialect{
	"postgres": postgres.Dialect,
	"sqlite":   sqlite.Dialect,
	"mssql":    mssql.Dialect,
	"mysql":    mysql.Dialect,
	"duckdb":   duckdb.Dialect,
}

// main samples the first pages of the configured API and prints what a run
// would discover, keep and create. Nothing is landed or written.
func main() {
	var (
		flagConfig = flag.String(
			"config",
			"configs/pipelines/ukg_employees.yaml",
			"pipeline config path (.json, .yaml)",
		)
		flagPages = flag.Int(
			"pages",
			1,
			"Number of pages to sample",
		)
		flagDialect = flag.String(
			"dialect",
			"",
			"Dialect for the CREATE TABLE preview: "+strings.Join(dialectNames(), "|")+" (defaults to storage.kind)",
		)
		flagReplay = flag.String(
			"replay",
			"",
			"Manifest of recorded page files to probe instead of calling the API",
		)
		flagTimeout = flag.Duration(
			"timeout",
			60*time.Second,
			"Overall probe timeout",
		)
		flagPretty = flag.Bool(
			"pretty",
			true,
			"Pretty-print JSON output",
		)
	)
	flag.Parse()

	p, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("probe: %v", err)
	}
	p = p.WithDefaults()

	name := *flagDialect
	if name == "" {
		name = p.Storage.Kind
	}
	d, ok := dialects[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown dialect %q\n", name)
		flag.Usage()
		os.Exit(2)
	}

	f, err := newFetcher(p.Source.HTTP, *flagReplay)
	if err != nil {
		log.Fatalf("probe: init source: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()

	res, err := probe.Run(ctx, f, probe.Options{
		Pages:       *flagPages,
		PageSize:    p.Source.HTTP.PageSize,
		WrapperKeys: p.Source.HTTP.WrapperKeys,
		Table:       p.Storage.DB.Table,
		Policy:      policy.Options{ExtraSensitiveTerms: p.Policy.ExtraSensitiveTerms},
		Filter: flatten.FilterOptions{
			Targets:  p.Policy.Filter.Targets,
			Disabled: p.Policy.Filter.Disabled,
		},
		Dialect: d,
	})
	if err != nil {
		log.Fatalf("probe: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	if *flagPretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}

func newFetcher(h config.SourceHTTP, manifest string) (datasource.PageFetcher, error) {
	if manifest != "" {
		return file.FromManifest(manifest)
	}
	return httpapi.New(h)
}

func dialectNames() []string {
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
