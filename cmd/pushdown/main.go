package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pushdown/internal/config"

	// register every landing sink and storage backend; the config picks one.
	_ "pushdown/internal/landing/all"
	_ "pushdown/internal/storage/all"
)

// main loads the pipeline config, sets up metrics and runs one pushdown.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		dogstatsdAddrFlg  string
		reportPath        string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/ukg_employees.yaml", "pipeline config path (.json, .yaml)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog, none (overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&dogstatsdAddrFlg, "dogstatsd-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_ADDR)")
	flag.StringVar(&reportPath, "report", "", "write the run report as JSON to this path")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	p = p.WithDefaults()

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	flush := setupMetrics(metricsSettings{
		backend:        metricsBackendFlg,
		pushGatewayURL: pushGatewayURLFlg,
		dogstatsdAddr:  dogstatsdAddrFlg,
		job:            p.Job,
		verbose:        *verbose,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: source=%s landing=%s storage=%s table=%s",
			p.Source.Kind, p.Landing.Kind, p.Storage.Kind, p.Storage.DB.Table)
	}

	rep, runErr := run(ctx, p)
	stop()
	flush()

	if reportPath != "" && rep != nil {
		if err := writeReport(reportPath, rep); err != nil {
			log.Printf("report: %v", err)
		}
	}
	if runErr != nil {
		fatalf("%v", runErr)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func writeReport(path string, rep any) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
