package main

import (
	"log"
	"os"

	"pushdown/internal/metrics"
	"pushdown/internal/metrics/datadog"
	"pushdown/internal/metrics/prompush"
)

type metricsSettings struct {
	backend        string
	pushGatewayURL string
	dogstatsdAddr  string
	job            string
	verbose        bool
}

// setupMetrics installs the metrics backend chosen by flag, then env, and
// returns the flush to call when the run ends. Failures fall back to the
// nop backend; metrics never stop a run.
func setupMetrics(s metricsSettings) (flush func()) {
	flush = func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}

	name := firstNonEmpty(s.backend, os.Getenv("METRICS_BACKEND"))
	job := firstNonEmpty(s.job, "pushdown")

	switch name {
	case "pushgateway":
		gwURL := firstNonEmpty(s.pushGatewayURL, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return flush
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, name, job)
		metrics.SetBackend(b)

	case "datadog":
		addr := firstNonEmpty(s.dogstatsdAddr, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")
		b, err := datadog.NewBackend(datadog.Config{Addr: addr, GlobalTags: []string{"job:" + job}})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return flush
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, name, job)
		metrics.SetBackend(b)

	case "", "none":
		if s.verbose {
			log.Printf("metrics: disabled (backend=%q)", name)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
	}
	return flush
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
