package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config, e.g. "source.http.page_size".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Known backend kinds. Unknown kinds are reported as warnings so that
// binaries with extra registered backends still validate.
var (
	knownLanding = map[string]struct{}{"sqlite": {}, "postgres": {}, "badger": {}, "mongo": {}}
	knownStorage = map[string]struct{}{"postgres": {}, "sqlite": {}, "mssql": {}, "mysql": {}, "duckdb": {}}
)

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline lints p without mutating it. Callers normally validate
// p.WithDefaults(); zero page sizes are reported as errors here.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateLanding(p.Landing)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validatePolicy(p.Policy)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	}
	if s.Kind != "http" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unsupported source kind %q; only \"http\" is available", s.Kind),
		})
	}

	h := s.HTTP
	if strings.TrimSpace(h.BaseURL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.base_url",
			Message:  "http source requires a base_url",
		})
	} else if u, err := url.Parse(h.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.base_url",
			Message:  fmt.Sprintf("base_url %q is not an absolute URL", h.BaseURL),
		})
	} else if u.Scheme == "http" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.http.base_url",
			Message:  "base_url uses plain http; credentials will be sent unencrypted",
		})
	}
	if h.PageSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.page_size",
			Message:  fmt.Sprintf("page_size=%d; must be positive", h.PageSize),
		})
	}
	if h.MaxPages <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.max_pages",
			Message:  fmt.Sprintf("max_pages=%d; must be positive", h.MaxPages),
		})
	}
	if h.PageParam != "" && h.PageParam == h.SizeParam {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.size_param",
			Message:  "page_param and size_param must differ",
		})
	}
	if h.RequestsPerSecond < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.requests_per_second",
			Message:  "requests_per_second must not be negative",
		})
	}
	if h.TimeoutSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.timeout_seconds",
			Message:  "timeout_seconds must not be negative",
		})
	}
	if h.InsecureSkipVerify {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.http.insecure_skip_verify",
			Message:  "TLS verification is disabled",
		})
	}
	if h.Auth.APIKey != "" || h.Auth.Password != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.http.auth",
			Message:  "inline credentials found; prefer api_key_env / password_env",
		})
	}
	if h.Auth.APIKeyEnv != "" && h.Auth.Header == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http.auth.header",
			Message:  "api_key_env is set but no header names where the key goes",
		})
	}

	return issues
}

func validateLanding(l Landing) []Issue {
	var issues []Issue

	if strings.TrimSpace(l.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "landing.kind",
			Message:  "landing.kind must not be empty",
		})
	}
	if _, ok := knownLanding[l.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "landing.kind",
			Message:  fmt.Sprintf("unknown landing kind %q; ensure a matching sink is registered", l.Kind),
		})
	}
	// badger runs in memory when no directory is given.
	if l.Kind != "badger" && strings.TrimSpace(l.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "landing.dsn",
			Message:  "landing.dsn must not be empty",
		})
	}
	if strings.TrimSpace(l.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "landing.table",
			Message:  "landing.table must not be empty",
		})
	}
	if l.Kind == "mongo" && strings.TrimSpace(l.Database) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "landing.database",
			Message:  "mongo landing requires a database",
		})
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	}
	if _, ok := knownStorage[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	// duckdb opens an in-memory database for an empty DSN.
	if s.Kind != "duckdb" && strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}

	return issues
}

func validatePolicy(p Policy) []Issue {
	var issues []Issue

	for i, term := range p.ExtraSensitiveTerms {
		if strings.TrimSpace(term) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("policy.extra_sensitive_terms[%d]", i),
				Message:  "sensitive term must not be empty; it would exclude every column",
			})
		}
	}
	if !p.Filter.Disabled && len(p.Filter.Targets) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "policy.filter.targets",
			Message:  "no filter targets; set at least one company code or disable the filter",
		})
	}
	for i, t := range p.Filter.Targets {
		if strings.TrimSpace(t) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("policy.filter.targets[%d]", i),
				Message:  "blank filter target only matches empty company codes",
			})
		}
	}

	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}

	return issues
}
