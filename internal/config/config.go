// Package config defines the canonical configuration model for a pushdown
// run: where pages come from, where raw JSON lands, where the flattened
// table goes, and which policy knobs apply. Pipelines are plain JSON or YAML
// files decoded into Pipeline and threaded explicitly through the program.
//
// Example (trimmed):
//
//	{
//	  "job": "ukg_employees",
//	  "source":  { "kind": "http", "http": { "base_url": "https://service.example.com",
//	               "path": "/personnel/v1/employee-demographic-details",
//	               "page_size": 200, "max_pages": 500 } },
//	  "landing": { "kind": "sqlite", "dsn": "file:landing.db", "table": "raw_employees" },
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgres://...", "table": "public.employees" } },
//	  "policy":  { "filter": { "targets": ["GXLLC"] } }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by WithDefaults.
const (
	DefaultPageParam      = "page"
	DefaultSizeParam      = "per_page"
	DefaultPageSize       = 100
	DefaultMaxPages       = 1000
	DefaultTimeoutSeconds = 30
	DefaultLandingKind    = "sqlite"
	DefaultLandingTable   = "raw_landing"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for metrics labels and log lines.
	Job string `json:"job" yaml:"job"`

	Source  Source        `json:"source" yaml:"source"`
	Landing Landing       `json:"landing" yaml:"landing"`
	Storage Storage       `json:"storage" yaml:"storage"`
	Policy  Policy        `json:"policy" yaml:"policy"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// RuntimeConfig controls batching between projection and the store.
type RuntimeConfig struct {
	BatchSize     int `json:"batch_size" yaml:"batch_size"`
	ChannelBuffer int `json:"channel_buffer" yaml:"channel_buffer"`
}

// Source identifies the paginated API. "http" is the only kind.
type Source struct {
	Kind string     `json:"kind" yaml:"kind"`
	HTTP SourceHTTP `json:"http" yaml:"http"`
}

// SourceHTTP configures the HTTP page fetcher.
type SourceHTTP struct {
	// BaseURL and Path are joined to form the endpoint URL.
	BaseURL string `json:"base_url" yaml:"base_url"`
	Path    string `json:"path" yaml:"path"`

	// PageParam and SizeParam name the query parameters carrying the
	// 1-indexed page number and the page size.
	PageParam string `json:"page_param" yaml:"page_param"`
	SizeParam string `json:"size_param" yaml:"size_param"`

	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxPages is the hard stop against runaway pagination.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// Query holds extra static query parameters.
	Query map[string]string `json:"query" yaml:"query"`

	// Headers are sent with every request.
	Headers map[string]string `json:"headers" yaml:"headers"`

	Auth Auth `json:"auth" yaml:"auth"`

	TimeoutSeconds     int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	InsecureSkipVerify bool    `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	RequestsPerSecond  float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// WrapperKeys extends the built-in list of envelope field names that may
	// carry the record array in a page body.
	WrapperKeys []string `json:"wrapper_keys" yaml:"wrapper_keys"`

	// Options is a free-form bag for fetcher tuning.
	Options Options `json:"options" yaml:"options"`
}

// Auth describes request credentials. Secrets may be given inline or, more
// usually, through the environment variable named by the *_env fields.
type Auth struct {
	// Header carries the API key, e.g. "US-CUSTOMER-API-KEY" or
	// "Authorization". Empty disables key auth.
	Header string `json:"header" yaml:"header"`

	// Scheme prefixes the key in Header, e.g. "Bearer".
	Scheme string `json:"scheme" yaml:"scheme"`

	APIKey    string `json:"api_key" yaml:"api_key"`
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"`

	// Username and password enable HTTP basic auth.
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	PasswordEnv string `json:"password_env" yaml:"password_env"`
}

// Key returns the API key, preferring the inline value.
func (a Auth) Key() string {
	if a.APIKey != "" {
		return a.APIKey
	}
	if a.APIKeyEnv != "" {
		return os.Getenv(a.APIKeyEnv)
	}
	return ""
}

// Secret returns the basic-auth password, preferring the inline value.
func (a Auth) Secret() string {
	if a.Password != "" {
		return a.Password
	}
	if a.PasswordEnv != "" {
		return os.Getenv(a.PasswordEnv)
	}
	return ""
}

// Landing selects the store that holds raw JSON pages until cleanup.
type Landing struct {
	// Kind is one of sqlite, postgres, badger, mongo.
	Kind string `json:"kind" yaml:"kind"`

	// DSN is a driver DSN, a badger directory (empty for in-memory), or a
	// mongodb:// URI.
	DSN string `json:"dsn" yaml:"dsn"`

	// Table is the landing table, key prefix, or collection.
	Table string `json:"table" yaml:"table"`

	// Database is used by the mongo landing only.
	Database string `json:"database" yaml:"database"`
}

// Storage selects the sink for the flattened table.
type Storage struct {
	// Kind is one of postgres, sqlite, mssql, mysql, duckdb.
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig configures the flattened store.
type DBConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`

	// Table is the target table, optionally schema-qualified.
	Table string `json:"table" yaml:"table"`

	// Replace drops an existing target table before it is created.
	Replace bool `json:"replace" yaml:"replace"`
}

// Policy holds the column security and row filter settings.
type Policy struct {
	// ExtraSensitiveTerms are added to the built-in exclusion terms. The
	// built-in terms cannot be removed.
	ExtraSensitiveTerms []string `json:"extra_sensitive_terms" yaml:"extra_sensitive_terms"`

	Filter Filter `json:"filter" yaml:"filter"`
}

// Filter configures the row predicate built from the discovered company code
// column. A row is kept when its value equals any of Targets.
type Filter struct {
	Targets []string `json:"targets" yaml:"targets"`

	// Disabled keeps every row even when a company code column exists.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// WithDefaults returns a copy of p with zero values replaced by defaults.
func (p Pipeline) WithDefaults() Pipeline {
	h := &p.Source.HTTP
	if h.PageParam == "" {
		h.PageParam = DefaultPageParam
	}
	if h.SizeParam == "" {
		h.SizeParam = DefaultSizeParam
	}
	if h.PageSize == 0 {
		h.PageSize = DefaultPageSize
	}
	if h.MaxPages == 0 {
		h.MaxPages = DefaultMaxPages
	}
	if h.TimeoutSeconds == 0 {
		h.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if p.Landing.Kind == "" {
		p.Landing.Kind = DefaultLandingKind
	}
	if p.Landing.Table == "" {
		p.Landing.Table = DefaultLandingTable
	}
	return p
}

// Load reads a pipeline file. Files ending in .yaml or .yml are decoded as
// YAML; everything else as JSON with unknown fields rejected.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(b)
	default:
		return DecodeJSON(b)
	}
}

// DecodeJSON decodes a JSON pipeline document.
func DecodeJSON(b []byte) (Pipeline, error) {
	var p Pipeline
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}

// DecodeYAML decodes a YAML pipeline document.
func DecodeYAML(b []byte) (Pipeline, error) {
	var p Pipeline
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}
