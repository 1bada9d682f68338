package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleJSON = `{
  "job": "ukg_employees",
  "source": {
    "kind": "http",
    "http": {
      "base_url": "https://service.example.com",
      "path": "/personnel/v1/employee-demographic-details",
      "page_size": 200,
      "max_pages": 50,
      "query": {"companyId": "ABC"},
      "auth": {"header": "US-CUSTOMER-API-KEY", "api_key_env": "UKG_API_KEY", "username": "svc", "password_env": "UKG_PASSWORD"},
      "requests_per_second": 2.5,
      "options": {"user_agent": "pushdown/1"}
    }
  },
  "landing": {"kind": "sqlite", "dsn": "file:landing.db", "table": "raw_employees"},
  "storage": {"kind": "postgres", "db": {"dsn": "postgres://u@h/db", "table": "public.employees", "replace": true}},
  "policy": {"extra_sensitive_terms": ["BONUS"], "filter": {"targets": ["GXLLC"]}},
  "runtime": {"batch_size": 500, "channel_buffer": 64}
}`

const sampleYAML = `
job: ukg_employees
source:
  kind: http
  http:
    base_url: https://service.example.com
    path: /personnel/v1/employee-demographic-details
    page_size: 200
    max_pages: 50
    query:
      companyId: ABC
    auth:
      header: US-CUSTOMER-API-KEY
      api_key_env: UKG_API_KEY
      username: svc
      password_env: UKG_PASSWORD
    requests_per_second: 2.5
    options:
      user_agent: pushdown/1
landing:
  kind: sqlite
  dsn: file:landing.db
  table: raw_employees
storage:
  kind: postgres
  db:
    dsn: postgres://u@h/db
    table: public.employees
    replace: true
policy:
  extra_sensitive_terms: [BONUS]
  filter:
    targets: [GXLLC]
runtime:
  batch_size: 500
  channel_buffer: 64
`

func TestLoad_JSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "p.json")
	yamlPath := filepath.Join(dir, "p.yaml")
	if err := os.WriteFile(jsonPath, []byte(sampleJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yamlPath, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	pj, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	py, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}

	if pj.Job != "ukg_employees" || pj.Source.HTTP.PageSize != 200 || pj.Source.HTTP.MaxPages != 50 {
		t.Fatalf("json decode mismatch: %+v", pj)
	}
	if got := pj.Source.HTTP.Options.String("user_agent", ""); got != "pushdown/1" {
		t.Fatalf("options.user_agent = %q", got)
	}
	if got := py.Source.HTTP.Options.String("user_agent", ""); got != "pushdown/1" {
		t.Fatalf("yaml options.user_agent = %q", got)
	}

	// Options maps differ only in numeric representation; compare the rest.
	pj.Source.HTTP.Options, py.Source.HTTP.Options = nil, nil
	if !reflect.DeepEqual(pj, py) {
		t.Fatalf("json and yaml decode differ:\njson=%+v\nyaml=%+v", pj, py)
	}
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := DecodeJSON([]byte(`{"job":"x","sauce":{}}`))
	if err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestDecodeYAML_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := DecodeYAML([]byte("job: x\nsauce: {}\n"))
	if err == nil {
		t.Fatalf("expected error for unknown yaml field")
	}
}

func TestWithDefaults(t *testing.T) {
	t.Parallel()

	p := Pipeline{Source: Source{HTTP: SourceHTTP{PageSize: 25}}}.WithDefaults()
	h := p.Source.HTTP
	if h.PageParam != DefaultPageParam || h.SizeParam != DefaultSizeParam {
		t.Fatalf("params = %q/%q", h.PageParam, h.SizeParam)
	}
	if h.PageSize != 25 {
		t.Fatalf("PageSize = %d, want explicit 25 kept", h.PageSize)
	}
	if h.MaxPages != DefaultMaxPages || h.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Fatalf("MaxPages=%d TimeoutSeconds=%d", h.MaxPages, h.TimeoutSeconds)
	}
	if p.Landing.Kind != DefaultLandingKind || p.Landing.Table != DefaultLandingTable {
		t.Fatalf("landing = %+v", p.Landing)
	}
}

func TestAuth_KeyAndSecret(t *testing.T) {
	t.Setenv("PUSHDOWN_TEST_KEY", "from-env")
	t.Setenv("PUSHDOWN_TEST_PW", "pw-env")

	a := Auth{APIKeyEnv: "PUSHDOWN_TEST_KEY", PasswordEnv: "PUSHDOWN_TEST_PW"}
	if got := a.Key(); got != "from-env" {
		t.Fatalf("Key() = %q", got)
	}
	if got := a.Secret(); got != "pw-env" {
		t.Fatalf("Secret() = %q", got)
	}

	a.APIKey, a.Password = "inline", "inline-pw"
	if a.Key() != "inline" || a.Secret() != "inline-pw" {
		t.Fatalf("inline values should win: %q %q", a.Key(), a.Secret())
	}
}

func TestOptions_TypedGetters(t *testing.T) {
	t.Parallel()

	var o Options
	if err := o.UnmarshalJSON([]byte("null")); err != nil {
		t.Fatal(err)
	}
	if o == nil {
		t.Fatalf("null options should decode to empty map")
	}

	o = Options{"s": "x", "f": float64(3), "i": 4, "b": true, "list": []any{"a", 1, "b"}}
	if o.String("s", "d") != "x" || o.String("missing", "d") != "d" {
		t.Fatalf("String getter")
	}
	if o.Int("f", 0) != 3 || o.Int("i", 0) != 4 || o.Int("s", 9) != 9 {
		t.Fatalf("Int getter")
	}
	if !o.Bool("b", false) || o.Bool("s", false) {
		t.Fatalf("Bool getter")
	}
	if got := o.StringSlice("list"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("StringSlice = %v", got)
	}
}

func TestLoad_ShippedPipelineIsValid(t *testing.T) {
	t.Parallel()

	p, err := Load(filepath.Join("..", "..", "configs", "pipelines", "ukg_employees.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p = p.WithDefaults()
	if issues := ValidatePipeline(p); HasErrors(issues) {
		t.Fatalf("issues = %v", issues)
	}
	if p.Source.HTTP.Options.Int("max_body_mb", 0) != 64 {
		t.Fatalf("options = %v", p.Source.HTTP.Options)
	}
}
