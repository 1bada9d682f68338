package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pushdown/internal/config"
	"pushdown/internal/datasource"
	"pushdown/internal/jsonvalue"
)

// Fetcher requests base_url+path?page=N&per_page=M and parses the body.
//
// Recognized source.http.options:
//   - "max_body_mb" (int): response size cap, default 64.
//   - "has_more_field" (string): top-level boolean field; false marks the
//     page as the last one.
//   - "user_agent" (string).
type Fetcher struct {
	client    *Client
	endpoint  *url.URL
	pageParam string
	sizeParam string
	query     map[string]string
	hasMore   string
	secrets   []string
}

var _ datasource.PageFetcher = (*Fetcher)(nil)

// New builds a Fetcher from the HTTP source section. cfg should have had
// config defaults applied.
func New(cfg config.SourceHTTP) (*Fetcher, error) {
	return newFetcher(cfg, nil)
}

func newFetcher(cfg config.SourceHTTP, transport http.RoundTripper) (*Fetcher, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("httpapi: base_url %q is not an absolute URL", cfg.BaseURL)
	}
	endpoint := base.JoinPath(cfg.Path)

	pageParam, sizeParam := cfg.PageParam, cfg.SizeParam
	if pageParam == "" {
		pageParam = config.DefaultPageParam
	}
	if sizeParam == "" {
		sizeParam = config.DefaultSizeParam
	}

	hdr := http.Header{}
	for k, v := range cfg.Headers {
		hdr.Set(k, v)
	}
	if ua := cfg.Options.String("user_agent", ""); ua != "" {
		hdr.Set("User-Agent", ua)
	}

	var secrets []string
	if cfg.Auth.Header != "" {
		if key := cfg.Auth.Key(); key != "" {
			v := key
			if cfg.Auth.Scheme != "" {
				v = cfg.Auth.Scheme + " " + key
			}
			hdr.Set(cfg.Auth.Header, v)
			secrets = append(secrets, key)
		}
	}
	if cfg.Auth.Username != "" {
		pass := cfg.Auth.Secret()
		hdr.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cfg.Auth.Username+":"+pass)))
		if pass != "" {
			secrets = append(secrets, pass)
		}
	}

	client := NewClient(ClientConfig{
		Timeout:            time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxBodyBytes:       int64(cfg.Options.Int("max_body_mb", 64)) << 20,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		BaseHeaders:        hdr,
		Transport:          transport,
	})

	return &Fetcher{
		client:    client,
		endpoint:  endpoint,
		pageParam: pageParam,
		sizeParam: sizeParam,
		query:     cfg.Query,
		hasMore:   cfg.Options.String("has_more_field", ""),
		secrets:   secrets,
	}, nil
}

// PageURL returns the request URL for page.
func (f *Fetcher) PageURL(page, size int) string {
	u := *f.endpoint
	q := u.Query()
	for k, v := range f.query {
		q.Set(k, v)
	}
	q.Set(f.pageParam, strconv.Itoa(page))
	q.Set(f.sizeParam, strconv.Itoa(size))
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchPage implements datasource.PageFetcher. Errors never carry the
// configured credentials.
func (f *Fetcher) FetchPage(ctx context.Context, page, size int) (datasource.Page, error) {
	if page < 1 {
		return datasource.Page{}, fmt.Errorf("httpapi: page must be >= 1, got %d", page)
	}
	body, err := f.client.Get(ctx, f.PageURL(page, size), nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			se.Snippet = RedactSecrets(se.Snippet, f.secrets...)
		}
		return datasource.Page{}, redact(err, f.secrets...)
	}

	v, err := jsonvalue.Parse(body)
	if err != nil {
		return datasource.Page{}, fmt.Errorf("httpapi: page %d: %w", page, err)
	}

	p := datasource.Page{Body: v}
	if f.hasMore != "" {
		if hm, ok := v.Get(f.hasMore); ok {
			if more, ok := hm.AsBool(); ok && !more {
				p.Exhausted = true
			}
		}
	}
	return p, nil
}
