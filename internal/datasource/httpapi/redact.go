package httpapi

import (
	"regexp"
	"strings"
)

var (
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)
	basicAuthRe   = regexp.MustCompile(`(?i)\bBasic\s+[A-Za-z0-9+/=]+`)
	apiKeyKVRe    = regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|access[_-]?token|password)\b\s*[:=]\s*[^\s"'&]+`)
	userinfoRe    = regexp.MustCompile(`(://[^/\s:@]+:)[^@\s/]+@`)
)

// RedactSecrets removes secret-bearing substrings from s. Any of the literal
// secrets given are masked as well.
func RedactSecrets(s string, secrets ...string) string {
	if s == "" {
		return ""
	}
	out := s
	for _, sec := range secrets {
		if len(sec) >= 4 {
			out = strings.ReplaceAll(out, sec, "***")
		}
	}
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = basicAuthRe.ReplaceAllString(out, "Basic <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = userinfoRe.ReplaceAllString(out, "${1}***@")
	return strings.TrimSpace(out)
}

// redactedError keeps the wrapped chain for errors.As while hiding secrets
// in the message.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, secrets ...string) error {
	if err == nil {
		return nil
	}
	return &redactedError{msg: RedactSecrets(err.Error(), secrets...), err: err}
}
