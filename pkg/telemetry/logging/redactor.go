package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/xfhg/intercept/pkg/config"
)

// Redactor masks credentials in log values.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternURLCredentials = "url_credentials"
	PatternBearerToken    = "bearer_token"
	PatternBasicAuth      = "basic_auth"
	PatternPassword       = "password"
	PatternAWSAccessKey   = "aws_access_key"
	PatternPrivateKey     = "private_key"
)

var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternURLCredentials, `(://)[^/\s:@]+:[^/\s@]+@`, "${1}***:***@"},
	{PatternBearerToken, `(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternBasicAuth, `(?i)basic\s+[a-zA-Z0-9+/]+=*`, "Basic ***"},
	{PatternPassword, `(?i)(password|passwd|pwd|secret)\s*[:=]\s*[^\s,;]+`, "$1=***"},
	{PatternAWSAccessKey, `\b(AKIA|ASIA)[0-9A-Z]{16}\b`, "${1}****************"},
	{PatternPrivateKey, `-----BEGIN [A-Z ]*PRIVATE KEY-----`, "-----BEGIN *** PRIVATE KEY-----"},
}

// NewRedactor creates a Redactor with the built-in and custom patterns.
// Invalid custom patterns are skipped.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{name: p.Name, regex: regex, replacement: p.Replacement})
	}
	return r
}

// RedactString masks every pattern occurrence in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr redacts a single attribute, descending into groups. Values of
// sensitive keys are masked entirely.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		out := make([]any, len(attrs))
		for i, ga := range attrs {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, out...)
	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, mask(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, "***")
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// isSensitiveKey checks if a key name indicates credential material.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range []string{"password", "passwd", "secret", "token", "api_key", "apikey", "authorization", "credential"} {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// mask keeps a short prefix as a debugging hint.
func mask(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}
