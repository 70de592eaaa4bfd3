package logging

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// sensitiveFragments match config and request keys that carry credentials:
// the RPC JWT secret, the webhook signing secret, bearer tokens, webhook
// signatures and database or broker passwords.
var sensitiveFragments = []string{
	"secret",
	"password",
	"passwd",
	"authorization",
	"bearer",
	"signature",
	"jwt",
	"credential",
	"apikey",
	"api_key",
}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// MaskValue returns RedactedValue for non-empty values. Empty values are kept
// so a missing secret still shows up as missing.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// Attr builds a string attribute, masking the value when key is sensitive.
func Attr(key, value string) slog.Attr {
	if IsSensitive(key) {
		return slog.String(key, MaskValue(value))
	}
	return slog.String(key, value)
}

// Attrs turns error detail parameters into sorted slog arguments with
// sensitive values masked.
func Attrs(params map[string]string) []any {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, Attr(k, params[k]))
	}
	return out
}

// DSN strips the password from a URL-style connection string. Plain file
// paths, as used for SQLite, are returned unchanged.
func DSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
