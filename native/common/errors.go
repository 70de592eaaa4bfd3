package common

import (
	"errors"
	"sort"
	"strings"
)

// DetailError attaches the offending parameters to a module sentinel. It
// unwraps to the sentinel so errors.Is keeps working.
type DetailError struct {
	Err    error
	Params map[string]string
}

// WithParams wraps err with key/value detail pairs. A trailing key without a
// value is ignored.
func WithParams(err error, kv ...string) error {
	if err == nil {
		return nil
	}
	params := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params[kv[i]] = kv[i+1]
	}
	return &DetailError{Err: err, Params: params}
}

func (e *DetailError) Error() string {
	if len(e.Params) == 0 {
		return e.Err.Error()
	}
	keys := make([]string, 0, len(e.Params))
	for k := range e.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + e.Params[k]
	}
	return e.Err.Error() + " (" + strings.Join(parts, ", ") + ")"
}

func (e *DetailError) Unwrap() error { return e.Err }

// Params returns the detail parameters carried by err, if any.
func Params(err error) map[string]string {
	var detail *DetailError
	if errors.As(err, &detail) {
		out := make(map[string]string, len(detail.Params))
		for k, v := range detail.Params {
			out[k] = v
		}
		return out
	}
	return nil
}
