package tools

import (
	"errors"

	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

// Error codes carried in failed results.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeInternal        = "internal"
)

// Result is the object every tool call returns. It always has a success
// field; failures add error and code.
type Result map[string]any

// Success reports whether the call succeeded.
func (r Result) Success() bool {
	ok, _ := r["success"].(bool)
	return ok
}

// Code returns the error code of a failed result, or "".
func (r Result) Code() string {
	code, _ := r["code"].(string)
	return code
}

// Error returns the error message of a failed result, or "".
func (r Result) Error() string {
	msg, _ := r["error"].(string)
	return msg
}

// ok builds a successful result from key/value pairs.
func ok(kv ...any) Result {
	r := Result{"success": true}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, isStr := kv[i].(string); isStr {
			r[k] = kv[i+1]
		}
	}
	return r
}

func failure(code, msg string) Result {
	return Result{"success": false, "error": msg, "code": code}
}

// classify maps an error to its result code.
func classify(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, store.ErrConflict):
		return CodeConflict
	}
	return CodeInternal
}
