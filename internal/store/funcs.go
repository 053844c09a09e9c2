package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"modernc.org/sqlite"

	"github.com/lazypower/mnemo/internal/embed"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("cosine_distance", 2, cosineDistanceFunc)
	sqlite.MustRegisterDeterministicScalarFunction("json_contains", 2, jsonContainsFunc)
}

// cosineDistanceFunc implements cosine_distance(a, b) over encoded embedding
// BLOBs. Zero vectors yield NULL so they never satisfy a similarity filter.
func cosineDistanceFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, okA := blobArg(args[0])
	b, okB := blobArg(args[1])
	if !okA || !okB {
		return nil, nil
	}

	d, err := embed.CosineDistance(decodeEmbedding(a), decodeEmbedding(b))
	if errors.Is(err, embed.ErrZeroVector) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cosine_distance: %w", err)
	}
	return d, nil
}

// jsonContainsFunc implements json_contains(doc, filter) with the containment
// rules of the Postgres @> operator.
func jsonContainsFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	doc, okDoc := textArg(args[0])
	filter, okFilter := textArg(args[1])
	if !okFilter {
		return int64(1), nil
	}
	if !okDoc {
		return int64(0), nil
	}

	var f any
	if err := json.Unmarshal([]byte(filter), &f); err != nil {
		return nil, fmt.Errorf("json_contains: invalid filter: %w", err)
	}
	var d any
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return int64(0), nil
	}
	if JSONContains(d, f) {
		return int64(1), nil
	}
	return int64(0), nil
}

// JSONContains reports whether doc contains filter. Objects contain objects
// whose keys are all present with contained values, arrays contain arrays
// whose every element is contained by some element, and scalars must be equal.
// A top-level array also contains a bare scalar it holds.
func JSONContains(doc, filter any) bool {
	return contains(doc, filter, true)
}

func contains(doc, filter any, top bool) bool {
	switch f := filter.(type) {
	case map[string]any:
		d, ok := doc.(map[string]any)
		if !ok {
			return false
		}
		for k, fv := range f {
			dv, ok := d[k]
			if !ok || !contains(dv, fv, false) {
				return false
			}
		}
		return true
	case []any:
		d, ok := doc.([]any)
		if !ok {
			return false
		}
		for _, fv := range f {
			found := false
			for _, dv := range d {
				if contains(dv, fv, false) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		if d, ok := doc.([]any); ok && top {
			for _, dv := range d {
				if scalarEqual(dv, filter) {
					return true
				}
			}
			return false
		}
		return scalarEqual(doc, filter)
	}
}

func scalarEqual(a, b any) bool {
	switch a.(type) {
	case map[string]any, []any:
		return false
	}
	return a == b
}

func blobArg(v driver.Value) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	}
	return nil, false
}

func textArg(v driver.Value) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}
