// Package config holds experiment-configuration helpers: loading YAML into
// plain dictionaries, checking JSON-serializability of logged values, and
// expanding hyperparameter grids.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML file into a plain map. Nested maps are normalized to
// string keys all the way down, so the result round-trips through JSON.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	out, err := normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return out.(map[string]any), nil
}

// normalize rewrites map[any]any nodes (which older YAML emitters produce)
// into map[string]any, recursively.
func normalize(v any) (any, error) {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(node))
		for i, val := range node {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

// IsJSONable reports whether v can be serialized to JSON, e.g. before
// stashing it in experiment metadata.
func IsJSONable(v any) bool {
	_, err := json.Marshal(v)
	return err == nil
}

// Product expands a hyperparameter grid into the cartesian product of its
// per-key value lists. Keys are iterated in sorted order, with the last key
// varying fastest, so the output order is deterministic. An empty grid
// yields a single empty assignment.
func Product(grid map[string][]any) []map[string]any {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string]any{{}}
	for _, k := range keys {
		values := grid[k]
		next := make([]map[string]any, 0, len(out)*len(values))
		for _, base := range out {
			for _, v := range values {
				m := make(map[string]any, len(base)+1)
				for bk, bv := range base {
					m[bk] = bv
				}
				m[k] = v
				next = append(next, m)
			}
		}
		out = next
	}
	return out
}
