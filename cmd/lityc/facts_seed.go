package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
)

// factSeed is one fact instance as read from a --facts JSON file: a type
// tag and a field map in the host's native JSON types (number, bool,
// string), since the CLI has no contract-language front end of its own
// to produce hostiface.Value literals from.
type factSeed struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

// loadFactSeeds reads path (a JSON array of factSeed) and inserts each
// one through alloc into table, in file order, so the file's order
// becomes each type's alpha-refresh order.
func loadFactSeeds(path string, table *facts.Table, alloc hostiface.Allocator) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("lityc: read facts seed %s: %w", path, err)
	}

	var seeds []factSeed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("lityc: parse facts seed %s: %w", path, err)
	}

	for i, s := range seeds {
		if s.Type == "" {
			return fmt.Errorf("lityc: facts seed %s: entry %d has no type", path, i)
		}
		fields, err := toHostFields(s.Fields)
		if err != nil {
			return fmt.Errorf("lityc: facts seed %s: entry %d: %w", path, i, err)
		}
		ref, err := alloc.New(s.Type, fields)
		if err != nil {
			return fmt.Errorf("lityc: facts seed %s: entry %d: allocate %s: %w", path, i, s.Type, err)
		}
		if _, err := table.Insert(s.Type, ref); err != nil {
			return fmt.Errorf("lityc: facts seed %s: entry %d: insert %s: %w", path, i, s.Type, err)
		}
	}
	return nil
}

func toHostFields(in map[string]any) (map[string]hostiface.Value, error) {
	out := make(map[string]hostiface.Value, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case float64:
			out[k] = hostiface.Int(int64(val))
		case bool:
			out[k] = hostiface.Bool(val)
		case string:
			out[k] = hostiface.Str(val)
		default:
			return nil, fmt.Errorf("field %q: unsupported JSON value %T", k, v)
		}
	}
	return out, nil
}
