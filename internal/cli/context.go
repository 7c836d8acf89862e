package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// parseContext builds a context from key=value pairs and an optional JSON
// object. Pairs override JSON keys.
func parseContext(pairs []string, rawJSON string) (model.Context, error) {
	ctx := model.Context{}
	if strings.TrimSpace(rawJSON) != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(rawJSON), &m); err != nil {
			return nil, fmt.Errorf("context json: %w", err)
		}
		for k, v := range m {
			switch v.(type) {
			case map[string]any, []any:
				return nil, fmt.Errorf("context key %q: value must be a scalar", k)
			}
		}
		ctx = model.FromMap(m)
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("context %q: want key=value", pair)
		}
		ctx[key] = parseScalar(value)
	}
	return ctx, nil
}

// parseScalar reads true/false, null and numbers as typed values and
// anything else as a string.
func parseScalar(s string) model.Value {
	t := strings.TrimSpace(s)
	switch t {
	case "true":
		return model.Bool(true)
	case "false":
		return model.Bool(false)
	case "null":
		return model.Null()
	}
	if n, err := strconv.ParseFloat(t, 64); err == nil {
		return model.Number(n)
	}
	return model.String(s)
}
