// Package analysis implements the pipeline ports. Each port has an
// LLM-backed adapter and a deterministic heuristic twin so the pipeline
// runs with or without a provider.
package analysis

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// extractJSONObject pulls the JSON object out of a model response. Models
// occasionally wrap output in markdown fences or prose; take the outermost
// object and validate it.
func extractJSONObject(raw string) (string, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return "", errors.New("empty llm response")
	}

	if strings.HasPrefix(payload, "```") {
		payload = strings.TrimPrefix(payload, "```json")
		payload = strings.TrimPrefix(payload, "```")
		payload = strings.TrimSpace(payload)
		if idx := strings.LastIndex(payload, "```"); idx != -1 {
			payload = payload[:idx]
		}
		payload = strings.TrimSpace(payload)
	}

	if json.Valid([]byte(payload)) {
		return payload, nil
	}

	start := strings.Index(payload, "{")
	end := strings.LastIndex(payload, "}")
	if start == -1 || end == -1 || end <= start {
		return "", errors.New("no json object found")
	}

	candidate := payload[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", errors.New("invalid json object")
	}
	return candidate, nil
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(raw), `"`)
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
