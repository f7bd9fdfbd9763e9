// Package jsonutil normalizes loosely-typed JSON values that LLMs return
// in place of the schema the prompt asked for.
package jsonutil

import (
	"encoding/json"
	"fmt"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Try number
	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	// Try boolean
	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// KeyedPair is the {key, value} element emitted by schema-constrained
// backends that cannot express open-ended JSON maps.
type KeyedPair struct {
	Key   json.RawMessage `json:"key"`
	Value any             `json:"value"`
}

// FlexibleMapValue converts a json.RawMessage holding either a JSON object
// or a list of {key, value} pairs into a map. Duplicate keys in the pairs
// form resolve last-write-wins. Returns nil for null/empty input.
func FlexibleMapValue(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap, nil
	}

	var pairs []KeyedPair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("expected JSON object or {key, value} pair list: %w", err)
	}

	result := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key := FlexibleStringValue(p.Key)
		if key == "" {
			continue
		}
		result[key] = p.Value
	}
	return result, nil
}

// FlexibleStringSlice converts a json.RawMessage holding either a JSON
// array or a bare scalar into a string slice. Non-string array elements
// are stringified. Returns nil for null/empty input.
func FlexibleStringSlice(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		result := make([]string, 0, len(items))
		for _, item := range items {
			if s := FlexibleStringValue(item); s != "" {
				result = append(result, s)
			}
		}
		return result
	}

	if s := FlexibleStringValue(raw); s != "" {
		return []string{s}
	}
	return nil
}
