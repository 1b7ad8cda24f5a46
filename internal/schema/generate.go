package schema

import (
	"encoding/json"
	"sort"

	"github.com/skillet-data/skillet/internal/registry"
)

// sortedKeys returns map keys in sorted order so validation and
// generation output are deterministic.
func sortedKeys(m map[string]registry.ValueType) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedConfigKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Generate renders the registry's current state as a JSON Schema
// document for recipe-authoring tooling. Output is deterministic:
// kinds are sorted and all maps marshal with sorted keys, so
// regenerating against the same registry yields identical bytes.
func Generate(kinds registry.Resolver) ([]byte, error) {
	stepSchema := map[string]interface{}{
		"oneOf": stepAlternatives(kinds),
	}
	doc := map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   "skillet recipe",
		"type":    "object",
		"properties": map[string]interface{}{
			"read": map[string]interface{}{
				"type":  "array",
				"items": stepSchema,
			},
			"wrangles": map[string]interface{}{
				"type":  "array",
				"items": stepSchema,
			},
			"write": map[string]interface{}{
				"type":  "array",
				"items": stepSchema,
			},
		},
		"additionalProperties": false,
	}
	return json.MarshalIndent(doc, "", "  ")
}

func stepAlternatives(kinds registry.Resolver) []interface{} {
	names := kinds.Kinds()
	out := make([]interface{}, 0, len(names))
	for _, name := range names {
		entry, err := kinds.Resolve(name)
		if err != nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				name: configSchema(entry.Schema),
			},
			"required":             []string{name},
			"additionalProperties": false,
		})
	}
	return out
}

func configSchema(s registry.Schema) map[string]interface{} {
	props := map[string]interface{}{
		onErrorKey: map[string]interface{}{
			"type": "string",
			"enum": []string{"fail", "skip_row", "skip_step"},
		},
	}
	for _, key := range sortedKeys(s.Required) {
		props[key] = valueSchema(s.Required[key])
	}
	for _, key := range sortedKeys(s.Optional) {
		props[key] = valueSchema(s.Optional[key])
	}

	out := map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": s.Open,
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Required) > 0 {
		out["required"] = sortedKeys(s.Required)
	}
	return out
}

func valueSchema(vt registry.ValueType) map[string]interface{} {
	if vt == registry.TypeAny {
		return map[string]interface{}{}
	}
	return map[string]interface{}{"type": string(vt)}
}
