package config

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// rawSchema catches malformed config files (wrong types, unknown sections)
// with a readable error before koanf unmarshals them.
const rawSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "duplicates": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "min_lines": {"type": "integer"},
        "min_tokens": {"type": "integer"},
        "normalize_identifiers": {"type": "boolean"},
        "normalize_literals": {"type": "boolean"},
        "max_file_size": {"type": "integer"}
      }
    },
    "nesting": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_depth": {"type": "integer"}
      }
    },
    "magic_numbers": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "allowed": {"type": "array", "items": {"type": "string"}}
      }
    },
    "classes": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_methods": {"type": "integer"},
        "max_lines": {"type": "integer"}
      }
    },
    "exclude": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "patterns": {"type": "array", "items": {"type": "string"}},
        "dirs": {"type": "array", "items": {"type": "string"}},
        "gitignore": {"type": "boolean"}
      }
    },
    "cache": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "dir": {"type": "string"}
      }
    },
    "output": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "format": {"type": "string", "enum": ["text", "json", "markdown", "toon"]},
        "color": {"type": "boolean"}
      }
    },
    "workers": {"type": "integer"},
    "strict": {"type": "boolean"}
  }
}`

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(rawSchema))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("augur-config.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("augur-config.json")
})

// validateSchema checks a raw config map against the embedded schema.
func validateSchema(raw map[string]any) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	return schema.Validate(normalizeForSchema(raw))
}

// normalizeForSchema converts parser-specific scalar types (e.g. TOML
// int64) into the JSON-domain values the validator expects.
func normalizeForSchema(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeForSchema(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeForSchema(item)
		}
		return out
	case int:
		return int64(val)
	default:
		return val
	}
}
