package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "xevsource-config.schema.json"

// configSchema describes the on-disk document. Every section is optional;
// missing keys keep their defaults.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "display": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string"},
        "dial_timeout_ms": {"type": "integer", "minimum": 1}
      }
    },
    "source": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "rtt_sample_rate": {"type": "integer"},
        "ignore_native_mouse": {"type": "boolean"},
        "log_events": {"type": "boolean"}
      }
    },
    "devices": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "proc_path": {"type": "string"},
        "dev_dir": {"type": "string"},
        "watch": {"type": "boolean"},
        "force_polling": {"type": "boolean"},
        "settle_ms": {"type": "integer", "minimum": 0},
        "poll_interval_ms": {"type": "integer", "minimum": 1},
        "ignore_emulated_pointer": {"type": "boolean"},
        "blocked": {"type": "array", "items": {"type": "integer", "minimum": 0}}
      }
    },
    "journal": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "path": {"type": "string"},
        "batch_size": {"type": "integer", "minimum": 1},
        "flush_interval_ms": {"type": "integer", "minimum": 1},
        "buffer": {"type": "integer", "minimum": 1},
        "retention_days": {"type": "integer", "minimum": 0}
      }
    },
    "bus": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "addr": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "warning", "error"]},
        "format": {"enum": ["text", "json"]},
        "output": {"enum": ["stdout", "stderr", "file", "both"]},
        "file_path": {"type": "string"},
        "max_size_mb": {"type": "integer", "minimum": 1},
        "max_backups": {"type": "integer", "minimum": 0},
        "max_age_days": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(configSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// ErrSchema is wrapped by schema violations.
var ErrSchema = errors.New("config does not match schema")

// validateDocument checks the raw file against configSchema. The document
// is normalised through JSON so TOML and YAML numbers look like JSON ones.
func validateDocument(data []byte, format string) error {
	var doc map[string]any
	switch format {
	case "toml":
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalise config: %w", err)
	}
	var instance any
	if err := json.Unmarshal(normalized, &instance); err != nil {
		return fmt.Errorf("normalise config: %w", err)
	}

	s, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := s.Validate(instance); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrSchema, schemaMessage(verr))
		}
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// schemaMessage flattens the deepest causes into "location: message" pairs.
func schemaMessage(verr *jsonschema.ValidationError) string {
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(msgs, "; ")
}
