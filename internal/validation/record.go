// Package validation checks secret record attributes against the JSON
// Schema for their credential kind before a rotator runs, so malformed
// records fail with a configuration error instead of a provider call deep in
// a phase.
package validation

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// RecordValidator validates credential record attributes against the
// embedded per-kind schemas.
type RecordValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewRecordValidator compiles the embedded schemas. The schema file name
// (without extension) is the credential kind it applies to.
func NewRecordValidator() (*RecordValidator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schemas: %w", err)
	}

	v := &RecordValidator{schemas: make(map[string]*gojsonschema.Schema, len(entries))}
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid schema %s: %w", entry.Name(), err)
		}
		kind := strings.TrimSuffix(entry.Name(), ".json")
		v.schemas[kind] = schema
	}
	return v, nil
}

// Validate checks an attribute payload against the schema for its kind.
// Kinds without a schema pass; unknown kinds are rejected earlier, at record
// parse time.
func (v *RecordValidator) Validate(kind string, attributes []byte) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(attributes))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("invalid %s attributes: %s", kind, strings.Join(msgs, "; "))
	}
	return nil
}
