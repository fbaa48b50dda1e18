package ingest

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://breachline.dev/schema/"

// Validator checks exported rows against the per-stream JSON schemas.
type Validator struct {
	schemas map[Stream]*jsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	v := &Validator{schemas: make(map[Stream]*jsonschema.Schema, len(Streams))}
	for _, s := range Streams {
		file := string(s) + ".schema.json"
		data, err := schemaFS.ReadFile("schemas/" + file)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", file, err)
		}
		url := schemaBaseURL + file
		if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", file, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", file, err)
		}
		v.schemas[s] = schema
	}
	return v, nil
}

// Validate checks one decoded row (as produced by json.Unmarshal into any).
func (v *Validator) Validate(stream Stream, row any) error {
	schema, ok := v.schemas[stream]
	if !ok {
		return fmt.Errorf("no schema for stream %q", stream)
	}
	return schema.Validate(row)
}
