package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/graphqa/internal/types"
)

//go:embed builtin/fhir.yaml
var builtinFHIR []byte

// Source selects where the schema is loaded from.
type Source string

const (
	SourceBuiltin    Source = "builtin"
	SourceFile       Source = "file"
	SourceIntrospect Source = "introspect"
)

// Builtin returns the compiled-in FHIR patient schema.
func Builtin() (*GraphSchema, error) {
	return Parse(builtinFHIR)
}

// MustBuiltin is Builtin for tests and examples.
func MustBuiltin() *GraphSchema {
	s, err := Builtin()
	if err != nil {
		panic(err)
	}
	return s
}

// LoadFile reads and validates a YAML schema file.
func LoadFile(path string) (*GraphSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(ErrCodeSchemaLoadFailed,
			fmt.Sprintf("failed to read schema file %s", path), err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML (or JSON) schema document.
// Unknown fields are rejected so typos in hand-written schemas surface early.
func Parse(data []byte) (*GraphSchema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s GraphSchema
	if err := dec.Decode(&s); err != nil {
		return nil, types.WrapError(ErrCodeSchemaLoadFailed, "failed to parse schema", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// YAML encodes the schema in the file format accepted by LoadFile.
func (s *GraphSchema) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
