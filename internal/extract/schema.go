package extract

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var defaultSchemaYAML []byte

// FieldDef describes one scalar field the extractor may emit.
type FieldDef struct {
	Key         string `yaml:"key"`
	Description string `yaml:"description"`
}

// Schema is the set of scalar fields extraction is constrained to.
// Fields outside the schema are dropped at parse time.
type Schema struct {
	Fields []FieldDef `yaml:"fields"`

	byKey map[string]FieldDef
}

// DefaultSchema returns the embedded field schema.
func DefaultSchema() *Schema {
	s, err := parseSchema(defaultSchemaYAML)
	if err != nil {
		// The embedded schema is validated by tests; failing here means a
		// broken build, not a runtime condition.
		panic(err)
	}
	return s
}

// LoadSchema reads a schema override from path.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "extract: read schema file")
	}
	return parseSchema(data)
}

func parseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "extract: parse schema")
	}
	if len(s.Fields) == 0 {
		return nil, eris.New("extract: schema has no fields")
	}
	s.byKey = make(map[string]FieldDef, len(s.Fields))
	for _, f := range s.Fields {
		s.byKey[f.Key] = f
	}
	return &s, nil
}

// Known reports whether key is a schema field.
func (s *Schema) Known(key string) bool {
	_, ok := s.byKey[key]
	return ok
}
