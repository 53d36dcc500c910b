package schema

import (
	"encoding/json"
	"sort"

	"github.com/gridtext/gridtext/internal/analysis"
	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/internal/mapping"
)

// TypeLevelSuffix is the reserved synthetic path suffix appended to a type
// name to form the base path of whole-entity declarations, keeping their
// field identity distinct from column-nested identity.
const TypeLevelSuffix = "$type"

// SpecList accepts either a single mapper declaration or a list of them
// under one map key.
type SpecList []mapping.Spec

// UnmarshalJSON handles both the single-object and the array form.
func (l *SpecList) UnmarshalJSON(data []byte) error {
	var many []mapping.Spec
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one mapping.Spec
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = SpecList{one}
	return nil
}

// Declaration is the serialized schema form embedded in an index
// configuration payload.
type Declaration struct {
	Keyspace        string                   `json:"keyspace,omitempty"`
	DefaultAnalyzer string                   `json:"default_analyzer,omitempty"`
	Analyzers       map[string]analysis.Spec `json:"analyzers,omitempty"`
	Types           map[string]SpecList      `json:"types,omitempty"`
	Fields          map[string]SpecList      `json:"fields,omitempty"`
}

// FromJSON deserializes a schema declaration.
func FromJSON(payload string) (*Declaration, error) {
	var d Declaration
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, gterrors.Wrap(gterrors.ErrCategoryConfig, gterrors.CodeBadPayload,
			"schema bad formatted", err)
	}
	return &d, nil
}

// Compile builds the runtime Schema: analyzers first, then whole-entity
// declarations, then per-field declarations. Duplicate field names fail
// compilation naming the conflicting field and its owner.
func (d *Declaration) Compile() (*Schema, error) {
	registry := analysis.NewRegistry()
	for name, spec := range d.Analyzers {
		if err := registry.Register(name, spec); err != nil {
			return nil, err
		}
	}

	defaultAnalyzer := d.DefaultAnalyzer
	if defaultAnalyzer == "" {
		defaultAnalyzer = analysis.DefaultAnalyzer
	}
	if err := registry.Resolve(defaultAnalyzer); err != nil {
		return nil, err
	}

	s := newSchema(d.Keyspace, defaultAnalyzer, registry)

	// Type-level declarations carry no natural base path, so their field
	// names are required.
	for _, typeName := range sortedKeys(d.Types) {
		base := typeName + TypeLevelSuffix
		for _, spec := range d.Types[typeName] {
			if err := s.insert(typeName, base, spec, true); err != nil {
				return nil, err
			}
		}
	}

	for _, path := range sortedKeys(d.Fields) {
		for _, spec := range d.Fields[path] {
			if err := s.insert(path, path, spec, false); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func sortedKeys(m map[string]SpecList) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// insert compiles one spec and adds it to the field map, enforcing field
// name uniqueness across the merged type-level and field-level sets.
func (s *Schema) insert(owner, base string, spec mapping.Spec, requireField bool) error {
	m, err := spec.Compile(base, requireField)
	if err != nil {
		return err
	}
	if err := s.Analyzers.Resolve(m.Analyzer); err != nil {
		return err
	}
	if _, exists := s.mappers[m.Name]; exists {
		return gterrors.NewConfigError(gterrors.CodeDuplicateField,
			"duplicate field name %q declared on %q", m.Name, owner)
	}
	s.mappers[m.Name] = m
	s.fields = append(s.fields, m.Name)
	return nil
}
