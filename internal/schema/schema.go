// Package schema compiles declarative mapper sets into the queryable mapping
// definition for one indexed entity. A compiled Schema is immutable and
// shared read-only by every partition of an index; schema changes replace the
// whole object, never mutate it.
package schema

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gridtext/gridtext/internal/analysis"
	"github.com/gridtext/gridtext/internal/mapping"
)

// Synthetic suffixes for cells of collection-valued columns. Mapped-columns
// introspection collapses these back to the owning real column name.
const (
	CollectionKeyCell   = "._key"
	CollectionValueCell = "._value"
)

// columnCacheSize bounds the lazily-populated column-to-mappers lookup cache.
const columnCacheSize = 256

// Schema is the compiled mapping definition for one indexed entity.
type Schema struct {
	// Keyspace is the logical grouping tag for the owning table.
	Keyspace string

	// DefaultAnalyzer is applied to text fields that declare no analyzer.
	DefaultAnalyzer string

	// Analyzers is the named analyzer registry the schema was compiled
	// against.
	Analyzers *analysis.Registry

	mappers map[string]*mapping.Mapper
	fields  []string

	// columnCache memoizes column-to-mapper resolution. It is owned by the
	// schema and dies with it on schema replacement, so invalidation is the
	// swap itself.
	columnCache *lru.Cache[string, []*mapping.Mapper]
}

func newSchema(keyspace, defaultAnalyzer string, registry *analysis.Registry) *Schema {
	cache, _ := lru.New[string, []*mapping.Mapper](columnCacheSize)
	return &Schema{
		Keyspace:        keyspace,
		DefaultAnalyzer: defaultAnalyzer,
		Analyzers:       registry,
		mappers:         make(map[string]*mapping.Mapper),
		columnCache:     cache,
	}
}

// Fields returns the document field names in declaration order.
func (s *Schema) Fields() []string {
	return s.fields
}

// Mapper returns the mapper compiled for the given document field.
func (s *Schema) Mapper(field string) (*mapping.Mapper, bool) {
	m, ok := s.mappers[field]
	return m, ok
}

// Mappers returns all compiled mappers in declaration order.
func (s *Schema) Mappers() []*mapping.Mapper {
	out := make([]*mapping.Mapper, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, s.mappers[f])
	}
	return out
}

// MappersForColumn returns the mappers that read the given source column.
// Results are memoized in the schema-owned cache.
func (s *Schema) MappersForColumn(column string) []*mapping.Mapper {
	if cached, ok := s.columnCache.Get(column); ok {
		return cached
	}
	var out []*mapping.Mapper
	for _, f := range s.fields {
		m := s.mappers[f]
		for _, c := range m.Columns {
			if c == column || strings.HasPrefix(c, column+".") {
				out = append(out, m)
				break
			}
		}
	}
	s.columnCache.Add(column, out)
	return out
}

// MappedColumns returns the real table columns the schema reads. Synthetic
// collection-cell names are collapsed back to their owning column; columns of
// complexColumns are matched by prefix. When all is false, columns absent
// from typeColumns are dropped.
func (s *Schema) MappedColumns(typeColumns, complexColumns []string, all bool) []string {
	known := make(map[string]bool, len(typeColumns))
	for _, c := range typeColumns {
		known[strings.ToLower(c)] = true
	}

	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	for _, f := range s.fields {
		for _, cell := range s.mappers[f].Columns {
			cell = collapseCell(cell)
			normalized := strings.ToLower(cell)
			collapsed := ""
			for _, complex := range complexColumns {
				if strings.HasPrefix(normalized, strings.ToLower(complex)) {
					collapsed = cell[:len(complex)]
					break
				}
			}
			if collapsed != "" {
				add(collapsed)
				continue
			}
			if known[normalized] || all {
				add(cell)
			}
		}
	}
	return out
}

// collapseCell strips the synthetic collection-cell suffix so the owning
// real column is reported instead.
func collapseCell(cell string) string {
	if base, ok := strings.CutSuffix(cell, CollectionKeyCell); ok {
		return base
	}
	if base, ok := strings.CutSuffix(cell, CollectionValueCell); ok {
		return base
	}
	return cell
}
