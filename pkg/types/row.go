// Package types holds the value types shared across the gridtext index layer:
// rows, keys, cursors and search hits. These are plain data carriers with no
// behavior beyond lookup helpers, so every internal package can depend on them
// without import cycles.
package types

import "strings"

// Row is a single table row presented to the index layer as a mapping from
// column name to value. Nested values (maps of maps) are addressed with
// dotted paths, e.g. "address.city".
type Row map[string]any

// ColumnValue returns the value stored under the given column path, or nil if
// any path segment is absent. A flat key containing dots is preferred over a
// nested traversal so callers can use either representation.
func (r Row) ColumnValue(column string) any {
	if v, ok := r[column]; ok {
		return v
	}
	segments := strings.Split(column, ".")
	var current any = map[string]any(r)
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return current
}

// Has reports whether the column path resolves to a non-nil value.
func (r Row) Has(column string) bool {
	return r.ColumnValue(column) != nil
}
