package mapping

import (
	"strings"

	gterrors "github.com/gridtext/gridtext/internal/errors"
)

// MapperName resolves the search-document field name for a declaration made
// at basePath. A blank declared name falls back to the base path itself;
// otherwise the declared name replaces the last dot-segment of the base path.
// When required is set, a blank declared name is a configuration error.
func MapperName(basePath, declared string, required bool) (string, error) {
	if declared == "" {
		if required {
			return "", gterrors.NewConfigError(gterrors.CodeMissingParameter,
				"field name required at %q", basePath)
		}
		return basePath, nil
	}
	return replaceLastSegment(basePath, declared), nil
}

// ColumnName resolves the source column for a declaration made at basePath.
// Unlike MapperName, a blank declared column resolves to the empty string
// when not required: callers treat an empty column as "use the field's own
// name as the column".
func ColumnName(basePath, declared string, required bool) (string, error) {
	if declared == "" {
		if required {
			return "", gterrors.NewConfigError(gterrors.CodeMissingParameter,
				"column name required at %q", basePath)
		}
		return "", nil
	}
	return replaceLastSegment(basePath, declared), nil
}

// replaceLastSegment substitutes the final dot-segment of path with name.
// A path without dots is replaced wholesale.
func replaceLastSegment(path, name string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return name
	}
	return path[:i+1] + name
}
