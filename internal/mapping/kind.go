// Package mapping implements the field mapper set: declarative per-column
// mapping rules that translate typed table values into search-document
// fields. Mapper kinds form a closed set; the schema compiler switches
// exhaustively over them, so adding a kind without a compile branch is a
// detectable gap.
package mapping

import (
	gterrors "github.com/gridtext/gridtext/internal/errors"
)

// Kind identifies a mapper variant.
type Kind int

const (
	KindBytes Kind = iota
	KindBigInteger
	KindBoolean
	KindDate
	KindDouble
	KindFloat
	KindInet
	KindInteger
	KindText
	KindString
	KindUUID
	KindLong
	KindBigDecimal
	KindDateRange
	KindBitemporal
	KindGeoPoint
	KindGeoShape
)

var kindNames = map[Kind]string{
	KindBytes:      "bytes",
	KindBigInteger: "big_integer",
	KindBoolean:    "boolean",
	KindDate:       "date",
	KindDouble:     "double",
	KindFloat:      "float",
	KindInet:       "inet",
	KindInteger:    "integer",
	KindText:       "text",
	KindString:     "string",
	KindUUID:       "uuid",
	KindLong:       "long",
	KindBigDecimal: "big_decimal",
	KindDateRange:  "date_range",
	KindBitemporal: "bitemporal",
	KindGeoPoint:   "geo_point",
	KindGeoShape:   "geo_shape",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// String returns the declaration name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind resolves a declaration name to a Kind.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindsByName[name]; ok {
		return k, nil
	}
	return 0, gterrors.NewConfigError(gterrors.CodeBadOption,
		"unknown mapper type %q", name)
}

// MarshalText implements encoding.TextMarshaler for JSON/YAML declarations.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
