package mapping

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/pkg/types"
)

// DefaultBoost is the index-time boost applied when a numeric mapper
// declares none.
const DefaultBoost = 1.0

// Field is one search-document field produced by a mapper.
type Field struct {
	// Name is the document field name.
	Name string

	// Value is the normalized value handed to the full-text engine.
	Value any

	// Boost is the index-time boost factor.
	Boost float64

	// Norms marks the norms-bearing field representation. Norms cannot be
	// omitted when Boost differs from the default, so this is derived, not
	// declared.
	Norms bool

	// Analyzer names the analyzer for tokenized text fields; empty for
	// untokenized fields.
	Analyzer string
}

// DateRange is the normalized value of a date_range field.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Bitemporal is the normalized value of a bitemporal field: a valid-time
// range plus a transaction-time range.
type Bitemporal struct {
	VtFrom time.Time
	VtTo   time.Time
	TtFrom time.Time
	TtTo   time.Time
}

// GeoPoint is the normalized value of a geo_point field.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
	MaxLevels int
}

// Mapper is a compiled, immutable mapping rule bound to one document field.
type Mapper struct {
	// Name is the resolved document field name.
	Name string

	// Kind is the mapper variant.
	Kind Kind

	// Columns lists the source columns the mapper reads.
	Columns []string

	// Validated controls write-time failure semantics: true aborts the
	// enclosing write on a mapping error, false logs and omits the field.
	Validated bool

	// Boost is the index-time boost for numeric kinds.
	Boost float64

	// Analyzer names the analyzer for text kinds, already resolved against
	// the schema's registry.
	Analyzer string

	apply func(row types.Row) ([]Field, error)
}

// Map applies the rule to a row, producing zero or more document fields.
// Absent source values yield no fields rather than an error.
func (m *Mapper) Map(row types.Row) ([]Field, error) {
	return m.apply(row)
}

// field assembles an output field with the mapper's boost semantics.
func (m *Mapper) field(value any) Field {
	return Field{
		Name:     m.Name,
		Value:    value,
		Boost:    m.Boost,
		Norms:    m.Boost != DefaultBoost,
		Analyzer: m.Analyzer,
	}
}

// singleColumn wires an apply function that reads one source column, skips
// absent values and coerces the rest.
func (m *Mapper) singleColumn(column string, coerce func(name string, value any) (any, error)) {
	m.Columns = []string{column}
	m.apply = func(row types.Row) ([]Field, error) {
		raw := row.ColumnValue(column)
		if raw == nil {
			return nil, nil
		}
		v, err := coerce(m.Name, types.Unwrap(raw))
		if err != nil {
			return nil, err
		}
		return []Field{m.field(v)}, nil
	}
}

// Value coercions. Error messages name the field and offending value so
// write-time failures are attributable.

func coerceLong(name string, value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UnixMilli(), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, coercionError(name, value, "long")
		}
		return int64(f), nil
	}
	if n, ok := toInt64(value); ok {
		return n, nil
	}
	return nil, coercionError(name, value, "long")
}

func coerceInteger(name string, value any) (any, error) {
	v, err := coerceLong(name, value)
	if err != nil {
		return nil, coercionError(name, value, "integer")
	}
	n := v.(int64)
	if n > int64(^uint32(0)>>1) || n < -int64(^uint32(0)>>1)-1 {
		return nil, gterrors.NewMappingError(gterrors.CodeValueOutOfRange,
			"field '%s' with value '%v' overflows an integer", name, value)
	}
	return int32(n), nil
}

func coerceDouble(name string, value any) (any, error) {
	if s, ok := value.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, coercionError(name, value, "double")
		}
		return f, nil
	}
	if f, ok := toFloat64(value); ok {
		return f, nil
	}
	return nil, coercionError(name, value, "double")
}

func coerceFloat(name string, value any) (any, error) {
	v, err := coerceDouble(name, value)
	if err != nil {
		return nil, coercionError(name, value, "float")
	}
	return float32(v.(float64)), nil
}

func coerceBoolean(name string, value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return nil, coercionError(name, value, "boolean")
}

func coerceBytes(name string, value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return hex.EncodeToString(v), nil
	case string:
		s := strings.TrimPrefix(v, "0x")
		if _, err := hex.DecodeString(s); err != nil {
			return nil, coercionError(name, value, "bytes")
		}
		return strings.ToLower(s), nil
	}
	return nil, coercionError(name, value, "bytes")
}

func coerceInet(name string, value any) (any, error) {
	switch v := value.(type) {
	case netip.Addr:
		return v.String(), nil
	case string:
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, coercionError(name, value, "inet")
		}
		return addr.String(), nil
	}
	return nil, coercionError(name, value, "inet")
}

func coerceUUID(name string, value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, coercionError(name, value, "uuid")
		}
		return id.String(), nil
	case []byte:
		id, err := uuid.FromBytes(v)
		if err != nil {
			return nil, coercionError(name, value, "uuid")
		}
		return id.String(), nil
	}
	return nil, coercionError(name, value, "uuid")
}

// coerceBigInteger normalizes arbitrary-precision integers and enforces the
// declared digit limit.
func coerceBigInteger(name string, value any, digits int) (any, error) {
	var b *big.Int
	switch v := value.(type) {
	case *big.Int:
		b = new(big.Int).Set(v)
	case string:
		var ok bool
		b, ok = new(big.Int).SetString(v, 10)
		if !ok {
			return nil, coercionError(name, value, "big_integer")
		}
	default:
		n, ok := toInt64(value)
		if !ok {
			return nil, coercionError(name, value, "big_integer")
		}
		b = big.NewInt(n)
	}
	if len(new(big.Int).Abs(b).String()) > digits {
		return nil, gterrors.NewMappingError(gterrors.CodeValueOutOfRange,
			"field '%s' with value '%v' has more than %d digits", name, value, digits)
	}
	return b.String(), nil
}

// coerceBigDecimal normalizes arbitrary-precision decimals against separate
// integer and decimal digit limits.
func coerceBigDecimal(name string, value any, integerDigits, decimalDigits int) (any, error) {
	var s string
	switch v := value.(type) {
	case *big.Float:
		s = v.Text('f', -1)
	case string:
		s = v
	default:
		f, ok := toFloat64(value)
		if !ok {
			return nil, coercionError(name, value, "big_decimal")
		}
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, coercionError(name, value, "big_decimal")
	}
	normalized := r.FloatString(decimalDigits)
	intPart, _, _ := strings.Cut(strings.TrimPrefix(normalized, "-"), ".")
	if len(intPart) > integerDigits {
		return nil, gterrors.NewMappingError(gterrors.CodeValueOutOfRange,
			"field '%s' with value '%v' has more than %d integer digits", name, value, integerDigits)
	}
	return normalized, nil
}

func coercionError(name string, value any, kind string) error {
	return gterrors.NewMappingError(gterrors.CodeCoercionFailed,
		"field '%s' with value '%v' can not be parsed as %s", name, value, kind)
}

func (m *Mapper) String() string {
	return fmt.Sprintf("%s mapper on field %q (columns %v)", m.Kind, m.Name, m.Columns)
}
