package mapping

import (
	"fmt"
	"strings"
	"time"

	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/pkg/types"
)

// Default digit limits for arbitrary-precision kinds.
const (
	DefaultBigIntegerDigits        = 32
	DefaultBigDecimalIntegerDigits = 32
	DefaultBigDecimalDecimalDigits = 32
)

// Spec is one declarative mapping rule as written in a schema declaration.
// Specs are plain data; Compile turns a spec into a runtime Mapper and
// performs all kind-specific validation.
type Spec struct {
	Kind      Kind   `json:"type" yaml:"type"`
	Field     string `json:"field,omitempty" yaml:"field,omitempty"`
	Column    string `json:"column,omitempty" yaml:"column,omitempty"`
	Validated bool   `json:"validated,omitempty" yaml:"validated,omitempty"`

	// Numeric kinds.
	Boost float64 `json:"boost,omitempty" yaml:"boost,omitempty"`

	// Arbitrary-precision kinds.
	Digits        int `json:"digits,omitempty" yaml:"digits,omitempty"`
	IntegerDigits int `json:"integer_digits,omitempty" yaml:"integer_digits,omitempty"`
	DecimalDigits int `json:"decimal_digits,omitempty" yaml:"decimal_digits,omitempty"`

	// Text kinds.
	Analyzer      string `json:"analyzer,omitempty" yaml:"analyzer,omitempty"`
	CaseSensitive *bool  `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`

	// Temporal kinds.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	From    string `json:"from,omitempty" yaml:"from,omitempty"`
	To      string `json:"to,omitempty" yaml:"to,omitempty"`
	VtFrom  string `json:"vt_from,omitempty" yaml:"vt_from,omitempty"`
	VtTo    string `json:"vt_to,omitempty" yaml:"vt_to,omitempty"`
	TtFrom  string `json:"tt_from,omitempty" yaml:"tt_from,omitempty"`
	TtTo    string `json:"tt_to,omitempty" yaml:"tt_to,omitempty"`

	// Geospatial kinds.
	Latitude   string         `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude  string         `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	MaxLevels  int            `json:"max_levels,omitempty" yaml:"max_levels,omitempty"`
	Transforms []GeoTransform `json:"transformations,omitempty" yaml:"transformations,omitempty"`
}

// Compile resolves the spec declared at basePath into a runtime Mapper.
// requireField forces an explicit field name (used for type-level
// declarations, which have no natural base path to fall back to).
func (s Spec) Compile(basePath string, requireField bool) (*Mapper, error) {
	name, err := MapperName(basePath, s.Field, requireField)
	if err != nil {
		return nil, err
	}
	column, err := ColumnName(basePath, s.Column, false)
	if err != nil {
		return nil, err
	}
	if column == "" {
		// A blank column means "use the field's own name as the column".
		column = name
	}

	boost := s.Boost
	if boost == 0 {
		boost = DefaultBoost
	}

	m := &Mapper{
		Name:      name,
		Kind:      s.Kind,
		Validated: s.Validated,
		Boost:     boost,
		Analyzer:  s.Analyzer,
	}

	switch s.Kind {
	case KindLong:
		m.singleColumn(column, coerceLong)
	case KindInteger:
		m.singleColumn(column, coerceInteger)
	case KindDouble:
		m.singleColumn(column, coerceDouble)
	case KindFloat:
		m.singleColumn(column, coerceFloat)
	case KindBoolean:
		m.singleColumn(column, coerceBoolean)
	case KindBytes:
		m.singleColumn(column, coerceBytes)
	case KindInet:
		m.singleColumn(column, coerceInet)
	case KindUUID:
		m.singleColumn(column, coerceUUID)
	case KindString:
		caseSensitive := s.CaseSensitive == nil || *s.CaseSensitive
		m.singleColumn(column, coerceStringFn(caseSensitive))
	case KindText:
		m.singleColumn(column, coerceText)
	case KindBigInteger:
		digits := s.Digits
		if digits == 0 {
			digits = DefaultBigIntegerDigits
		}
		if digits < 1 {
			return nil, gterrors.NewConfigError(gterrors.CodeBadOption,
				"field %q: digits must be strictly positive, found %d", name, s.Digits)
		}
		m.singleColumn(column, func(n string, v any) (any, error) {
			return coerceBigInteger(n, v, digits)
		})
	case KindBigDecimal:
		integerDigits, decimalDigits := s.IntegerDigits, s.DecimalDigits
		if integerDigits == 0 {
			integerDigits = DefaultBigDecimalIntegerDigits
		}
		if decimalDigits == 0 {
			decimalDigits = DefaultBigDecimalDecimalDigits
		}
		if integerDigits < 1 || decimalDigits < 1 {
			return nil, gterrors.NewConfigError(gterrors.CodeBadOption,
				"field %q: integer_digits and decimal_digits must be strictly positive", name)
		}
		m.singleColumn(column, func(n string, v any) (any, error) {
			return coerceBigDecimal(n, v, integerDigits, decimalDigits)
		})
	case KindDate:
		parser, err := NewDateParser(s.Pattern)
		if err != nil {
			return nil, err
		}
		m.singleColumn(column, func(n string, v any) (any, error) {
			t, err := parser.Parse(v)
			if err != nil {
				return nil, err
			}
			return t.UnixMilli(), nil
		})
	case KindDateRange:
		return s.compileDateRange(m, name)
	case KindBitemporal:
		return s.compileBitemporal(m, name)
	case KindGeoPoint:
		return s.compileGeoPoint(m, name)
	case KindGeoShape:
		return s.compileGeoShape(m, name, column)
	default:
		return nil, gterrors.NewConfigError(gterrors.CodeBadOption,
			"field %q: unsupported mapper type %d", name, int(s.Kind))
	}
	return m, nil
}

// compileDateRange wires a date_range mapper. The from and to anchor columns
// are always required, regardless of the validated flag.
func (s Spec) compileDateRange(m *Mapper, name string) (*Mapper, error) {
	if s.From == "" {
		return nil, missingParam(name, "from")
	}
	if s.To == "" {
		return nil, missingParam(name, "to")
	}
	parser, err := NewDateParser(s.Pattern)
	if err != nil {
		return nil, err
	}
	from, to := s.From, s.To
	m.Columns = []string{from, to}
	m.apply = func(row types.Row) ([]Field, error) {
		fromVal, toVal := row.ColumnValue(from), row.ColumnValue(to)
		if fromVal == nil && toVal == nil {
			return nil, nil
		}
		fromT, err := parser.Parse(types.Unwrap(fromVal))
		if err != nil {
			return nil, err
		}
		toT, err := parser.Parse(types.Unwrap(toVal))
		if err != nil {
			return nil, err
		}
		if err := checkOrdered(name, fromT, toT, from, to); err != nil {
			return nil, err
		}
		return []Field{m.field(DateRange{From: fromT, To: toT})}, nil
	}
	return m, nil
}

// compileBitemporal wires a bitemporal mapper. All four range-boundary
// columns are always required.
func (s Spec) compileBitemporal(m *Mapper, name string) (*Mapper, error) {
	for _, p := range []struct{ key, val string }{
		{"vt_from", s.VtFrom}, {"vt_to", s.VtTo}, {"tt_from", s.TtFrom}, {"tt_to", s.TtTo},
	} {
		if p.val == "" {
			return nil, missingParam(name, p.key)
		}
	}
	parser, err := NewDateParser(s.Pattern)
	if err != nil {
		return nil, err
	}
	vtFrom, vtTo, ttFrom, ttTo := s.VtFrom, s.VtTo, s.TtFrom, s.TtTo
	m.Columns = []string{vtFrom, vtTo, ttFrom, ttTo}
	m.apply = func(row types.Row) ([]Field, error) {
		if !row.Has(vtFrom) && !row.Has(vtTo) && !row.Has(ttFrom) && !row.Has(ttTo) {
			return nil, nil
		}
		parse := func(col string) (time.Time, error) {
			return parser.Parse(types.Unwrap(row.ColumnValue(col)))
		}
		vf, err := parse(vtFrom)
		if err != nil {
			return nil, err
		}
		vt, err := parse(vtTo)
		if err != nil {
			return nil, err
		}
		tf, err := parse(ttFrom)
		if err != nil {
			return nil, err
		}
		tt, err := parse(ttTo)
		if err != nil {
			return nil, err
		}
		if err := checkOrdered(name, vf, vt, vtFrom, vtTo); err != nil {
			return nil, err
		}
		if err := checkOrdered(name, tf, tt, ttFrom, ttTo); err != nil {
			return nil, err
		}
		return []Field{m.field(Bitemporal{VtFrom: vf, VtTo: vt, TtFrom: tf, TtTo: tt})}, nil
	}
	return m, nil
}

// compileGeoPoint wires a geo_point mapper. The latitude and longitude anchor
// columns are always required.
func (s Spec) compileGeoPoint(m *Mapper, name string) (*Mapper, error) {
	if s.Latitude == "" {
		return nil, missingParam(name, "latitude")
	}
	if s.Longitude == "" {
		return nil, missingParam(name, "longitude")
	}
	maxLevels := s.MaxLevels
	if maxLevels == 0 {
		maxLevels = DefaultGeoPointMaxLevels
	}
	if maxLevels < 1 || maxLevels > 24 {
		return nil, gterrors.NewConfigError(gterrors.CodeBadOption,
			"field %q: max_levels must be in [1, 24], found %d", name, s.MaxLevels)
	}
	lat, lon := s.Latitude, s.Longitude
	m.Columns = []string{lat, lon}
	m.apply = func(row types.Row) ([]Field, error) {
		latVal, lonVal := row.ColumnValue(lat), row.ColumnValue(lon)
		if latVal == nil && lonVal == nil {
			return nil, nil
		}
		latF, err := coerceDouble(name, types.Unwrap(latVal))
		if err != nil {
			return nil, err
		}
		lonF, err := coerceDouble(name, types.Unwrap(lonVal))
		if err != nil {
			return nil, err
		}
		latitude, longitude := latF.(float64), lonF.(float64)
		if latitude < -90 || latitude > 90 {
			return nil, gterrors.NewMappingError(gterrors.CodeValueOutOfRange,
				"field '%s' latitude '%v' is out of [-90, 90]", name, latitude)
		}
		if longitude < -180 || longitude > 180 {
			return nil, gterrors.NewMappingError(gterrors.CodeValueOutOfRange,
				"field '%s' longitude '%v' is out of [-180, 180]", name, longitude)
		}
		return []Field{m.field(GeoPoint{Latitude: latitude, Longitude: longitude, MaxLevels: maxLevels})}, nil
	}
	return m, nil
}

// compileGeoShape wires a geo_shape mapper with its transformation chain.
func (s Spec) compileGeoShape(m *Mapper, name, column string) (*Mapper, error) {
	for _, t := range s.Transforms {
		if err := t.validate(); err != nil {
			return nil, err
		}
	}
	transforms := s.Transforms
	m.singleColumn(column, func(n string, v any) (any, error) {
		str, ok := v.(string)
		if !ok {
			return nil, coercionError(n, v, "geo_shape")
		}
		shape, err := ParseWKT(str)
		if err != nil {
			return nil, gterrors.NewMappingError(gterrors.CodeCoercionFailed,
				"field '%s' with value '%v' can not be parsed as geo_shape: %v", n, v, err)
		}
		return applyTransforms(shape, transforms).WKT(), nil
	})
	return m, nil
}

func coerceStringFn(caseSensitive bool) func(string, any) (any, error) {
	return func(name string, value any) (any, error) {
		s, err := coerceText(name, value)
		if err != nil {
			return nil, err
		}
		if !caseSensitive {
			return strings.ToLower(s.(string)), nil
		}
		return s, nil
	}
}

func coerceText(name string, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int8, int16, int32, int64, uint, uint32, uint64, float32, float64, bool:
		return fmt.Sprintf("%v", v), nil
	}
	return nil, coercionError(name, value, "string")
}

func checkOrdered(name string, from, to time.Time, fromCol, toCol string) error {
	if to.Before(from) {
		return gterrors.NewMappingError(gterrors.CodeValueOutOfRange,
			"field '%s': %s (%v) is after %s (%v)", name, fromCol, from, toCol, to)
	}
	return nil
}

func missingParam(field, param string) error {
	return gterrors.NewConfigError(gterrors.CodeMissingParameter,
		"field %q: %s column is required", field, param)
}
