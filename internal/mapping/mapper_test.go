package mapping

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/pkg/types"
)

func compileSpec(t *testing.T, s Spec, base string) *Mapper {
	t.Helper()
	m, err := s.Compile(base, false)
	require.NoError(t, err)
	return m
}

func mapOne(t *testing.T, m *Mapper, row types.Row) Field {
	t.Helper()
	fields, err := m.Map(row)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	return fields[0]
}

func TestMapper_LongCoercions(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindLong}, "age")

	assert.Equal(t, int64(42), mapOne(t, m, types.Row{"age": 42}).Value)
	assert.Equal(t, int64(42), mapOne(t, m, types.Row{"age": int32(42)}).Value)
	assert.Equal(t, int64(42), mapOne(t, m, types.Row{"age": "42.5"}).Value)

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, ts.UnixMilli(), mapOne(t, m, types.Row{"age": ts}).Value)

	_, err := m.Map(types.Row{"age": "not a number"})
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeCoercionFailed, gterrors.GetCode(err))
	assert.Contains(t, err.Error(), "field 'age' with value 'not a number' can not be parsed as long")
}

func TestMapper_IntegerOverflow(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindInteger}, "count")

	assert.Equal(t, int32(7), mapOne(t, m, types.Row{"count": 7}).Value)

	_, err := m.Map(types.Row{"count": int64(1) << 40})
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeValueOutOfRange, gterrors.GetCode(err))
}

func TestMapper_AbsentColumnYieldsNoFields(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindLong}, "age")
	fields, err := m.Map(types.Row{"other": 1})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestMapper_UnwrapsBoxedValues(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindLong}, "age")
	got := mapOne(t, m, types.Row{"age": types.Boxed{Value: 42}})
	assert.Equal(t, int64(42), got.Value)
}

func TestMapper_BooleanIsStrict(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindBoolean}, "active")

	assert.Equal(t, true, mapOne(t, m, types.Row{"active": true}).Value)
	assert.Equal(t, false, mapOne(t, m, types.Row{"active": "FALSE"}).Value)

	for _, bad := range []any{"yes", 1, "0"} {
		_, err := m.Map(types.Row{"active": bad})
		assert.Error(t, err, "value %v", bad)
	}
}

func TestMapper_BytesHexNormalization(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindBytes}, "blob")

	assert.Equal(t, "cafe", mapOne(t, m, types.Row{"blob": []byte{0xca, 0xfe}}).Value)
	assert.Equal(t, "cafe", mapOne(t, m, types.Row{"blob": "0xCAFE"}).Value)

	_, err := m.Map(types.Row{"blob": "zz"})
	require.Error(t, err)
}

func TestMapper_Inet(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindInet}, "addr")

	assert.Equal(t, "192.168.0.1", mapOne(t, m, types.Row{"addr": "192.168.0.1"}).Value)
	assert.Equal(t, "::1", mapOne(t, m, types.Row{"addr": "0:0:0:0:0:0:0:1"}).Value)

	_, err := m.Map(types.Row{"addr": "not-an-ip"})
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeCoercionFailed, gterrors.GetCode(err))
}

func TestMapper_UUID(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindUUID}, "id")
	id := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	assert.Equal(t, id.String(), mapOne(t, m, types.Row{"id": id}).Value)
	assert.Equal(t, id.String(), mapOne(t, m, types.Row{"id": id.String()}).Value)

	raw, _ := id.MarshalBinary()
	assert.Equal(t, id.String(), mapOne(t, m, types.Row{"id": raw}).Value)

	_, err := m.Map(types.Row{"id": "not-a-uuid"})
	require.Error(t, err)
}

func TestMapper_StringCaseSensitivity(t *testing.T) {
	insensitive := false
	m := compileSpec(t, Spec{Kind: KindString, CaseSensitive: &insensitive}, "code")
	assert.Equal(t, "abc", mapOne(t, m, types.Row{"code": "AbC"}).Value)

	m = compileSpec(t, Spec{Kind: KindString}, "code")
	assert.Equal(t, "AbC", mapOne(t, m, types.Row{"code": "AbC"}).Value)
}

func TestMapper_BigIntegerDigitLimit(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindBigInteger, Digits: 4}, "n")

	assert.Equal(t, "-1234", mapOne(t, m, types.Row{"n": "-1234"}).Value)
	assert.Equal(t, "99", mapOne(t, m, types.Row{"n": big.NewInt(99)}).Value)

	_, err := m.Map(types.Row{"n": "12345"})
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeValueOutOfRange, gterrors.GetCode(err))
}

func TestMapper_BigDecimalNormalization(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindBigDecimal, IntegerDigits: 4, DecimalDigits: 2}, "price")

	// Same numeric value normalizes to the same string regardless of input form.
	a := mapOne(t, m, types.Row{"price": "12.5"})
	b := mapOne(t, m, types.Row{"price": 12.50})
	assert.Equal(t, a.Value, b.Value)
	assert.Equal(t, "12.50", a.Value)

	_, err := m.Map(types.Row{"price": "123456.0"})
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeValueOutOfRange, gterrors.GetCode(err))
}

func TestMapper_BoostSelectsNormsBearingField(t *testing.T) {
	plain := compileSpec(t, Spec{Kind: KindLong}, "n")
	boosted := compileSpec(t, Spec{Kind: KindLong, Boost: 2.5}, "n")

	f := mapOne(t, plain, types.Row{"n": 1})
	assert.Equal(t, 1.0, f.Boost)
	assert.False(t, f.Norms)

	f = mapOne(t, boosted, types.Row{"n": 1})
	assert.Equal(t, 2.5, f.Boost)
	assert.True(t, f.Norms)
}

func TestMapper_DateRange(t *testing.T) {
	m, err := Spec{Kind: KindDateRange, From: "start", To: "stop", Pattern: "2006-01-02"}.Compile("duration", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "stop"}, m.Columns)

	f := mapOne(t, m, types.Row{"start": "2026-01-01", "stop": "2026-12-31"})
	dr, ok := f.Value.(DateRange)
	require.True(t, ok)
	assert.True(t, dr.From.Before(dr.To))

	// Reversed bounds fail.
	_, err = m.Map(types.Row{"start": "2026-12-31", "stop": "2026-01-01"})
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeValueOutOfRange, gterrors.GetCode(err))

	// Fully absent bounds yield nothing.
	fields, err := m.Map(types.Row{})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestMapper_Bitemporal(t *testing.T) {
	m, err := Spec{
		Kind:    KindBitemporal,
		VtFrom:  "vf", VtTo: "vt", TtFrom: "tf", TtTo: "tt",
		Pattern: "2006-01-02",
	}.Compile("validity", false)
	require.NoError(t, err)

	f := mapOne(t, m, types.Row{"vf": "2026-01-01", "vt": "2026-06-30", "tf": "2026-01-01", "tt": "2026-03-31"})
	bt, ok := f.Value.(Bitemporal)
	require.True(t, ok)
	assert.True(t, bt.VtFrom.Before(bt.VtTo))
	assert.True(t, bt.TtFrom.Before(bt.TtTo))

	_, err = m.Map(types.Row{"vf": "2026-06-30", "vt": "2026-01-01", "tf": "2026-01-01", "tt": "2026-03-31"})
	require.Error(t, err)
}

func TestMapper_GeoPointRange(t *testing.T) {
	m, err := Spec{Kind: KindGeoPoint, Latitude: "lat", Longitude: "lon"}.Compile("place", false)
	require.NoError(t, err)

	f := mapOne(t, m, types.Row{"lat": 40.4, "lon": -3.7})
	p, ok := f.Value.(GeoPoint)
	require.True(t, ok)
	assert.Equal(t, 40.4, p.Latitude)
	assert.Equal(t, -3.7, p.Longitude)
	assert.Equal(t, DefaultGeoPointMaxLevels, p.MaxLevels)

	_, err = m.Map(types.Row{"lat": 91.0, "lon": 0.0})
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeValueOutOfRange, gterrors.GetCode(err))

	_, err = m.Map(types.Row{"lat": 0.0, "lon": -181.0})
	require.Error(t, err)
}

func TestMapper_ColumnOverride(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindText, Column: "body"}, "content")
	assert.Equal(t, "content", m.Name)
	assert.Equal(t, []string{"body"}, m.Columns)

	f := mapOne(t, m, types.Row{"body": "hello"})
	assert.Equal(t, "content", f.Name)
	assert.Equal(t, "hello", f.Value)
}

func TestMapper_NestedColumnTraversal(t *testing.T) {
	m := compileSpec(t, Spec{Kind: KindText}, "user.name")
	f := mapOne(t, m, types.Row{"user": map[string]any{"name": "ada"}})
	assert.Equal(t, "ada", f.Value)
}
