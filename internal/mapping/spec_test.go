package mapping

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/pkg/types"
)

// Multi-column kinds require their anchor columns at compile time no matter
// how the validated flag is set.
func TestSpec_RequiredAnchorColumns(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		missing string
	}{
		{name: "date_range without from", spec: Spec{Kind: KindDateRange, To: "stop"}, missing: "from"},
		{name: "date_range without to", spec: Spec{Kind: KindDateRange, From: "start"}, missing: "to"},
		{name: "bitemporal without vt_from", spec: Spec{Kind: KindBitemporal, VtTo: "b", TtFrom: "c", TtTo: "d"}, missing: "vt_from"},
		{name: "bitemporal without tt_to", spec: Spec{Kind: KindBitemporal, VtFrom: "a", VtTo: "b", TtFrom: "c"}, missing: "tt_to"},
		{name: "geo_point without latitude", spec: Spec{Kind: KindGeoPoint, Longitude: "lon"}, missing: "latitude"},
		{name: "geo_point without longitude", spec: Spec{Kind: KindGeoPoint, Latitude: "lat"}, missing: "longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, validated := range []bool{true, false} {
				s := tt.spec
				s.Validated = validated
				_, err := s.Compile("f", false)
				require.Error(t, err)
				assert.Equal(t, gterrors.CodeMissingParameter, gterrors.GetCode(err))
				assert.Contains(t, err.Error(), tt.missing)
			}
		})
	}
}

func TestSpec_BadDigitLimits(t *testing.T) {
	_, err := Spec{Kind: KindBigInteger, Digits: -3}.Compile("n", false)
	require.Error(t, err)

	_, err = Spec{Kind: KindBigDecimal, IntegerDigits: -1}.Compile("n", false)
	require.Error(t, err)
}

func TestSpec_GeoPointMaxLevelsBounds(t *testing.T) {
	base := Spec{Kind: KindGeoPoint, Latitude: "lat", Longitude: "lon"}

	s := base
	s.MaxLevels = 25
	_, err := s.Compile("place", false)
	require.Error(t, err)

	s.MaxLevels = 24
	_, err = s.Compile("place", false)
	require.NoError(t, err)
}

func TestSpec_DefaultBigIntegerDigits(t *testing.T) {
	m, err := Spec{Kind: KindBigInteger}.Compile("n", false)
	require.NoError(t, err)

	// 32 digits pass, 33 fail.
	_, err = m.Map(types.Row{"n": "1" + strings.Repeat("0", 31)})
	assert.NoError(t, err)

	_, err = m.Map(types.Row{"n": "1" + strings.Repeat("0", 32)})
	assert.Error(t, err)
}

func TestSpec_ValidatedCarriesThrough(t *testing.T) {
	m, err := Spec{Kind: KindLong, Validated: true}.Compile("n", false)
	require.NoError(t, err)
	assert.True(t, m.Validated)
}
