package mapping

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapperName_Resolution(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		declared string
		required bool
		want     string
		wantErr  bool
	}{
		{name: "blank falls back to base", base: "user.name", declared: "", want: "user.name"},
		{name: "blank required fails", base: "user.name", declared: "", required: true, wantErr: true},
		{name: "declared replaces last segment", base: "user.name", declared: "alias", want: "user.alias"},
		{name: "declared replaces dotless base", base: "name", declared: "alias", want: "alias"},
		{name: "deep path keeps prefix", base: "a.b.c", declared: "x", want: "a.b.x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapperName(tt.base, tt.declared, tt.required)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.base)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnName_BlankNotRequiredIsEmpty(t *testing.T) {
	got, err := ColumnName("user.name", "", false)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = ColumnName("user.name", "", true)
	require.Error(t, err)
}

// Name resolution properties: a blank name always resolves to the base path
// (or errors when required), and a declared name always lands in the base
// path's parent segment.
func TestProperty_NameResolution(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	segment := gen.RegexMatch(`[a-z][a-z0-9_]{0,8}`)
	path := gopter.CombineGens(
		gen.SliceOfN(3, segment),
		gen.IntRange(1, 3),
	).Map(func(vals []any) string {
		segs := vals[0].([]string)
		n := vals[1].(int)
		return strings.Join(segs[:n], ".")
	})

	properties.Property("blank declared name resolves to the base path", prop.ForAll(
		func(base string) bool {
			got, err := MapperName(base, "", false)
			return err == nil && got == base
		},
		path,
	))

	properties.Property("blank declared name with required always fails", prop.ForAll(
		func(base string) bool {
			_, err := MapperName(base, "", true)
			return err != nil
		},
		path,
	))

	properties.Property("declared name replaces exactly the last segment", prop.ForAll(
		func(base, declared string) bool {
			got, err := MapperName(base, declared, false)
			if err != nil {
				return false
			}
			i := strings.LastIndexByte(base, '.')
			if i < 0 {
				return got == declared
			}
			return got == base[:i+1]+declared && strings.HasSuffix(got, declared)
		},
		path,
		segment,
	))

	properties.TestingRun(t)
}
