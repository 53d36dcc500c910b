package options

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/internal/partition"
)

const minimalSchema = `{"fields":{"name":{"type":"string"}}}`

// payload builds a configuration payload from option overrides, always
// carrying a valid schema unless the override removes it.
func payload(t *testing.T, overrides map[string]string) string {
	t.Helper()
	raw := map[string]string{SchemaOption: minimalSchema}
	for k, v := range overrides {
		if v == "" {
			delete(raw, k)
		} else {
			raw[k] = v
		}
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	return string(data)
}

func TestParse_Defaults(t *testing.T) {
	opts, err := Parse(payload(t, nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultVersion, opts.Version)
	assert.Equal(t, DefaultRefreshSeconds, opts.RefreshSeconds)
	assert.Equal(t, DefaultRAMBufferMB, opts.RAMBufferMB)
	assert.Equal(t, DefaultMaxCachedMB, opts.MaxCachedMB)
	assert.Equal(t, DefaultOptimizerEnabled, opts.OptimizerEnabled)
	assert.Equal(t, DefaultOptimizerSchedule, opts.OptimizerSchedule)
	assert.Equal(t, "", opts.DirectoryPath)
	assert.Equal(t, partition.DefaultSpec(), opts.Partitioner)
	require.NotNil(t, opts.Schema)
	assert.Equal(t, []string{"name"}, opts.Schema.Fields())
}

func TestParse_SchemaRequired(t *testing.T) {
	_, err := Parse(`{}`)
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeSchemaRequired, gterrors.GetCode(err))
	assert.Contains(t, err.Error(), "schema is required")
}

func TestParse_BadPayload(t *testing.T) {
	_, err := Parse(`not json at all`)
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeBadPayload, gterrors.GetCode(err))
}

func TestParse_NumericConstraints(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		wantErr   string
	}{
		{
			name:      "refresh must be positive",
			overrides: map[string]string{RefreshSecondsOption: "0"},
			wantErr:   "'refresh_seconds' must be a strictly positive decimal, found: 0",
		},
		{
			name:      "refresh must be numeric",
			overrides: map[string]string{RefreshSecondsOption: "soon"},
			wantErr:   "'refresh_seconds' must be a decimal, found: soon",
		},
		{
			name:      "ram buffer must be positive",
			overrides: map[string]string{RAMBufferMBOption: "-2"},
			wantErr:   "'ram_buffer_mb' must be a strictly positive decimal, found: -2",
		},
		{
			name:      "max cached below -1 rejected",
			overrides: map[string]string{MaxCachedMBOption: "-2"},
			wantErr:   "'max_cached_mb' must be greater than or equal to -1",
		},
		{
			name:      "version must not be negative",
			overrides: map[string]string{VersionOption: "-1"},
			wantErr:   "'version' must be a strictly non-negative integer, found: -1",
		},
		{
			name:      "version must be an integer",
			overrides: map[string]string{VersionOption: "1.5"},
			wantErr:   "'version' must be an integer, found: 1.5",
		},
		{
			name:      "optimizer enabled must be boolean",
			overrides: map[string]string{OptimizerEnabledOption: "maybe"},
			wantErr:   "'optimizer_enabled' must be a boolean, found: maybe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(payload(t, tt.overrides))
			require.Error(t, err)
			assert.Equal(t, gterrors.CodeBadOption, gterrors.GetCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_MaxCachedSentinelAllowed(t *testing.T) {
	opts, err := Parse(payload(t, map[string]string{MaxCachedMBOption: "-1"}))
	require.NoError(t, err)
	assert.Equal(t, -1.0, opts.MaxCachedMB)

	opts, err = Parse(payload(t, map[string]string{MaxCachedMBOption: "0"}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, opts.MaxCachedMB)
}

func TestParse_Partitioner(t *testing.T) {
	opts, err := Parse(payload(t, map[string]string{
		PartitionerOption: `{"type":"token","partitions":4}`,
	}))
	require.NoError(t, err)
	assert.Equal(t, partition.TypeToken, opts.Partitioner.Type)
	assert.Equal(t, 4, opts.Partitioner.Partitions)

	// Bad partition counts fail at parse time.
	_, err = Parse(payload(t, map[string]string{
		PartitionerOption: `{"type":"token","partitions":0}`,
	}))
	require.Error(t, err)
	assert.Equal(t, gterrors.CodeBadPartitionCount, gterrors.GetCode(err))
}

// Scenario: hot-swappable knob changes are accepted, structural ones are not
// part of the predicate, stale versions lose outright.
func TestAllowedUpdate(t *testing.T) {
	base := func() *IndexOptions {
		opts, err := Parse(payload(t, map[string]string{VersionOption: "3"}))
		require.NoError(t, err)
		return opts
	}

	t.Run("nil and identity never allowed", func(t *testing.T) {
		current := base()
		assert.False(t, AllowedUpdate(nil, current))
		assert.False(t, AllowedUpdate(current, nil))
		assert.False(t, AllowedUpdate(current, current))
	})

	t.Run("stale version rejected even with delta", func(t *testing.T) {
		current, proposed := base(), base()
		proposed.Version = 2
		proposed.RAMBufferMB = 64
		assert.False(t, AllowedUpdate(current, proposed))
	})

	t.Run("same version with knob delta accepted", func(t *testing.T) {
		for _, change := range []func(*IndexOptions){
			func(o *IndexOptions) { o.MaxCachedMB = 256 },
			func(o *IndexOptions) { o.RAMBufferMB = 64 },
			func(o *IndexOptions) { o.OptimizerEnabled = !o.OptimizerEnabled },
			func(o *IndexOptions) { o.OptimizerSchedule = "30 2 * * *" },
			func(o *IndexOptions) { o.RefreshSeconds = 5 },
		} {
			current, proposed := base(), base()
			change(proposed)
			assert.True(t, AllowedUpdate(current, proposed))
		}
	})

	t.Run("pure version bump is not a change", func(t *testing.T) {
		current, proposed := base(), base()
		proposed.Version = 9
		assert.False(t, AllowedUpdate(current, proposed))
	})

	t.Run("structural fields are ignored", func(t *testing.T) {
		current, proposed := base(), base()
		proposed.DirectoryPath = "/elsewhere"
		proposed.SchemaJSON = `{"fields":{"other":{"type":"text"}}}`
		assert.False(t, AllowedUpdate(current, proposed))
	})
}

func TestBuildPartitioner_AttachesAffinity(t *testing.T) {
	opts, err := Parse(payload(t, map[string]string{
		PartitionerOption: `{"type":"token","partitions":4}`,
	}))
	require.NoError(t, err)

	p, err := opts.BuildPartitioner(partition.NewTokenRouter())
	require.NoError(t, err)

	got, err := p.PartitionFor("some-key")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 0)
	assert.Less(t, got, 4)
}
