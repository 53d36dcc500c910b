// Package options parses the versioned index configuration payload into a
// strongly typed option set and implements the hot-swap update protocol that
// decides whether a proposed configuration may replace a live one without a
// rebuild.
package options

import (
	"encoding/json"
	"math"
	"strconv"

	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/internal/partition"
	"github.com/gridtext/gridtext/internal/schema"
)

// Option keys accepted in the configuration payload.
const (
	SchemaOption            = "schema"
	VersionOption           = "version"
	RefreshSecondsOption    = "refresh_seconds"
	DirectoryPathOption     = "directory_path"
	RAMBufferMBOption       = "ram_buffer_mb"
	MaxCachedMBOption       = "max_cached_mb"
	PartitionerOption       = "partitioner"
	OptimizerScheduleOption = "optimizer_schedule"
	OptimizerEnabledOption  = "optimizer_enabled"
)

// Defaults for every optional key.
const (
	DefaultVersion           = 0
	DefaultRefreshSeconds    = 60.0
	DefaultRAMBufferMB       = 5.0
	DefaultMaxCachedMB       = -1.0
	DefaultDirectoryPath     = ""
	DefaultOptimizerEnabled  = true
	DefaultOptimizerSchedule = "0 1 * * *"
)

// IndexOptions is one immutable generation of index configuration. A new
// instance replaces the old on every accepted change; instances are never
// mutated.
type IndexOptions struct {
	// Version is the configuration generation counter. Updates carrying a
	// lower version than the live configuration are rejected.
	Version int

	// Schema is the compiled mapping definition.
	Schema *schema.Schema

	// SchemaJSON is the raw schema declaration the Schema was compiled from.
	SchemaJSON string

	// Partitioner is the partitioning descriptor. Structural: never part of
	// the hot-swap delta check.
	Partitioner partition.Spec

	// RefreshSeconds is the searcher refresh frequency. Strictly positive.
	RefreshSeconds float64

	// RAMBufferMB is the writer buffer budget per partition. Strictly
	// positive.
	RAMBufferMB float64

	// MaxCachedMB is the cache memory cap: -1 derives the cap from the host
	// memory region, 0 is unlimited, >0 is an explicit cap in MB.
	MaxCachedMB float64

	// DirectoryPath is the on-disk location of the index partitions.
	// Structural: changing it implies a rebuild decided by the caller.
	DirectoryPath string

	// OptimizerEnabled toggles the background optimizer.
	OptimizerEnabled bool

	// OptimizerSchedule is the optimizer's cron-style schedule.
	OptimizerSchedule string
}

// Parse deserializes a configuration payload: a flat string-keyed option
// map. The schema key is mandatory; every other key has a typed default.
func Parse(payload string) (*IndexOptions, error) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, gterrors.Wrap(gterrors.ErrCategoryConfig, gterrors.CodeBadPayload,
			"index options bad formatted", err)
	}

	schemaJSON, ok := raw[SchemaOption]
	if !ok || schemaJSON == "" {
		return nil, gterrors.NewConfigError(gterrors.CodeSchemaRequired, "schema is required")
	}
	decl, err := schema.FromJSON(schemaJSON)
	if err != nil {
		return nil, err
	}
	compiled, err := decl.Compile()
	if err != nil {
		return nil, err
	}

	opts := &IndexOptions{
		Schema:     compiled,
		SchemaJSON: schemaJSON,
	}

	if opts.Version, err = parseNonNegativeInt(raw, VersionOption, DefaultVersion); err != nil {
		return nil, err
	}
	if opts.RefreshSeconds, err = parseStrictlyPositiveFloat(raw, RefreshSecondsOption, DefaultRefreshSeconds); err != nil {
		return nil, err
	}
	if opts.RAMBufferMB, err = parseStrictlyPositiveFloat(raw, RAMBufferMBOption, DefaultRAMBufferMB); err != nil {
		return nil, err
	}
	// max_cached_mb is the only option allowed to be negative: -1 is the
	// "derive from host memory region" sentinel.
	if opts.MaxCachedMB, err = parseFloat(raw, MaxCachedMBOption, DefaultMaxCachedMB); err != nil {
		return nil, err
	}
	if opts.MaxCachedMB < -1 {
		return nil, gterrors.NewConfigError(gterrors.CodeBadOption,
			"'%s' must be greater than or equal to -1, found: %v", MaxCachedMBOption, opts.MaxCachedMB)
	}

	opts.DirectoryPath = stringOr(raw, DirectoryPathOption, DefaultDirectoryPath)
	opts.OptimizerSchedule = stringOr(raw, OptimizerScheduleOption, DefaultOptimizerSchedule)

	if opts.OptimizerEnabled, err = parseBool(raw, OptimizerEnabledOption, DefaultOptimizerEnabled); err != nil {
		return nil, err
	}

	if p, ok := raw[PartitionerOption]; ok && p != "" {
		spec, err := partition.ParseSpec(p)
		if err != nil {
			return nil, err
		}
		// Validate the descriptor eagerly so a bad partition count fails at
		// parse time, not at index build time.
		if _, err := spec.Build(); err != nil {
			return nil, err
		}
		opts.Partitioner = spec
	} else {
		opts.Partitioner = partition.DefaultSpec()
	}

	return opts, nil
}

// AllowedUpdate implements the hot-swap protocol: given the live options and
// a proposed replacement, report whether the proposal may be applied in
// place. A stale version is rejected outright. A same-or-newer version is
// accepted only when at least one operational knob actually differs; a pure
// version bump with no delta is a no-op, not a change. Structural fields
// (schema, partitioner, directory path) are never part of this comparison.
func AllowedUpdate(current, proposed *IndexOptions) bool {
	if current == nil || proposed == nil || current == proposed {
		return false
	}
	if proposed.Version < current.Version {
		return false
	}
	if math.Float64bits(current.MaxCachedMB) != math.Float64bits(proposed.MaxCachedMB) {
		return true
	}
	if math.Float64bits(current.RAMBufferMB) != math.Float64bits(proposed.RAMBufferMB) {
		return true
	}
	if current.OptimizerEnabled != proposed.OptimizerEnabled {
		return true
	}
	if current.OptimizerSchedule != proposed.OptimizerSchedule {
		return true
	}
	return math.Float64bits(current.RefreshSeconds) != math.Float64bits(proposed.RefreshSeconds)
}

// BuildPartitioner constructs the live partitioner for this generation,
// attaching the host affinity to token partitioners.
func (o *IndexOptions) BuildPartitioner(affinity partition.Affinity) (partition.Partitioner, error) {
	p, err := o.Partitioner.Build()
	if err != nil {
		return nil, err
	}
	if t, ok := p.(*partition.OnToken); ok {
		t.Attach(affinity)
	}
	return p, nil
}

// Parsing helpers. Numeric parsing is strict: non-numeric values and
// constraint violations fail naming the offending key and raw value.

func stringOr(raw map[string]string, key, fallback string) string {
	if v, ok := raw[key]; ok && v != "" {
		return v
	}
	return fallback
}

func parseFloat(raw map[string]string, key string, fallback float64) (float64, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, gterrors.NewConfigError(gterrors.CodeBadOption,
			"'%s' must be a decimal, found: %s", key, v)
	}
	return f, nil
}

func parseStrictlyPositiveFloat(raw map[string]string, key string, fallback float64) (float64, error) {
	f, err := parseFloat(raw, key, fallback)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, gterrors.NewConfigError(gterrors.CodeBadOption,
			"'%s' must be a strictly positive decimal, found: %s", key, raw[key])
	}
	return f, nil
}

func parseNonNegativeInt(raw map[string]string, key string, fallback int) (int, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, gterrors.NewConfigError(gterrors.CodeBadOption,
			"'%s' must be an integer, found: %s", key, v)
	}
	if n < 0 {
		return 0, gterrors.NewConfigError(gterrors.CodeBadOption,
			"'%s' must be a strictly non-negative integer, found: %s", key, v)
	}
	return n, nil
}

func parseBool(raw map[string]string, key string, fallback bool) (bool, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, gterrors.NewConfigError(gterrors.CodeBadOption,
			"'%s' must be a boolean, found: %s", key, v)
	}
	return b, nil
}

// MappedColumns exposes the schema's mapped-columns introspection at the
// options level, mirroring how callers consume it at index-creation time.
func (o *IndexOptions) MappedColumns(typeColumns, complexColumns []string, all bool) []string {
	return o.Schema.MappedColumns(typeColumns, complexColumns, all)
}
