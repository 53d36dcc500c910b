package options

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// knobs is the generated operational state the update protocol compares.
type knobs struct {
	Version           int
	RefreshSeconds    float64
	RAMBufferMB       float64
	MaxCachedMB       float64
	OptimizerEnabled  bool
	OptimizerSchedule string
}

func (k knobs) options() *IndexOptions {
	return &IndexOptions{
		Version:           k.Version,
		RefreshSeconds:    k.RefreshSeconds,
		RAMBufferMB:       k.RAMBufferMB,
		MaxCachedMB:       k.MaxCachedMB,
		OptimizerEnabled:  k.OptimizerEnabled,
		OptimizerSchedule: k.OptimizerSchedule,
	}
}

func genKnobs() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 10),
		gen.Float64Range(1, 300),
		gen.Float64Range(1, 128),
		gen.OneConstOf(-1.0, 0.0, 64.0, 256.0),
		gen.Bool(),
		gen.OneConstOf("0 1 * * *", "30 2 * * *", "0 */6 * * *"),
	).Map(func(vals []any) knobs {
		return knobs{
			Version:           vals[0].(int),
			RefreshSeconds:    vals[1].(float64),
			RAMBufferMB:       vals[2].(float64),
			MaxCachedMB:       vals[3].(float64),
			OptimizerEnabled:  vals[4].(bool),
			OptimizerSchedule: vals[5].(string),
		}
	})
}

// The hot-swap predicate is a pure function of the version ordering and the
// five operational knobs: a stale version always loses, and with a
// same-or-newer version the answer is exactly "some knob differs".
func TestProperty_AllowedUpdate(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("stale versions are always rejected", prop.ForAll(
		func(a, b knobs) bool {
			current, proposed := a.options(), b.options()
			if proposed.Version >= current.Version {
				proposed.Version = current.Version - 1
			}
			if current.Version == 0 {
				current.Version = 1
				proposed.Version = 0
			}
			return !AllowedUpdate(current, proposed)
		},
		genKnobs(), genKnobs(),
	))

	properties.Property("with version ordering satisfied, allowed iff a knob differs", prop.ForAll(
		func(a, b knobs) bool {
			current, proposed := a.options(), b.options()
			if proposed.Version < current.Version {
				proposed.Version = current.Version
			}
			delta := current.RefreshSeconds != proposed.RefreshSeconds ||
				current.RAMBufferMB != proposed.RAMBufferMB ||
				current.MaxCachedMB != proposed.MaxCachedMB ||
				current.OptimizerEnabled != proposed.OptimizerEnabled ||
				current.OptimizerSchedule != proposed.OptimizerSchedule
			return AllowedUpdate(current, proposed) == delta
		},
		genKnobs(), genKnobs(),
	))

	properties.Property("self-update is never allowed", prop.ForAll(
		func(a knobs) bool {
			o := a.options()
			return !AllowedUpdate(o, o)
		},
		genKnobs(),
	))

	properties.TestingRun(t)
}
