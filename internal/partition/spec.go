package partition

import (
	"encoding/json"

	gterrors "github.com/gridtext/gridtext/internal/errors"
)

// Partitioner kind tags used in the configuration payload.
const (
	TypeNone  = "none"
	TypeToken = "token"
)

// Spec is the serialized partitioner descriptor: a discriminated union over
// the partitioner kinds, e.g. {"type":"none"} or {"type":"token","partitions":4}.
type Spec struct {
	Type       string `json:"type" yaml:"type"`
	Partitions int    `json:"partitions,omitempty" yaml:"partitions,omitempty"`
}

// DefaultSpec is the descriptor used when the payload omits the partitioner
// key.
func DefaultSpec() Spec { return Spec{Type: TypeNone} }

// ParseSpec deserializes a partitioner descriptor.
func ParseSpec(payload string) (Spec, error) {
	var s Spec
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return Spec{}, gterrors.Wrap(gterrors.ErrCategoryConfig, gterrors.CodeBadPayload,
			"unparseable partitioner: "+payload, err)
	}
	if s.Type == "" {
		s.Type = TypeNone
	}
	return s, nil
}

// Build constructs the partitioner the descriptor names. Token partitioners
// still need an Affinity attached before first use.
func (s Spec) Build() (Partitioner, error) {
	switch s.Type {
	case TypeNone:
		return NewNone(), nil
	case TypeToken:
		return NewOnToken(s.Partitions)
	default:
		return nil, gterrors.NewConfigError(gterrors.CodeBadOption,
			"unknown partitioner type %q", s.Type)
	}
}

// Equal reports whether two descriptors name the same partitioning.
func (s Spec) Equal(other Spec) bool {
	return s.Type == other.Type && s.Partitions == other.Partitions
}
