package mapping

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	gterrors "github.com/gridtext/gridtext/internal/errors"
)

// DefaultDatePattern is the layout used when a temporal mapper declares no
// pattern of its own.
const DefaultDatePattern = "2006/01/02 15:04:05.000 -0700"

// gregorianEpochMillis is the offset of the Gregorian calendar start
// (1582-10-15T00:00:00Z) from the Unix epoch, in milliseconds. Version 1
// UUID timestamps count 100ns intervals from that instant.
const gregorianEpochMillis = -12219292800000

// DateParser turns heterogeneous column values into times using a single
// reference layout. Values already carrying time information are rounded
// through the layout so that every parsed time has the layout's precision.
type DateParser struct {
	layout string
}

// NewDateParser builds a parser for the given Go time layout. A blank layout
// selects DefaultDatePattern. The layout itself is validated eagerly so that
// a bad pattern fails at schema-compile time, not on the first write.
func NewDateParser(layout string) (*DateParser, error) {
	if layout == "" {
		layout = DefaultDatePattern
	}
	probe := time.Date(2001, 2, 3, 4, 5, 6, 789000000, time.UTC)
	if _, err := time.Parse(layout, probe.Format(layout)); err != nil {
		return nil, gterrors.NewConfigError(gterrors.CodeBadOption,
			"invalid date pattern %q: %v", layout, err)
	}
	return &DateParser{layout: layout}, nil
}

// Layout returns the parser's reference layout.
func (p *DateParser) Layout() string { return p.layout }

// Parse returns the time represented by value. Accepted inputs are
// time.Time, version 1 UUIDs (their embedded timestamp), integer or float
// epoch milliseconds, numeric strings matching the layout, and plain strings
// in the layout. The zero time with a nil error is returned for nil input.
func (p *DateParser) Parse(value any) (time.Time, error) {
	if value == nil {
		return time.Time{}, nil
	}

	switch v := value.(type) {
	case time.Time:
		return p.truncate(v)
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return p.truncate(*v)
	case uuid.UUID:
		if v.Version() != 1 {
			return time.Time{}, p.fail(value, fmt.Errorf("UUID is not time-based"))
		}
		millis := int64(v.Time())/10000 + gregorianEpochMillis
		return p.truncate(time.UnixMilli(millis).UTC())
	case string:
		t, err := time.Parse(p.layout, v)
		if err != nil {
			return time.Time{}, p.fail(value, err)
		}
		return t, nil
	}

	if n, ok := toInt64(value); ok {
		// A numeric value may be a compact rendering of the layout
		// (e.g. 20260830 for pattern 20060102); otherwise it is taken
		// as epoch milliseconds, rounded through the layout.
		if t, err := time.Parse(p.layout, fmt.Sprintf("%d", n)); err == nil {
			return t, nil
		}
		t, err := p.truncate(time.UnixMilli(n).UTC())
		if err != nil {
			return time.Time{}, p.fail(value, err)
		}
		if t.UnixMilli() < 0 {
			t = time.UnixMilli(0).UTC()
		}
		return t, nil
	}

	return time.Time{}, p.fail(value, fmt.Errorf("unsupported type %T", value))
}

// truncate rounds t to the precision the layout can represent by formatting
// and re-parsing it.
func (p *DateParser) truncate(t time.Time) (time.Time, error) {
	parsed, err := time.Parse(p.layout, t.Format(p.layout))
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}

func (p *DateParser) fail(value any, cause error) error {
	return gterrors.Wrap(gterrors.ErrCategoryMapping, gterrors.CodeCoercionFailed,
		fmt.Sprintf("error parsing %T with value '%v' using date pattern %s", value, value, p.layout), cause)
}
