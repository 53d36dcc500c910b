package index

import (
	"strconv"
	"strings"
	"time"

	gterrors "github.com/gridtext/gridtext/internal/errors"
)

// Schedule is a parsed 5-field cron expression: minute, hour, day of month,
// month, day of week. Supported syntax per field: "*", "*/n", single values,
// ranges "a-b", and comma lists of any of those.
type Schedule struct {
	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64
}

type cronBounds struct{ min, max int }

var cronFields = []cronBounds{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week, 0 = Sunday
}

// ParseSchedule parses a cron expression like "0 1 * * *".
func ParseSchedule(expr string) (*Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, gterrors.NewConfigError(gterrors.CodeBadOption,
			"cron expression %q must have 5 fields, found %d", expr, len(parts))
	}
	masks := make([]uint64, 5)
	for i, part := range parts {
		mask, err := parseCronField(part, cronFields[i])
		if err != nil {
			return nil, gterrors.NewConfigError(gterrors.CodeBadOption,
				"cron expression %q: bad field %q: %v", expr, part, err)
		}
		masks[i] = mask
	}
	return &Schedule{
		minute: masks[0],
		hour:   masks[1],
		dom:    masks[2],
		month:  masks[3],
		dow:    masks[4],
	}, nil
}

func parseCronField(field string, b cronBounds) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(field, ",") {
		step := 1
		if idx := strings.IndexByte(part, '/'); idx >= 0 {
			n, err := strconv.Atoi(part[idx+1:])
			if err != nil || n <= 0 {
				return 0, errStep
			}
			step = n
			part = part[:idx]
		}

		lo, hi := b.min, b.max
		switch {
		case part == "*":
			// full range
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			var err error
			if lo, err = strconv.Atoi(bounds[0]); err != nil {
				return 0, errValue
			}
			if hi, err = strconv.Atoi(bounds[1]); err != nil {
				return 0, errValue
			}
		default:
			n, err := strconv.Atoi(part)
			if err != nil {
				return 0, errValue
			}
			lo, hi = n, n
		}

		if lo < b.min || hi > b.max || lo > hi {
			return 0, errRange
		}
		for v := lo; v <= hi; v += step {
			mask |= 1 << uint(v)
		}
	}
	return mask, nil
}

var (
	errStep  = strconvError("invalid step")
	errValue = strconvError("invalid value")
	errRange = strconvError("value out of range")
)

type strconvError string

func (e strconvError) Error() string { return string(e) }

// Next returns the first scheduled time strictly after from. The search is
// bounded to four years so a never-matching expression cannot spin forever.
func (s *Schedule) Next(from time.Time) time.Time {
	t := from.Truncate(time.Minute).Add(time.Minute)
	limit := from.AddDate(4, 0, 0)
	for t.Before(limit) {
		if s.month&(1<<uint(t.Month())) == 0 {
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
			continue
		}
		if s.hour&(1<<uint(t.Hour())) == 0 {
			t = t.Truncate(time.Hour).Add(time.Hour)
			continue
		}
		if s.minute&(1<<uint(t.Minute())) == 0 {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return limit
}

// dayMatches follows cron convention: when both day-of-month and day-of-week
// are restricted, matching either suffices.
func (s *Schedule) dayMatches(t time.Time) bool {
	domMatch := s.dom&(1<<uint(t.Day())) != 0
	dowMatch := s.dow&(1<<uint(t.Weekday())) != 0
	domAll := s.dom == fullMask(cronFields[2])
	dowAll := s.dow == fullMask(cronFields[4])
	if !domAll && !dowAll {
		return domMatch || dowMatch
	}
	return domMatch && dowMatch
}

func fullMask(b cronBounds) uint64 {
	var mask uint64
	for v := b.min; v <= b.max; v++ {
		mask |= 1 << uint(v)
	}
	return mask
}
