// Package localtime maps calendar days in a single fixed-offset timezone
// onto UTC instant ranges. The service stores every instant in UTC; the
// only local-time concept it needs is "which UTC window is this local day".
package localtime

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidDay is returned for day keys that are not well-formed
// YYYY-MM-DD calendar days.
var ErrInvalidDay = errors.New("invalid day format, expected YYYY-MM-DD")

var offsetRe = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// Zone is a fixed UTC offset with no daylight-saving rules.
type Zone struct {
	offset time.Duration
	name   string
}

// New parses an offset of the form "+05:45" or "-03:00".
func New(offset string) (*Zone, error) {
	m := offsetRe.FindStringSubmatch(offset)
	if m == nil {
		return nil, fmt.Errorf("invalid timezone offset %q, expected e.g. +05:45", offset)
	}

	hours, _ := strconv.Atoi(m[2])
	mins, _ := strconv.Atoi(m[3])
	if hours > 14 || mins > 59 {
		return nil, fmt.Errorf("timezone offset %q out of range", offset)
	}

	d := time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute
	if m[1] == "-" {
		d = -d
	}

	return &Zone{offset: d, name: "UTC" + offset}, nil
}

// Offset reports the zone's fixed offset from UTC.
func (z *Zone) Offset() time.Duration { return z.offset }

// String returns the zone name, e.g. "UTC+05:45".
func (z *Zone) String() string { return z.name }

// DayRange converts a local calendar day ("2026-02-18") into the half-open
// UTC range [local midnight, next local midnight). Day keys that do not
// parse as real calendar dates yield ErrInvalidDay; callers must reject
// the request rather than guess.
func (z *Zone) DayRange(dayKey string) (start, end time.Time, err error) {
	day, perr := time.Parse("2006-01-02", dayKey)
	if perr != nil || day.Format("2006-01-02") != dayKey {
		return time.Time{}, time.Time{}, ErrInvalidDay
	}

	// Local midnight in UTC = calendar midnight minus the offset.
	start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Add(-z.offset)
	end = start.Add(24 * time.Hour)
	return start, end, nil
}

// DayKey returns the local calendar day a UTC instant falls on.
func (z *Zone) DayKey(t time.Time) string {
	return t.UTC().Add(z.offset).Format("2006-01-02")
}
