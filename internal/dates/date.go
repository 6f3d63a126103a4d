// Package dates provides the canonical calendar-date type used by every
// date comparison and subtraction in the simulator.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotDateLike is returned by Normalize for values that carry no calendar day.
var ErrNotDateLike = errors.New("value is not date-like")

// Date is a calendar day with no time-of-day and no timezone.
// The zero value is the zero Date and reports IsZero.
type Date struct {
	year  int
	month time.Month
	day   int
}

// Accepted string layouts, tried in order.
var layouts = []string{
	"2006-01-02",
	"20060102",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// New builds a Date from year, month, day. Out-of-range values are
// normalized the way time.Date normalizes them.
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime strips time-of-day and timezone from t. The calendar day is the
// one t shows in its own location, so a timestamp and a tz-naive timestamp
// for the same wall-clock day normalize to the same Date.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

// FromUnixMilli converts a UTC millisecond timestamp to its calendar day.
func FromUnixMilli(ms int64) Date {
	return FromTime(time.UnixMilli(ms).UTC())
}

// Parse parses a date or timestamp string into a Date.
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), nil
		}
	}
	return Date{}, fmt.Errorf("parse date %q: %w", s, ErrNotDateLike)
}

// MustParse is Parse for constants in tests and fixtures.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Normalize collapses any supported date representation into a Date.
// Supported: Date, *Date, time.Time, *time.Time, string, int64 (unix ms).
func Normalize(v any) (Date, error) {
	switch x := v.(type) {
	case Date:
		return x, nil
	case *Date:
		if x == nil {
			return Date{}, ErrNotDateLike
		}
		return *x, nil
	case time.Time:
		return FromTime(x), nil
	case *time.Time:
		if x == nil {
			return Date{}, ErrNotDateLike
		}
		return FromTime(*x), nil
	case string:
		return Parse(x)
	case int64:
		return FromUnixMilli(x), nil
	default:
		return Date{}, fmt.Errorf("normalize %T: %w", v, ErrNotDateLike)
	}
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Year, Month and Day return the calendar components.
func (d Date) Year() int             { return d.year }
func (d Date) Month() time.Month     { return d.month }
func (d Date) Day() int              { return d.day }
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

// DaysUntil returns the number of calendar days from d to other.
// Negative when other is before d.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.Compare(other) > 0
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.year != other.year:
		return cmpInt(d.year, other.year)
	case d.month != other.month:
		return cmpInt(int(d.month), int(other.month))
	default:
		return cmpInt(d.day, other.day)
	}
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// Compact formats d as YYYYMMDD, the form used inside trade IDs.
func (d Date) Compact() string {
	return fmt.Sprintf("%04d%02d%02d", d.year, int(d.month), d.day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
