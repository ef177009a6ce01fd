package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a booking date.
const DateLayout = "2006-01-02"

// Date is a civil calendar date with no time zone attached.  A booking
// date names a day on the court's local calendar; keeping it zone free
// means the weekday derived from it can never shift.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string and rejects impossible dates
// such as 2024-02-30.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Weekday returns the day of week of the calendar date.  The computation
// is pinned to UTC midnight so it only depends on the date itself.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// Before reports whether d falls on an earlier day than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Value stores the date as a YYYY-MM-DD string, which every supported
// database compares and casts correctly.
func (d Date) Value() (driver.Value, error) { return d.String(), nil }

// Scan accepts the representations drivers hand back for DATE columns:
// time.Time (mysql with parseTime, pgx), string or []byte (sqlite).
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case []byte:
		return d.parseStored(string(v))
	case string:
		return d.parseStored(v)
	case nil:
		return errors.New("model: NULL date")
	}
	return fmt.Errorf("model: cannot scan %T into Date", src)
}

func (d *Date) parseStored(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("date must be a string")
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall clock time expressed in seconds since midnight.
// 24:00:00 is allowed so a window may run until the end of the day.
type TimeOfDay int

// EndOfDay is the largest valid TimeOfDay.
const EndOfDay TimeOfDay = 24 * 60 * 60

// ParseTimeOfDay parses HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	// Drivers may append fractional seconds (postgres TIME).
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", s)
	}
	var vals [3]int
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", s)
		}
		vals[i] = n
	}
	h, m, sec := vals[0], vals[1], vals[2]
	if m > 59 || sec > 59 || h > 24 || (h == 24 && (m != 0 || sec != 0)) {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return TimeOfDay(h*3600 + m*60 + sec), nil
}

// MustTime parses s and panics on error.  Intended for tests and constants.
func MustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// Value stores the time as a zero padded HH:MM:SS string so string
// comparison and TIME comparison agree.
func (t TimeOfDay) Value() (driver.Value, error) { return t.String(), nil }

func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return t.set(string(v))
	case string:
		return t.set(v)
	case time.Time:
		*t = TimeOfDay(v.Hour()*3600 + v.Minute()*60 + v.Second())
		return nil
	case nil:
		return errors.New("model: NULL time")
	}
	return fmt.Errorf("model: cannot scan %T into TimeOfDay", src)
}

func (t *TimeOfDay) set(s string) error {
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("time must be a string")
	}
	return t.set(s)
}

// Window is a half-open interval [Start, End) on a single day.
type Window struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewWindow validates that start precedes end.
func NewWindow(start, end TimeOfDay) (Window, error) {
	if start < 0 || end > EndOfDay {
		return Window{}, errors.New("time out of range")
	}
	if start >= end {
		return Window{}, errors.New("start must be before end")
	}
	return Window{Start: start, End: end}, nil
}

// Overlaps reports whether w and o share any instant.  Windows that only
// touch at an endpoint do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start < o.End && o.Start < w.End
}

// Minutes is the length of the window rounded down to whole minutes.
func (w Window) Minutes() int { return int(w.End-w.Start) / 60 }

func (w Window) String() string { return "[" + w.Start.String() + "," + w.End.String() + ")" }

// SlotQuery asks whether Window on Date is free for a court.  A non-zero
// ExcludeReservationID is ignored by the reservation and request checks,
// so a placeholder does not conflict with itself when it is re-validated.
type SlotQuery struct {
	ResourceID           uint64
	Date                 Date
	Window               Window
	ExcludeReservationID uint64
}
