package core

import (
	"fmt"
	"time"
)

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// Before returns true if t is before u
func (t Timestamp) Before(u Timestamp) bool {
	return time.Time(t).Before(time.Time(u))
}

// After returns true if t is after u
func (t Timestamp) After(u Timestamp) bool {
	return time.Time(t).After(time.Time(u))
}

// JSON marshaling for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}

// LocalDate is a calendar day in some user's timezone, formatted YYYY-MM-DD.
type LocalDate string

// NewLocalDate builds a LocalDate from an instant and an IANA timezone.
// An unknown timezone falls back to UTC rather than failing the ingest.
func NewLocalDate(at time.Time, timezone string) LocalDate {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return LocalDate(at.In(loc).Format("2006-01-02"))
}

// ParseLocalDate validates a YYYY-MM-DD string
func ParseLocalDate(s string) (LocalDate, error) {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", fmt.Errorf("invalid local date %q: %w", s, err)
	}
	return LocalDate(s), nil
}

// String returns the YYYY-MM-DD representation
func (d LocalDate) String() string { return string(d) }

// Time returns midnight of the date in the given location
func (d LocalDate) Time(loc *time.Location) time.Time {
	t, _ := time.ParseInLocation("2006-01-02", string(d), loc)
	return t
}

// AddDays returns the date shifted by n calendar days
func (d LocalDate) AddDays(n int) LocalDate {
	t, _ := time.Parse("2006-01-02", string(d))
	return LocalDate(t.AddDate(0, 0, n).Format("2006-01-02"))
}

// DaysBetween returns d2 - d1 in calendar days
func DaysBetween(d1, d2 LocalDate) int {
	t1, _ := time.Parse("2006-01-02", string(d1))
	t2, _ := time.Parse("2006-01-02", string(d2))
	return int(t2.Sub(t1).Hours() / 24)
}

// DayBounds returns the UTC instants bounding a local calendar day.
func DayBounds(d LocalDate, timezone string) (start, end time.Time) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	start = d.Time(loc).UTC()
	end = d.Time(loc).AddDate(0, 0, 1).UTC()
	return start, end
}
