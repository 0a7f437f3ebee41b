// Package schedule is the read-only Schedule Source: the doctor's weekly
// working-hours template, the appointment-type duration table, and ad-hoc
// closures (holidays and blocked dates). It is loaded once at startup and
// immutable afterwards; a schedule change means a restart.
package schedule

import (
	"fmt"
	"sort"
	"time"
)

// Window is a half-open [Start, End) interval in minutes since midnight.
type Window struct {
	StartMin int
	EndMin   int
}

// Overlaps reports whether two half-open windows intersect.
func (w Window) Overlaps(other Window) bool {
	return w.StartMin < other.EndMin && other.StartMin < w.EndMin
}

// DayHours describes one working weekday: an open/close window with
// zero or more break windows strictly inside it.
type DayHours struct {
	OpenMin  int
	CloseMin int
	Breaks   []Window
}

// Segments returns the bookable stretches of the day: the open window with
// every break removed, in ascending order. Breaks are sorted and validated
// at load time, so a single forward sweep is enough.
func (d *DayHours) Segments() []Window {
	segs := make([]Window, 0, len(d.Breaks)+1)
	cur := d.OpenMin
	for _, br := range d.Breaks {
		if br.StartMin > cur {
			segs = append(segs, Window{StartMin: cur, EndMin: br.StartMin})
		}
		cur = br.EndMin
	}
	if cur < d.CloseMin {
		segs = append(segs, Window{StartMin: cur, EndMin: d.CloseMin})
	}
	return segs
}

// Contains reports whether [startMin, endMin) falls entirely inside a
// bookable segment, i.e. inside open hours and not crossing a break.
func (d *DayHours) Contains(startMin, endMin int) bool {
	for _, seg := range d.Segments() {
		if seg.StartMin <= startMin && endMin <= seg.EndMin {
			return true
		}
	}
	return false
}

// Schedule is the full clinic schedule: per-weekday templates plus
// calendar-date closures. Shared read-only by all request goroutines.
type Schedule struct {
	week      map[time.Weekday]*DayHours
	durations map[AppointmentType]time.Duration
	bufferMin int
	holidays  map[string]struct{}
	blocked   map[string]string // date -> reason
	location  *time.Location
}

// Location returns the clinic timezone. All "today"/"now" decisions are
// made in this location.
func (s *Schedule) Location() *time.Location {
	return s.location
}

// BufferMinutes returns the dead time enforced between any two appointments.
func (s *Schedule) BufferMinutes() int {
	return s.bufferMin
}

// Duration returns the authoritative visit length for an appointment type.
func (s *Schedule) Duration(t AppointmentType) (time.Duration, error) {
	d, ok := s.durations[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAppointmentType, t)
	}
	return d, nil
}

// DayFor resolves a calendar date to its working-hours template. The second
// return is false when the clinic is closed that day: a non-working weekday,
// a holiday, or a blocked date.
func (s *Schedule) DayFor(date time.Time) (*DayHours, bool) {
	key := date.In(s.location).Format(DateLayout)
	if _, ok := s.holidays[key]; ok {
		return nil, false
	}
	if _, ok := s.blocked[key]; ok {
		return nil, false
	}
	day, ok := s.week[date.In(s.location).Weekday()]
	return day, ok
}

// ClosureReason returns the blocked-date reason for a date, if any.
func (s *Schedule) ClosureReason(date time.Time) (string, bool) {
	reason, ok := s.blocked[date.In(s.location).Format(DateLayout)]
	return reason, ok
}

const (
	DateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes since midnight back to "HH:MM".
func FormatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// ParseDate parses a "YYYY-MM-DD" date in the given location.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func validateDay(name string, d *DayHours) error {
	if d.OpenMin >= d.CloseMin {
		return fmt.Errorf("%s: open %s must be before close %s",
			name, FormatClock(d.OpenMin), FormatClock(d.CloseMin))
	}
	sort.Slice(d.Breaks, func(i, j int) bool { return d.Breaks[i].StartMin < d.Breaks[j].StartMin })
	prevEnd := d.OpenMin
	for _, br := range d.Breaks {
		if br.StartMin >= br.EndMin {
			return fmt.Errorf("%s: break %s-%s is empty or inverted",
				name, FormatClock(br.StartMin), FormatClock(br.EndMin))
		}
		// Strictly inside open hours: a break touching open or close is
		// a shorter day, not a break.
		if br.StartMin <= d.OpenMin || br.EndMin >= d.CloseMin {
			return fmt.Errorf("%s: break %s-%s must fall strictly inside open hours",
				name, FormatClock(br.StartMin), FormatClock(br.EndMin))
		}
		if br.StartMin < prevEnd {
			return fmt.Errorf("%s: break %s-%s overlaps the previous break",
				name, FormatClock(br.StartMin), FormatClock(br.EndMin))
		}
		prevEnd = br.EndMin
	}
	return nil
}
