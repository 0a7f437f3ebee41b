package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// scheduleFile mirrors the on-disk JSON layout:
//
//	{
//	  "working_hours": {
//	    "monday": {"open": "09:00", "close": "18:00", "breaks": [{"start": "13:00", "end": "14:00"}]},
//	    ...
//	  },
//	  "appointment_types": {"consultation": {"duration_minutes": 30}, ...},
//	  "buffer_minutes": 5,
//	  "holidays": ["2026-10-02"],
//	  "blocked_dates": [{"date": "2026-09-14", "reason": "medical conference"}]
//	}
type scheduleFile struct {
	WorkingHours     map[string]dayFile  `json:"working_hours"`
	AppointmentTypes map[string]typeFile `json:"appointment_types"`
	BufferMinutes    *int                `json:"buffer_minutes"`
	Holidays         []string            `json:"holidays"`
	BlockedDates     []blockedDateFile   `json:"blocked_dates"`
}

type dayFile struct {
	Open   string       `json:"open"`
	Close  string       `json:"close"`
	Breaks []windowFile `json:"breaks"`
}

type windowFile struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type typeFile struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type blockedDateFile struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

const defaultBufferMinutes = 5

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load reads and validates the clinic schedule file. Any violation of the
// template invariants fails startup rather than producing bad availability.
func Load(path string, timezone string) (*Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule file: %w", err)
	}
	return Parse(raw, timezone)
}

// Parse builds a Schedule from raw JSON. Split from Load so tests can feed
// literals without touching the filesystem.
func Parse(raw []byte, timezone string) (*Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading clinic timezone %q: %w", timezone, err)
	}

	var file scheduleFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing schedule file: %w", err)
	}

	s := &Schedule{
		week:      make(map[time.Weekday]*DayHours),
		durations: make(map[AppointmentType]time.Duration),
		bufferMin: defaultBufferMinutes,
		holidays:  make(map[string]struct{}),
		blocked:   make(map[string]string),
		location:  loc,
	}

	for name, df := range file.WorkingHours {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in working_hours", name)
		}
		day, err := parseDay(name, df)
		if err != nil {
			return nil, err
		}
		s.week[wd] = day
	}

	for key := range defaultDurations {
		s.durations[key] = defaultDurations[key]
	}
	for name, tf := range file.AppointmentTypes {
		t := AppointmentType(name)
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: %q in appointment_types", ErrUnknownAppointmentType, name)
		}
		if tf.DurationMinutes <= 0 {
			return nil, fmt.Errorf("appointment type %q: duration_minutes must be positive", name)
		}
		s.durations[t] = time.Duration(tf.DurationMinutes) * time.Minute
	}

	if file.BufferMinutes != nil {
		if *file.BufferMinutes < 0 {
			return nil, fmt.Errorf("buffer_minutes must not be negative")
		}
		s.bufferMin = *file.BufferMinutes
	}

	for _, h := range file.Holidays {
		if _, err := ParseDate(h, loc); err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h, err)
		}
		s.holidays[h] = struct{}{}
	}
	for _, b := range file.BlockedDates {
		if _, err := ParseDate(b.Date, loc); err != nil {
			return nil, fmt.Errorf("blocked date %q: %w", b.Date, err)
		}
		s.blocked[b.Date] = b.Reason
	}

	return s, nil
}

func parseDay(name string, df dayFile) (*DayHours, error) {
	open, err := ParseClock(df.Open)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", name, err)
	}
	closeMin, err := ParseClock(df.Close)
	if err != nil {
		return nil, fmt.Errorf("%s close: %w", name, err)
	}

	day := &DayHours{OpenMin: open, CloseMin: closeMin}
	for _, bf := range df.Breaks {
		start, err := ParseClock(bf.Start)
		if err != nil {
			return nil, fmt.Errorf("%s break start: %w", name, err)
		}
		end, err := ParseClock(bf.End)
		if err != nil {
			return nil, fmt.Errorf("%s break end: %w", name, err)
		}
		day.Breaks = append(day.Breaks, Window{StartMin: start, EndMin: end})
	}

	if err := validateDay(name, day); err != nil {
		return nil, err
	}
	return day, nil
}
