package service

import (
	"fmt"
	"sort"

	"github.com/healthcareplus/clinic-scheduler/internal/domain/booking"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/schedule"
)

// PreferenceKind is a closed set; unknown preference strings are rejected
// at the boundary instead of silently matching nothing.
type PreferenceKind int

const (
	PrefNone PreferenceKind = iota
	PrefMorning
	PrefAfternoon
	PrefEvening
	PrefAtTime        // closest to an explicit time of day
	PrefEarliestAfter // earliest slot at or after a time of day
)

// Preference is a patient's stated time-of-day preference.
type Preference struct {
	Kind  PreferenceKind
	AtMin int // minutes since midnight, for PrefAtTime / PrefEarliestAfter
}

// Time-of-day bands. Morning ends at noon; evening starts at 17:00.
const (
	noonMin    = 12 * 60
	eveningMin = 17 * 60
)

// ParsePreference builds a Preference from the API's fields. band is one of
// ""/"none"/"morning"/"afternoon"/"evening"; at and after are optional
// "HH:MM" values, with at taking precedence.
func ParsePreference(band, at, after string) (Preference, error) {
	if at != "" {
		min, err := schedule.ParseClock(at)
		if err != nil {
			return Preference{}, err
		}
		return Preference{Kind: PrefAtTime, AtMin: min}, nil
	}
	if after != "" {
		min, err := schedule.ParseClock(after)
		if err != nil {
			return Preference{}, err
		}
		return Preference{Kind: PrefEarliestAfter, AtMin: min}, nil
	}

	switch band {
	case "", "none":
		return Preference{Kind: PrefNone}, nil
	case "morning":
		return Preference{Kind: PrefMorning}, nil
	case "afternoon":
		return Preference{Kind: PrefAfternoon}, nil
	case "evening":
		return Preference{Kind: PrefEvening}, nil
	default:
		return Preference{}, fmt.Errorf("unknown preference %q", band)
	}
}

func (p Preference) inBand(startMin int) bool {
	switch p.Kind {
	case PrefMorning:
		return startMin < noonMin
	case PrefAfternoon:
		return startMin >= noonMin && startMin < eveningMin
	case PrefEvening:
		return startMin >= eveningMin
	default:
		return true
	}
}

// Rank orders candidate slots by how well they match the preference and
// truncates to limit. Slots matching the preference come first; ties break
// by ascending start time. Empty input yields an empty, non-nil result.
func Rank(slots []booking.Slot, pref Preference, limit int) []booking.Slot {
	ranked := make([]booking.Slot, len(slots))
	copy(ranked, slots)

	switch pref.Kind {
	case PrefNone:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].StartMin < ranked[j].StartMin
		})

	case PrefMorning, PrefAfternoon, PrefEvening:
		sort.SliceStable(ranked, func(i, j int) bool {
			inI, inJ := pref.inBand(ranked[i].StartMin), pref.inBand(ranked[j].StartMin)
			if inI != inJ {
				return inI
			}
			return ranked[i].StartMin < ranked[j].StartMin
		})

	case PrefAtTime:
		sort.SliceStable(ranked, func(i, j int) bool {
			di, dj := absDist(ranked[i].StartMin, pref.AtMin), absDist(ranked[j].StartMin, pref.AtMin)
			if di != dj {
				return di < dj
			}
			return ranked[i].StartMin < ranked[j].StartMin
		})

	case PrefEarliestAfter:
		sort.SliceStable(ranked, func(i, j int) bool {
			afterI, afterJ := ranked[i].StartMin >= pref.AtMin, ranked[j].StartMin >= pref.AtMin
			if afterI != afterJ {
				return afterI
			}
			return ranked[i].StartMin < ranked[j].StartMin
		})
	}

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func absDist(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
