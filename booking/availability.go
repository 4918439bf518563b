/*
availability.go - Slot validation against expert open hours

PURPOSE:
  Validates that a proposed [start, end) interval falls entirely inside
  at least one of the expert's active weekly windows, and suggests nearby
  free slots when the requested one conflicts.

  Windows are recurring per-weekday "HH:MM" ranges supplied read-only by
  the expert-profile collaborator. A slot that crosses midnight can never
  fit a window and is rejected as out of hours.
*/
package booking

import (
	"fmt"
	"time"
)

// ValidateSlot checks [start, end) against the given windows. Only active
// windows matching start's weekday count. Returns ErrOutOfHours (wrapped
// with code E_OUT_OF_HOURS) when no window contains the slot.
func ValidateSlot(windows []AvailabilityWindow, start, end time.Time) error {
	day := start.Weekday()
	startMin := minuteOfDay(start)
	endMin := minuteOfDay(end)
	if endMin == 0 && end.After(start) {
		endMin = 24 * 60 // ends exactly at midnight
	}
	if endMin < startMin {
		return newError(CodeOutOfHours,
			"slot crosses midnight; expert hours are per-day windows", ErrOutOfHours)
	}

	any := false
	for _, w := range windows {
		if !w.IsActive || w.DayOfWeek != day {
			continue
		}
		any = true
		ws, err1 := parseClock(w.StartTime)
		we, err2 := parseClock(w.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if startMin >= ws && endMin <= we {
			return nil
		}
	}

	if !any {
		return newError(CodeOutOfHours,
			fmt.Sprintf("expert has no availability on %s", day), ErrOutOfHours)
	}
	return newError(CodeOutOfHours,
		"slot is outside the expert's open hours", ErrOutOfHours)
}

// =============================================================================
// ALTERNATIVE SLOT SUGGESTION
// =============================================================================

// MaxAlternatives bounds how many free slots a conflict response carries.
const MaxAlternatives = 6

// SuggestAlternatives probes same-day slots at 30-minute offsets around the
// requested start (3 earlier, 3 later) and keeps those that fit an active
// window and do not overlap any of the given busy slots. This is a client
// convenience on E_RES_CONFLICT, not a correctness path.
func SuggestAlternatives(windows []AvailabilityWindow, busy []Slot, start, end time.Time) []Slot {
	duration := end.Sub(start)
	alternatives := make([]Slot, 0, MaxAlternatives)

	for offset := -3; offset <= 3 && len(alternatives) < MaxAlternatives; offset++ {
		if offset == 0 {
			continue // the requested slot itself
		}
		altStart := start.Add(time.Duration(offset) * 30 * time.Minute)
		altEnd := altStart.Add(duration)
		if altStart.Day() != start.Day() {
			continue
		}

		if ValidateSlot(windows, altStart, altEnd) != nil {
			continue
		}
		if overlapsAny(busy, altStart, altEnd) {
			continue
		}
		alternatives = append(alternatives, Slot{StartAt: altStart, EndAt: altEnd})
	}
	return alternatives
}

func overlapsAny(busy []Slot, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad clock value %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad clock value %q", s)
	}
	return h*60 + m, nil
}
