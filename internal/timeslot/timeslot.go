// Package timeslot implements time-of-day arithmetic for the schedule grid.
//
// Clock times are "HH:mm" strings as they appear on activities. Every
// function degrades to a safe default on malformed input instead of
// failing, so a single corrupt record cannot abort a batch evaluation.
package timeslot

import (
	"fmt"
	"strings"
	"time"
)

// MinutesPerDay is the length of a calendar day in minutes.
const MinutesPerDay = 24 * 60

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Slot is a coarse time-of-day bucket used for conflict bucketing.
type Slot string

const (
	Morning   Slot = "MORNING"
	Afternoon Slot = "AFTERNOON"
	Evening   Slot = "EVENING"
)

// Window is a half-open minute range [Start, End).
type Window struct {
	Start int
	End   int
}

// Overlap returns the number of minutes w shares with [start, end).
func (w Window) Overlap(start, end int) int {
	return max(0, min(w.End, end)-max(w.Start, start))
}

const (
	noon    = 12 * 60
	evening = 18 * 60
)

// Slots lists every slot with its window, in day order.
var Slots = []struct {
	Slot   Slot
	Window Window
}{
	{Morning, Window{0, noon}},
	{Afternoon, Window{noon, evening}},
	{Evening, Window{evening, MinutesPerDay}},
}

// ToMinutes converts "HH:mm" or "HH:mm:ss" to minutes since midnight;
// seconds are checked and then ignored. The second result is false when s is
// malformed.
func ToMinutes(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	h, ok := digits(parts[0], 1, 2)
	if !ok || h > 23 {
		return 0, false
	}
	m, ok := digits(parts[1], 2, 2)
	if !ok || m > 59 {
		return 0, false
	}
	if len(parts) == 3 {
		if sec, ok := digits(parts[2], 2, 2); !ok || sec > 59 {
			return 0, false
		}
	}
	return h*60 + m, true
}

// digits parses an unsigned decimal of minLen to maxLen ASCII digits.
func digits(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// FormatMinutes renders minutes since midnight as "HH:mm", clamped to the
// last minute of the day.
func FormatMinutes(m int) string {
	m = min(max(m, 0), MinutesPerDay-1)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Normalize reformats a clock time to canonical "HH:mm".
func Normalize(s string) (string, bool) {
	m, ok := ToMinutes(s)
	if !ok {
		return "", false
	}
	return FormatMinutes(m), true
}

// Classify buckets a start time using the fixed 12:00 and 18:00 boundaries.
// Malformed input falls into Morning.
func Classify(start string) Slot {
	m, ok := ToMinutes(start)
	switch {
	case !ok || m < noon:
		return Morning
	case m < evening:
		return Afternoon
	default:
		return Evening
	}
}

// ClassifyByOverlap picks the slot sharing the most minutes with
// [start, end). Ties go to the earlier slot. When the interval is malformed
// or overlaps nothing it falls back to Classify(start).
func ClassifyByOverlap(start, end string) Slot {
	s, okS := ToMinutes(start)
	e, okE := ToMinutes(end)
	if !okS || !okE || e <= s {
		return Classify(start)
	}
	best, bestOverlap := Classify(start), 0
	for _, sl := range Slots {
		if o := sl.Window.Overlap(s, e); o > bestOverlap {
			best, bestOverlap = sl.Slot, o
		}
	}
	return best
}

// DurationMinutes returns end-start when positive, else fallback.
func DurationMinutes(start, end string, fallback int) int {
	s, okS := ToMinutes(start)
	e, okE := ToMinutes(end)
	if !okS || !okE || e <= s {
		return fallback
	}
	return e - s
}

// DurationHours is DurationMinutes in hours, never less than half an hour.
func DurationHours(start, end string, fallback int) float64 {
	return max(0.5, float64(DurationMinutes(start, end, fallback))/60)
}

// RoundUp rounds minutes up to the next multiple of quantum.
// Non-positive inputs are returned unchanged.
func RoundUp(minutes, quantum int) int {
	if quantum <= 0 || minutes <= 0 || minutes%quantum == 0 {
		return minutes
	}
	return minutes + quantum - minutes%quantum
}

// ParseDate parses a strict "YYYY-MM-DD" date at midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders the calendar date of t as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
