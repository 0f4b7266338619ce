// Package schedule holds the pure window math: computing the day's trigger
// times and deciding whether a wall-clock instant falls inside a window's
// tolerance. No I/O, no side effects.
package schedule

import (
	"fmt"
	"time"

	"pingwatch/internal/config"
)

const (
	// WindowCount is how many trigger windows a day gets.
	WindowCount = 3

	// Interval between consecutive windows. Chosen to match the upstream
	// usage-limit reset cadence; work_end does not participate in spacing.
	Interval = 5 * time.Hour

	// Tolerance on either side of a window within which it counts as due.
	Tolerance = 15 * time.Minute

	minutesPerDay = 24 * 60
)

// ComputeTimes returns count trigger times as zero-padded "HH:MM" keys,
// starting at workStart and spaced Interval apart. Hours are reduced
// modulo 24: a window computed past midnight keeps its clock-face time,
// and the circular IsDue test makes it fire around the day boundary.
func ComputeTimes(workStart string, count int) ([]string, error) {
	h, m, err := config.ParseClock(workStart)
	if err != nil {
		return nil, err
	}

	step := int(Interval / time.Minute)
	cur := h*60 + m

	times := make([]string, 0, count)
	for i := 0; i < count; i++ {
		mod := cur % minutesPerDay
		times = append(times, fmt.Sprintf("%02d:%02d", mod/60, mod%60))
		cur += step
	}
	return times, nil
}

// IsDue reports whether now falls within Tolerance of the scheduled "HH:MM"
// time, measured on a circular 24-hour clock. The predicate is symmetric
// around midnight: a 23:55 window is due at 00:05 the next calendar day.
func IsDue(scheduled string, now time.Time) (bool, error) {
	h, m, err := config.ParseClock(scheduled)
	if err != nil {
		return false, err
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	schedMinutes := h*60 + m

	diff := (nowMinutes - schedMinutes) % minutesPerDay
	if diff < 0 {
		diff += minutesPerDay
	}
	if diff > minutesPerDay/2 {
		diff = minutesPerDay - diff
	}
	return diff <= int(Tolerance/time.Minute), nil
}

// ActiveToday reports whether now's weekday is in days (Monday=0 .. Sunday=6).
func ActiveToday(days []int, now time.Time) bool {
	today := Weekday(now)
	for _, d := range days {
		if d == today {
			return true
		}
	}
	return false
}

// Weekday maps time.Weekday (Sunday=0) onto the Monday=0 convention used
// in active_days.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
