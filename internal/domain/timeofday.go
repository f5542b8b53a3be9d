package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time at minute resolution, stored as minutes
// since midnight. It carries no date or timezone; planned activity times
// are local to whichever day the session is on.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses an "HH:MM" string. Both fields must be exactly
// two digits; anything else is rejected.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || !isTwoDigits(hh) || !isTwoDigits(mm) {
		return 0, Errorf(KindValidation, "invalid time %q: expected HH:MM", value)
	}
	hour, _ := strconv.Atoi(hh)
	minute, _ := strconv.Atoi(mm)
	if hour > 23 || minute > 59 {
		return 0, Errorf(KindValidation, "invalid time %q: hour must be 00-23 and minute 00-59", value)
	}
	return TimeOfDay(hour*60 + minute), nil
}

func isTwoDigits(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid reports whether the value lies within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// AddMinutes returns the time offset by the given number of minutes,
// wrapping around midnight. Used for planned end-time display only.
func (t TimeOfDay) AddMinutes(minutes int) TimeOfDay {
	sum := (int(t) + minutes) % minutesPerDay
	if sum < 0 {
		sum += minutesPerDay
	}
	return TimeOfDay(sum)
}

// MinutesBetween returns end minus start in minutes. Activities are
// same-day only, so an end before the start is rejected rather than
// wrapped to the next day.
func MinutesBetween(start, end TimeOfDay) (int, error) {
	if end < start {
		return 0, Errorf(KindValidation, "end time %s is before start time %s", end, start)
	}
	return int(end - start), nil
}

// ElapsedMinutes returns the elapsed wall time between two timestamps,
// rounded to the nearest minute.
func ElapsedMinutes(start, end time.Time) int {
	return int(end.Sub(start).Round(time.Minute) / time.Minute)
}
