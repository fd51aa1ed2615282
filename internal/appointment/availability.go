package appointment

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrInvalidTemplate = errors.New("invalid availability template")
)

var weekdayNames = map[string]bool{
	"sunday":    true,
	"monday":    true,
	"tuesday":   true,
	"wednesday": true,
	"thursday":  true,
	"friday":    true,
	"saturday":  true,
}

// ValidateTemplate checks that every weekday name is known, every window
// parses as "HH:MM" with start before end, and no two windows on the same
// weekday overlap. The upstream system accepted anything here, which let
// overlapping templates produce unbookable ghost slots.
func ValidateTemplate(availableDays []string, template WeeklyTemplate) error {
	for _, day := range availableDays {
		if !weekdayNames[day] {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidTemplate, day)
		}
	}

	for day, windows := range template {
		if !weekdayNames[day] {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidTemplate, day)
		}

		for _, win := range windows {
			start, err := parseClock(win.StartTime)
			if err != nil {
				return fmt.Errorf("%w: %s window start %q", ErrInvalidTemplate, day, win.StartTime)
			}
			end, err := parseClock(win.EndTime)
			if err != nil {
				return fmt.Errorf("%w: %s window end %q", ErrInvalidTemplate, day, win.EndTime)
			}
			if !start.Before(end) {
				return fmt.Errorf("%w: %s window %s-%s has start >= end",
					ErrInvalidTemplate, day, win.StartTime, win.EndTime)
			}
		}

		sorted := make([]Window, len(windows))
		copy(sorted, windows)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].StartTime < sorted[j].StartTime
		})
		for i := 1; i < len(sorted); i++ {
			// zero-padded HH:MM compares correctly as a string
			if sorted[i].StartTime < sorted[i-1].EndTime {
				return fmt.Errorf("%w: %s windows %s-%s and %s-%s overlap",
					ErrInvalidTemplate, day,
					sorted[i-1].StartTime, sorted[i-1].EndTime,
					sorted[i].StartTime, sorted[i].EndTime)
			}
		}
	}

	return nil
}

// DayAvailable reports whether the provider accepts bookings on the weekday.
func (a *Availability) DayAvailable(weekday string) bool {
	for _, day := range a.AvailableDays {
		if day == weekday {
			return true
		}
	}
	return false
}

// WindowEnabled reports whether the slot matches an enabled window of the
// weekday's template, exact start and end.
func (a *Availability) WindowEnabled(weekday string, slot TimeSlot) bool {
	for _, win := range a.Template[weekday] {
		if win.StartTime == slot.StartTime && win.EndTime == slot.EndTime && win.Enabled {
			return true
		}
	}
	return false
}

// EnabledWindows returns the weekday's enabled windows in template order.
func (a *Availability) EnabledWindows(weekday string) []Window {
	var out []Window
	for _, win := range a.Template[weekday] {
		if win.Enabled {
			out = append(out, win)
		}
	}
	return out
}

func parseClock(s string) (time.Time, error) {
	return time.Parse("15:04", s)
}
