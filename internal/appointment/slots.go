package appointment

import (
	"iter"
	"time"
)

// Project yields one ProjectedDay per date in [from, from+horizonDays) whose
// weekday is in the provider's available days and has at least one enabled
// window. It is a pure function of the availability and the anchor date: it
// never consults existing bookings. Projection answers "what could be
// booked", not "what is free right now".
func (a *Availability) Project(from time.Time, horizonDays int) iter.Seq[ProjectedDay] {
	start := DateOnly(from, from.Location())

	return func(yield func(ProjectedDay) bool) {
		for i := 0; i < horizonDays; i++ {
			date := start.AddDate(0, 0, i)
			weekday := WeekdayName(date)

			if !a.DayAvailable(weekday) {
				continue
			}

			windows := a.EnabledWindows(weekday)
			if len(windows) == 0 {
				continue
			}

			if !yield(ProjectedDay{Date: date, Weekday: weekday, Windows: windows}) {
				return
			}
		}
	}
}

// ProjectSlots collects the projection into a slice, ascending by date.
func (a *Availability) ProjectSlots(from time.Time, horizonDays int) []ProjectedDay {
	var out []ProjectedDay
	for day := range a.Project(from, horizonDays) {
		out = append(out, day)
	}
	return out
}
