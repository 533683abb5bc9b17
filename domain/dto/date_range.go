package dto

import "time"

// DateFloor is the earliest date a report may start at. Providers keep no
// usable history before this point.
var DateFloor = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateRange is an inclusive day-granularity report window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultRange returns the trailing 30 days ending today.
func DefaultRange(now time.Time) DateRange {
	end := truncateDay(now)
	return DateRange{Start: end.AddDate(0, 0, -30), End: end}
}

// Normalize repairs the range instead of erroring: inverted ranges are
// swapped, both ends are clamped to [DateFloor, today+1], and zero values
// fall back to the trailing 30 days.
func (r DateRange) Normalize(now time.Time) DateRange {
	if r.Start.IsZero() && r.End.IsZero() {
		return DefaultRange(now)
	}
	start, end := truncateDay(r.Start), truncateDay(r.End)
	if end.IsZero() {
		end = truncateDay(now)
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}
	if start.After(end) {
		start, end = end, start
	}
	ceiling := truncateDay(now).AddDate(0, 0, 1)
	if end.After(ceiling) {
		end = ceiling
	}
	if start.Before(DateFloor) {
		start = DateFloor
	}
	if start.After(end) {
		start = end
	}
	return DateRange{Start: start, End: end}
}

// Previous derives the equal-length period immediately preceding the range,
// used for comparison metrics.
func (r DateRange) Previous() DateRange {
	days := r.Days()
	prevEnd := r.Start.AddDate(0, 0, -1)
	return DateRange{Start: prevEnd.AddDate(0, 0, -days), End: prevEnd}
}

// Days returns the number of whole days from Start to End, never negative.
// A single-day range yields 0.
func (r DateRange) Days() int {
	d := int(r.End.Sub(r.Start).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	t = truncateDay(t)
	return !t.Before(r.Start) && !t.After(r.End)
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
