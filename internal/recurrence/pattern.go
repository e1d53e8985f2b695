package recurrence

import (
	"fmt"
	"time"

	"planwise/tracking-engine/internal/models"
)

// Pattern is the month-position of a weekday, e.g. "2nd Tuesday" or
// "last Friday".
type Pattern struct {
	Week    models.NthWeek
	Weekday time.Weekday
}

// Classify derives the month-position pattern of an anchor date.
//
// The numeric week is the calendar row: ceil((dayOfMonth + weekdayOfFirst) / 7).
// Dates in the final 7 days of the month classify as "last" and dates in the
// 7 days before that (when the row is 3 or later) as "second_last", so the
// pattern survives months of different lengths.
func Classify(anchor time.Time) Pattern {
	day := anchor.Day()
	firstOfMonth := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	weekdayOfFirst := int(firstOfMonth.Weekday())

	week := (day + weekdayOfFirst + 6) / 7 // ceil((day + weekdayOfFirst) / 7)
	remaining := daysInMonth(anchor.Year(), anchor.Month()) - day

	switch {
	case remaining < 7:
		return Pattern{Week: models.WeekLast, Weekday: anchor.Weekday()}
	case remaining < 14 && week >= 3:
		return Pattern{Week: models.WeekSecondLast, Weekday: anchor.Weekday()}
	default:
		return Pattern{Week: models.NthWeek(fmt.Sprintf("%d", week)), Weekday: anchor.Weekday()}
	}
}

// Resolve locates the day of month matching the pattern in the given month,
// the inverse of Classify. ok is false when the month has no such day.
func Resolve(p Pattern, year int, month time.Month, loc *time.Location) (time.Time, bool) {
	last := daysInMonth(year, month)

	switch p.Week {
	case models.WeekLast, models.WeekSecondLast:
		lastDate := time.Date(year, month, last, 0, 0, 0, 0, loc)
		offset := (int(lastDate.Weekday()) - int(p.Weekday) + 7) % 7
		day := last - offset
		if p.Week == models.WeekSecondLast {
			day -= 7
		}
		if day < 1 {
			return time.Time{}, false
		}
		return time.Date(year, month, day, 0, 0, 0, 0, loc), true
	}

	var week int
	switch p.Week {
	case models.Week1:
		week = 1
	case models.Week2:
		week = 2
	case models.Week3:
		week = 3
	case models.Week4:
		week = 4
	default:
		return time.Time{}, false
	}

	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	weekdayOfFirst := int(firstOfMonth.Weekday())

	// First occurrence of the weekday and the calendar row it lands in.
	firstDay := 1 + (int(p.Weekday)-weekdayOfFirst+7)%7
	firstRow := 1
	if int(p.Weekday) < weekdayOfFirst {
		firstRow = 2
	}

	day := firstDay + (week-firstRow)*7
	if day < 1 || day > last {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc), true
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
