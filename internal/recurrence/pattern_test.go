package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planwise/tracking-engine/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		anchor  time.Time
		week    models.NthWeek
		weekday time.Weekday
	}{
		{"first tuesday", date(2025, time.June, 3), models.Week1, time.Tuesday},
		{"second tuesday", date(2025, time.June, 10), models.Week2, time.Tuesday},
		{"last friday of january", date(2025, time.January, 31), models.WeekLast, time.Friday},
		{"last friday of february", date(2025, time.February, 28), models.WeekLast, time.Friday},
		{"second to last friday", date(2025, time.January, 24), models.WeekSecondLast, time.Friday},
		{"last day of 30-day month", date(2025, time.April, 30), models.WeekLast, time.Wednesday},
		{"final 7 days always classify last", date(2025, time.March, 25), models.WeekLast, time.Tuesday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern := Classify(tt.anchor)
			assert.Equal(t, tt.week, pattern.Week)
			assert.Equal(t, tt.weekday, pattern.Weekday)
		})
	}
}

func TestResolve_LastFridayAlwaysInFinalWeek(t *testing.T) {
	pattern := Pattern{Week: models.WeekLast, Weekday: time.Friday}

	for year := 2024; year <= 2026; year++ {
		for month := time.January; month <= time.December; month++ {
			resolved, ok := Resolve(pattern, year, month, time.UTC)
			require.True(t, ok, "%d-%s must have a last Friday", year, month)

			assert.Equal(t, time.Friday, resolved.Weekday())
			assert.True(t, daysInMonth(year, month)-resolved.Day() < 7,
				"%s is not within the final 7 days of %d-%s", resolved, year, month)
		}
	}
}

func TestResolve_SecondLast(t *testing.T) {
	pattern := Pattern{Week: models.WeekSecondLast, Weekday: time.Friday}

	resolved, ok := Resolve(pattern, 2025, time.January, time.UTC)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.January, 24), resolved)

	// February 2025 ends on a Friday; its second-to-last Friday is the 21st.
	resolved, ok = Resolve(pattern, 2025, time.February, time.UTC)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.February, 21), resolved)
}

func TestClassifyResolve_RoundTrip(t *testing.T) {
	anchors := []time.Time{
		date(2025, time.January, 6),
		date(2025, time.January, 14),
		date(2025, time.January, 31),
		date(2025, time.February, 28),
		date(2025, time.April, 1),
		date(2025, time.June, 10),
		date(2024, time.February, 29),
	}

	for _, anchor := range anchors {
		pattern := Classify(anchor)
		resolved, ok := Resolve(pattern, anchor.Year(), anchor.Month(), time.UTC)
		require.True(t, ok, "pattern %v must resolve in its own month", pattern)
		assert.Equal(t, anchor.Day(), resolved.Day(),
			"round trip for %s via %v", anchor, pattern)
	}
}

func TestResolve_NumericWeekMatchesCalendarRow(t *testing.T) {
	// July 2025 starts on a Tuesday; the Monday in calendar row 2 is the
	// 7th, which is the first Monday of the month.
	resolved, ok := Resolve(Pattern{Week: models.Week2, Weekday: time.Monday}, 2025, time.July, time.UTC)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.July, 7), resolved)

	// Row 1 has no Monday at all in July 2025.
	_, ok = Resolve(Pattern{Week: models.Week1, Weekday: time.Monday}, 2025, time.July, time.UTC)
	assert.False(t, ok)
}
