package recurrence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"planwise/tracking-engine/internal/models"
)

const defaultMaxInstances = 1000

// Expand turns a seed event plus a recurrence rule into the ordered list of
// concrete instances. The first element always corresponds to the seed's own
// occurrence; all instances share one freshly generated group id. Open-ended
// rules are bounded by horizon, everything by maxInstances.
//
// Expansion is pure: no instance is persisted here.
func Expand(seed *models.Event, rec models.Recurrence, horizon time.Time, maxInstances int) ([]*models.Event, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if maxInstances <= 0 {
		maxInstances = defaultMaxInstances
	}
	if rec.GroupID == "" {
		rec.GroupID = uuid.New().String()
	}

	var starts []time.Time
	var err error
	if rec.Type == models.RecurMonthly && rec.MonthlyMode == models.MonthlyNthWeekday {
		starts = expandNthWeekday(seed.StartTime, &rec, horizon, maxInstances)
	} else {
		starts, err = expandWithRRule(seed.StartTime, rec, horizon, maxInstances)
		if err != nil {
			return nil, err
		}
	}

	if len(starts) == 0 || !starts[0].Equal(seed.StartTime) {
		return nil, fmt.Errorf("expansion did not produce the seed occurrence at %s", seed.StartTime)
	}

	duration := seed.EndTime.Sub(seed.StartTime)
	instances := make([]*models.Event, 0, len(starts))
	for _, start := range starts {
		instanceRec := rec
		instances = append(instances, &models.Event{
			ID:         uuid.New().String(),
			Title:      seed.Title,
			StartTime:  start,
			EndTime:    start.Add(duration),
			ProjectID:  seed.ProjectID,
			Color:      seed.Color,
			Kind:       models.KindPlanned,
			Recurrence: &instanceRec,
		})
	}

	// The seed keeps its own identity; only its recurrence is attached.
	instances[0].ID = seed.ID
	if instances[0].ID == "" {
		instances[0].ID = uuid.New().String()
	}

	return instances, nil
}

// expandWithRRule covers daily, weekly, yearly and fixed-day monthly rules.
func expandWithRRule(start time.Time, rec models.Recurrence, horizon time.Time, maxInstances int) ([]time.Time, error) {
	opts := rrule.ROption{
		Interval: rec.Interval,
		Dtstart:  start,
	}

	switch rec.Type {
	case models.RecurDaily:
		opts.Freq = rrule.DAILY
	case models.RecurWeekly:
		opts.Freq = rrule.WEEKLY
	case models.RecurMonthly:
		opts.Freq = rrule.MONTHLY
		opts.Bymonthday = []int{start.Day()}
	case models.RecurYearly:
		opts.Freq = rrule.YEARLY
	default:
		return nil, fmt.Errorf("unsupported recurrence type %q", rec.Type)
	}

	switch rec.End.Kind {
	case models.EndCount:
		opts.Count = *rec.End.Count
	case models.EndUntil:
		opts.Until = *rec.End.EndDate
	}

	rule, err := rrule.NewRRule(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}

	var starts []time.Time
	if rec.OpenEnded() {
		starts = rule.Between(start.Add(-time.Second), horizon, true)
	} else {
		starts = rule.All()
	}

	if len(starts) > maxInstances {
		starts = starts[:maxInstances]
	}
	return starts, nil
}

// expandNthWeekday steps months by the rule interval and resolves the seed's
// month-position pattern in each. The pattern classification is invertible,
// so "last Friday" lands on the actual last Friday of every generated month.
func expandNthWeekday(start time.Time, rec *models.Recurrence, horizon time.Time, maxInstances int) []time.Time {
	pattern := Classify(start)
	rec.NthWeek = pattern.Week
	rec.Weekday = pattern.Weekday

	hour, minute, sec := start.Clock()
	loc := start.Location()

	var starts []time.Time
	year, month := start.Year(), start.Month()

	// Iteration cap guards against rules that never resolve in any month.
	for iterations := 0; len(starts) < maxInstances && iterations < maxInstances*2+24; iterations++ {
		if date, ok := Resolve(pattern, year, month, loc); ok {
			occurrence := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, sec, 0, loc)

			done := false
			switch rec.End.Kind {
			case models.EndCount:
				done = len(starts) >= *rec.End.Count
			case models.EndUntil:
				done = occurrence.After(*rec.End.EndDate)
			case models.EndNever:
				done = occurrence.After(horizon)
			}
			if done {
				break
			}

			// Months before the seed (possible when the pattern resolves
			// earlier in the seed's own month) are skipped, not generated.
			if !occurrence.Before(start) {
				starts = append(starts, occurrence)
			}
		}

		month += time.Month(rec.Interval)
		for month > 12 {
			month -= 12
			year++
		}
	}

	return starts
}
