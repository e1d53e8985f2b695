package models

import (
	"fmt"
	"time"
)

type RecurrenceType string

const (
	RecurDaily   RecurrenceType = "daily"
	RecurWeekly  RecurrenceType = "weekly"
	RecurMonthly RecurrenceType = "monthly"
	RecurYearly  RecurrenceType = "yearly"
)

// MonthlyMode selects how a monthly rule anchors within the month.
type MonthlyMode string

const (
	MonthlyFixedDay   MonthlyMode = "fixed_day"   // e.g. "the 15th"
	MonthlyNthWeekday MonthlyMode = "nth_weekday" // e.g. "2nd Tuesday"
)

// NthWeek is the ordinal position of a weekday inside a month. Besides the
// numeric weeks 1-4 the two anchored-from-the-end ordinals exist because
// "last Friday" is stable across months of different lengths while "4th
// Friday" is not.
type NthWeek string

const (
	Week1          NthWeek = "1"
	Week2          NthWeek = "2"
	Week3          NthWeek = "3"
	Week4          NthWeek = "4"
	WeekSecondLast NthWeek = "second_last"
	WeekLast       NthWeek = "last"
)

type EndConditionKind string

const (
	EndNever EndConditionKind = "never"
	EndUntil EndConditionKind = "until"
	EndCount EndConditionKind = "count"
)

type EndCondition struct {
	Kind    EndConditionKind `json:"kind"`
	EndDate *time.Time       `json:"end_date,omitempty"`
	Count   *int             `json:"count,omitempty"`
}

type Recurrence struct {
	Type        RecurrenceType `json:"type"`
	Interval    int            `json:"interval"`
	MonthlyMode MonthlyMode    `json:"monthly_mode,omitempty"`
	NthWeek     NthWeek        `json:"nth_week,omitempty"`
	Weekday     time.Weekday   `json:"weekday,omitempty"`
	End         EndCondition   `json:"end_condition"`
	GroupID     string         `json:"group_id,omitempty"`
}

// Validate rejects rules the expander cannot honor.
func (r *Recurrence) Validate() error {
	switch r.Type {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
	default:
		return fmt.Errorf("unknown recurrence type %q", r.Type)
	}
	if r.Interval < 1 {
		return fmt.Errorf("recurrence interval must be positive, got %d", r.Interval)
	}
	switch r.End.Kind {
	case EndNever:
	case EndUntil:
		if r.End.EndDate == nil {
			return fmt.Errorf("end condition %q requires an end date", EndUntil)
		}
	case EndCount:
		if r.End.Count == nil || *r.End.Count < 1 {
			return fmt.Errorf("end condition %q requires a positive count", EndCount)
		}
	default:
		return fmt.Errorf("unknown end condition %q", r.End.Kind)
	}
	if r.Type == RecurMonthly {
		switch r.MonthlyMode {
		case MonthlyFixedDay, MonthlyNthWeekday:
		default:
			return fmt.Errorf("monthly recurrence requires a monthly mode, got %q", r.MonthlyMode)
		}
	}
	return nil
}

// OpenEnded reports whether the rule has no terminating condition and is
// therefore subject to horizon-bounded generation.
func (r *Recurrence) OpenEnded() bool {
	return r.End.Kind == EndNever
}
