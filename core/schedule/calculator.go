// Package schedule computes maintenance due dates from frequency rules and
// classifies schedules into overdue / due-soon / scheduled buckets.
package schedule

import (
	"strings"
	"time"

	"helix-qms/core/apperr"
)

type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

var validFrequencies = map[Frequency]struct{}{
	Daily:     {},
	Weekly:    {},
	Monthly:   {},
	Quarterly: {},
	Yearly:    {},
}

func ParseFrequency(raw string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validFrequencies[f]; !ok {
		return "", apperr.Validation("invalid frequency unit %q", raw)
	}
	return f, nil
}

// NextDue returns the next due date for a schedule executed (or created) at base.
// Day-based units add whole days; calendar units add months/years with the
// day-of-month clamped to the last valid day of the target month.
func NextDue(base time.Time, unit Frequency, multiplier int) (time.Time, error) {
	if multiplier <= 0 {
		return time.Time{}, apperr.Validation("frequency multiplier must be a positive integer, got %d", multiplier)
	}
	switch unit {
	case Daily:
		return base.AddDate(0, 0, multiplier), nil
	case Weekly:
		return base.AddDate(0, 0, multiplier*7), nil
	case Monthly:
		return addMonthsClamped(base, multiplier), nil
	case Quarterly:
		return addMonthsClamped(base, multiplier*3), nil
	case Yearly:
		return addMonthsClamped(base, multiplier*12), nil
	default:
		return time.Time{}, apperr.Validation("invalid frequency unit %q", string(unit))
	}
}

// addMonthsClamped adds calendar months preserving the day of month where it
// exists in the target month; otherwise it clamps to the month's last day.
// time.AddDate would normalize Jan 31 + 1 month into Mar 2/3, which is not
// what a monthly maintenance plan means.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	ty := y + total/12
	tm := time.Month(total%12 + 1)
	last := daysIn(ty, tm)
	if d > last {
		d = last
	}
	h, min, sec := t.Clock()
	return time.Date(ty, tm, d, h, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

type Bucket string

const (
	BucketOverdue   Bucket = "overdue"
	BucketDueSoon   Bucket = "due_soon"
	BucketScheduled Bucket = "scheduled"
)

// DueSoonWindowDays is the horizon for the due-soon bucket.
const DueSoonWindowDays = 7

// Classify places a schedule in exactly one bucket relative to today. Dates
// are compared at day granularity; the buckets partition all schedules with a
// known next-due date.
func Classify(nextDue, today time.Time) Bucket {
	nd := truncateDay(nextDue)
	td := truncateDay(today)
	if nd.Before(td) {
		return BucketOverdue
	}
	horizon := td.AddDate(0, 0, DueSoonWindowDays)
	if !nd.After(horizon) {
		return BucketDueSoon
	}
	return BucketScheduled
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
