// Package compliance turns windowed checklist counts into the percentages the
// dashboard reports.
package compliance

import (
	"math"
	"time"
)

type Stats struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Rate      float64 `json:"rate"`
}

// Compute derives a compliance rate from raw counts. An empty window is 0%,
// not an error: a department with no inspections due has nothing to fail.
func Compute(total, completed int) Stats {
	s := Stats{Total: total, Completed: completed}
	if total <= 0 {
		return s
	}
	s.Rate = round1(float64(completed) / float64(total) * 100)
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type Window struct {
	Label string    `json:"label"` // "2024-03"
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TrailingMonths returns n calendar-month windows ending with the month of
// asOf, oldest first. Windows are inclusive at both ends and never overlap:
// each ends on the last nanosecond before the next month starts.
func TrailingMonths(asOf time.Time, n int) []Window {
	if n <= 0 {
		return nil
	}
	out := make([]Window, 0, n)
	y, m, _ := asOf.UTC().Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)
	for i := 0; i < n; i++ {
		start := first.AddDate(0, i, 0)
		end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		out = append(out, Window{
			Label: start.Format("2006-01"),
			Start: start,
			End:   end,
		})
	}
	return out
}

type MonthPoint struct {
	Month     string  `json:"month"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Rate      float64 `json:"rate"`
}

// CountsFn reports checklist totals for one window; the store supplies it.
type CountsFn func(w Window) (total, completed int, err error)

// Trend computes the per-month series for the trailing n months, each month
// from its own window only.
func Trend(asOf time.Time, n int, counts CountsFn) ([]MonthPoint, error) {
	windows := TrailingMonths(asOf, n)
	out := make([]MonthPoint, 0, len(windows))
	for _, w := range windows {
		total, completed, err := counts(w)
		if err != nil {
			return nil, err
		}
		s := Compute(total, completed)
		out = append(out, MonthPoint{Month: w.Label, Total: s.Total, Completed: s.Completed, Rate: s.Rate})
	}
	return out, nil
}
