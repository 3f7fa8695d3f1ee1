package compliance

import (
	"testing"
	"time"
)

func TestComputeRate(t *testing.T) {
	s := Compute(10, 7)
	if s.Rate != 70.0 {
		t.Fatalf("10/7 rate = %v, want 70.0", s.Rate)
	}
	if s.Total != 10 || s.Completed != 7 {
		t.Fatalf("counts not carried: %+v", s)
	}
}

func TestComputeEmptyWindowIsZero(t *testing.T) {
	s := Compute(0, 0)
	if s.Rate != 0 {
		t.Fatalf("empty window rate = %v, want 0", s.Rate)
	}
}

func TestComputeRoundsToOneDecimal(t *testing.T) {
	if got := Compute(3, 1).Rate; got != 33.3 {
		t.Fatalf("1/3 = %v, want 33.3", got)
	}
	if got := Compute(3, 2).Rate; got != 66.7 {
		t.Fatalf("2/3 = %v, want 66.7", got)
	}
	if got := Compute(7, 7).Rate; got != 100.0 {
		t.Fatalf("7/7 = %v, want 100.0", got)
	}
}

func TestTrailingMonthsShape(t *testing.T) {
	asOf := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	ws := TrailingMonths(asOf, 6)
	if len(ws) != 6 {
		t.Fatalf("len = %d", len(ws))
	}
	if ws[0].Label != "2024-01" || ws[5].Label != "2024-06" {
		t.Fatalf("labels %s .. %s", ws[0].Label, ws[5].Label)
	}
	if !ws[0].Start.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first start %v", ws[0].Start)
	}
}

func TestTrailingMonthsCrossYear(t *testing.T) {
	asOf := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	ws := TrailingMonths(asOf, 6)
	if ws[0].Label != "2023-09" || ws[5].Label != "2024-02" {
		t.Fatalf("labels %s .. %s", ws[0].Label, ws[5].Label)
	}
}

func TestTrailingMonthsNeverOverlap(t *testing.T) {
	asOf := time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC)
	ws := TrailingMonths(asOf, 6)
	for i := 0; i < len(ws)-1; i++ {
		if !ws[i].End.Before(ws[i+1].Start) {
			t.Fatalf("window %d end %v overlaps window %d start %v", i, ws[i].End, i+1, ws[i+1].Start)
		}
		if ws[i].Start.After(ws[i].End) {
			t.Fatalf("window %d inverted", i)
		}
	}
}

func TestTrend(t *testing.T) {
	asOf := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	byMonth := map[string][2]int{
		"2024-05": {10, 7},
		"2024-06": {4, 4},
	}
	pts, err := Trend(asOf, 6, func(w Window) (int, int, error) {
		c := byMonth[w.Label]
		return c[0], c[1], nil
	})
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if len(pts) != 6 {
		t.Fatalf("len = %d", len(pts))
	}
	if pts[4].Rate != 70.0 {
		t.Fatalf("2024-05 rate = %v", pts[4].Rate)
	}
	if pts[5].Rate != 100.0 {
		t.Fatalf("2024-06 rate = %v", pts[5].Rate)
	}
	if pts[0].Rate != 0 || pts[0].Total != 0 {
		t.Fatalf("empty month should be zero: %+v", pts[0])
	}
}
