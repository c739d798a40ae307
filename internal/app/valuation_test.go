package app

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestStraightLineEstimate(t *testing.T) {
	if got := StraightLineEstimate(10000, 2020, 2020); got != 10000 {
		t.Fatalf("year zero = %v, want purchase price", got)
	}
	if got := StraightLineEstimate(10000, 2020, 2021); math.Abs(got-8500) > 1e-9 {
		t.Fatalf("year one = %v, want 8500", got)
	}
	if got := StraightLineEstimate(10000, 2020, 2018); got != 10000 {
		t.Fatalf("pre-purchase year = %v, want clamp to price", got)
	}
}

func TestExponentialEstimate(t *testing.T) {
	if got := ExponentialEstimate(10000, 2020, 2020); got != 10000 {
		t.Fatalf("year zero = %v, want purchase price", got)
	}
	want := 10000 * math.Exp(-0.18)
	if got := ExponentialEstimate(10000, 2020, 2021); math.Abs(got-want) > 1e-9 {
		t.Fatalf("year one = %v, want %v", got, want)
	}
}

func TestEstimateCurveMonotonic(t *testing.T) {
	points := EstimateCurve(30000, 2015, 2015, 2035, 1)
	if len(points) != 21 {
		t.Fatalf("point count = %d, want 21", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].StraightLine > points[i-1].StraightLine {
			t.Fatalf("straight-line increased at year %d", points[i].Year)
		}
		if points[i].Exponential > points[i-1].Exponential {
			t.Fatalf("exponential increased at year %d", points[i].Year)
		}
		if points[i].StraightLine < 0 || points[i].Exponential < 0 {
			t.Fatalf("negative estimate at year %d", points[i].Year)
		}
	}
}

func TestRecordAIEstimateDedupsByDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.member(t, "a@example.com")
	v := f.vehicle(t, m.ID)

	f.text.replies = []string{`{"value": 18000}`, `{"value": 17500}`}
	first, err := f.app.RecordAIEstimate(ctx, m.ID, v.ID)
	if err != nil {
		t.Fatalf("first estimate: %v", err)
	}
	if first.Amount != 18000 {
		t.Fatalf("first amount = %v, want 18000", first.Amount)
	}
	if first.Date != time.Now().Format("01/02/2006") {
		t.Fatalf("date = %q, want MM/DD/YYYY of today", first.Date)
	}

	second, err := f.app.RecordAIEstimate(ctx, m.ID, v.ID)
	if err != nil {
		t.Fatalf("second estimate: %v", err)
	}
	got, _, _ := f.store.GetVehicle(ctx, v.ID)
	if len(got.AIEstimates) != 1 {
		t.Fatalf("estimate count = %d, want 1 per day", len(got.AIEstimates))
	}
	if got.AIEstimates[0].Amount != second.Amount {
		t.Fatalf("stored amount = %v, want replacement %v", got.AIEstimates[0].Amount, second.Amount)
	}
}

func TestRecordAIEstimateUnparsableLeavesSeries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.member(t, "a@example.com")
	v := f.vehicle(t, m.ID)

	f.text.replies = []string{"I think it is worth a lot"}
	if _, err := f.app.RecordAIEstimate(ctx, m.ID, v.ID); err == nil {
		t.Fatalf("expected unparsable response to fail")
	}
	got, _, _ := f.store.GetVehicle(ctx, v.ID)
	if len(got.AIEstimates) != 0 {
		t.Fatalf("series changed on unparsable response")
	}
}
