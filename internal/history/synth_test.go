package history

import (
	"testing"
	"time"

	"github.com/judev34/parking-montpellier-app/internal/model"
)

func fixedNow() time.Time {
	// A Wednesday afternoon.
	return time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)
}

func TestFlat_ShapeAndBounds(t *testing.T) {
	g := NewSeededGenerator(fixedNow, 1)
	ts := g.Flat("urn:ngsi-ld:parking:7")

	if ts.Provenance != model.ProvenanceSynthetic {
		t.Fatalf("provenance=%q", ts.Provenance)
	}
	if ts.Len() != 24 || len(ts.Values) != 24 {
		t.Fatalf("expected 24 points, got %d/%d", ts.Len(), len(ts.Values))
	}
	if !ts.Index[23].Equal(fixedNow()) {
		t.Fatalf("series should end now, last=%v", ts.Index[23])
	}
	for i, v := range ts.Values {
		if v < 10 || v >= 100 {
			t.Fatalf("value %d out of [10,100): %v", i, v)
		}
	}
	for i := 1; i < ts.Len(); i++ {
		if got := ts.Index[i].Sub(ts.Index[i-1]); got != time.Hour {
			t.Fatalf("non-hourly step at %d: %v", i, got)
		}
	}
}

func TestPatterned_WeekShape(t *testing.T) {
	g := NewSeededGenerator(fixedNow, 1)
	ts := g.Patterned("urn:ngsi-ld:parking:7", model.PeriodWeek)

	if ts.Len() != 7*24 {
		t.Fatalf("expected 168 points, got %d", ts.Len())
	}
	for i, v := range ts.Values {
		if v < 5 || v > 100 {
			t.Fatalf("value %d out of [5,100]: %v", i, v)
		}
	}
}

func TestPatterned_PeriodLengths(t *testing.T) {
	g := NewSeededGenerator(fixedNow, 1)
	if got := g.Patterned("p", model.PeriodDay).Len(); got != 24 {
		t.Fatalf("day: %d points", got)
	}
	if got := g.Patterned("p", model.PeriodMonth).Len(); got != 30*24 {
		t.Fatalf("month: %d points", got)
	}
}

// Rush hour on a weekday must look worse than the middle of the night.
func TestPatterned_RushHourBelowNight(t *testing.T) {
	g := NewSeededGenerator(fixedNow, 42)

	var rushSum, rushN, nightSum, nightN float64
	for i := 0; i < 50; i++ {
		ts := g.Patterned("p", model.PeriodWeek)
		for i, at := range ts.Index {
			wd := at.Weekday()
			weekend := wd == time.Saturday || wd == time.Sunday
			switch {
			case !weekend && at.Hour() == 8:
				rushSum += ts.Values[i]
				rushN++
			case at.Hour() == 2:
				nightSum += ts.Values[i]
				nightN++
			}
		}
	}
	if rushN == 0 || nightN == 0 {
		t.Fatal("sampling produced no buckets")
	}
	rushMean := rushSum / rushN
	nightMean := nightSum / nightN
	if rushMean >= nightMean {
		t.Fatalf("weekday 08h mean %.1f should be below 02h mean %.1f", rushMean, nightMean)
	}
}
