// Package history fabricates plausible occupancy time series for records the
// remote source has no history for. Everything it produces is tagged
// synthetic so callers can never mistake it for real data.
package history

import (
	"math/rand"
	"sync"
	"time"

	"github.com/judev34/parking-montpellier-app/internal/model"
)

// DefaultAttrName matches the attribute the real time-series endpoint serves.
const DefaultAttrName = "availableSpotNumber"

type Generator struct {
	now func() time.Time // for tests

	// rand.Rand is not safe for concurrent use and generators are shared
	// across request handlers.
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator() *Generator {
	return &Generator{
		now: time.Now,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSeededGenerator pins both the clock and the random source, for tests and
// reproducible demos.
func NewSeededGenerator(now func() time.Time, seed int64) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now, rnd: rand.New(rand.NewSource(seed))}
}

// Flat returns 24 hourly points ending now, each a uniform integer in
// [10,100). This is the immediate fallback when a single real series was
// expected but the response carried no usable values.
func (g *Generator) Flat(entityID string) model.TimeSeries {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	ts := model.TimeSeries{
		AttrName:   DefaultAttrName,
		EntityID:   entityID,
		Provenance: model.ProvenanceSynthetic,
		Index:      make([]time.Time, 0, 24),
		Values:     make([]float64, 0, 24),
	}
	for i := 0; i < 24; i++ {
		ts.Index = append(ts.Index, now.Add(-time.Duration(23-i)*time.Hour))
		ts.Values = append(ts.Values, float64(10+g.rnd.Intn(90)))
	}
	return ts
}

// FlatValues fabricates n values in [10,100) for a series whose timestamps
// are real but whose value field could not be recovered from the response.
func (g *Generator) FlatValues(n int) []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]float64, n)
	for i := range out {
		out[i] = float64(10 + g.rnd.Intn(90))
	}
	return out
}

// Patterned returns hourly points over the whole period with a
// day-of-week and hour-of-day dependent base availability, so demo charts
// look behaviorally plausible instead of obviously random.
func (g *Generator) Patterned(entityID string, period model.Period) model.TimeSeries {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	days := period.Days()

	ts := model.TimeSeries{
		AttrName:   DefaultAttrName,
		EntityID:   entityID,
		Provenance: model.ProvenanceSynthetic,
		Index:      make([]time.Time, 0, days*24),
		Values:     make([]float64, 0, days*24),
	}

	for day := 0; day < days; day++ {
		base := now.AddDate(0, 0, -(days-1)+day)
		for hour := 0; hour < 24; hour++ {
			at := time.Date(base.Year(), base.Month(), base.Day(), hour, 0, 0, 0, base.Location())
			ts.Index = append(ts.Index, at)
			ts.Values = append(ts.Values, g.valueFor(at))
		}
	}
	return ts
}

// valueFor models availability: scarce during weekday business hours with
// sharper rush-hour dips, comfortable on weekend daytimes, high in the
// evening and highest at night.
func (g *Generator) valueFor(at time.Time) float64 {
	hour := at.Hour()
	weekday := at.Weekday()
	isWeekend := weekday == time.Saturday || weekday == time.Sunday

	var base float64
	switch {
	case hour >= 8 && hour <= 18:
		if isWeekend {
			base = 60 + g.rnd.Float64()*30
		} else {
			base = 20 + g.rnd.Float64()*20
			if (hour >= 8 && hour <= 9) || (hour >= 17 && hour <= 18) {
				base = 10 + g.rnd.Float64()*10
			}
		}
	case hour > 18 && hour <= 23:
		base = 60 + g.rnd.Float64()*20
	case hour <= 5:
		base = 80 + g.rnd.Float64()*20
	default:
		base = 50 + g.rnd.Float64()*30
	}

	v := float64(int(base) + g.rnd.Intn(10) - 5)
	return min(max(v, 5), 100)
}
