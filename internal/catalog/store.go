// Package catalog holds the fetched parking catalog, the user's filters and
// the refresh lifecycle, and exposes the sorted/filtered view consumed by
// presentation layers.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/judev34/parking-montpellier-app/internal/derive"
	"github.com/judev34/parking-montpellier-app/internal/history"
	"github.com/judev34/parking-montpellier-app/internal/model"
	"github.com/judev34/parking-montpellier-app/internal/observability"
	"github.com/judev34/parking-montpellier-app/internal/opendata"
)

// DefaultRefreshInterval matches the cache TTL so every timer tick can see
// fresh data.
const DefaultRefreshInterval = 120 * time.Second

// DataSource is the slice of the open-data client the store depends on.
type DataSource interface {
	ListAll(ctx context.Context) ([]model.ParkingRecord, error)
	GetByID(ctx context.Context, id string) (model.ParkingRecord, error)
	GetHistory(ctx context.Context, id string, period model.Period, interval string) (model.TimeSeries, error)
}

// PrefsStore persists the one preference surviving across sessions.
type PrefsStore interface {
	LoadSearchQuery() string
	SaveSearchQuery(q string) error
}

// Snapshot is a copy of the store's current state.
type Snapshot struct {
	Catalog      []model.ParkingRecord
	Selected     *model.ParkingRecord
	History      *model.TimeSeries
	Loading      bool
	ErrorMessage string
	LastUpdated  time.Time
	Filters      model.FilterState
}

type Store struct {
	logger          *slog.Logger
	source          DataSource
	prefs           PrefsStore
	synth           *history.Generator
	refreshInterval time.Duration

	mu          sync.RWMutex
	catalog     []model.ParkingRecord
	selected    *model.ParkingRecord
	history     *model.TimeSeries
	loading     bool
	errMsg      string
	lastUpdated time.Time
	filters     model.FilterState

	// Coalesces overlapping refresh triggers: a refresh already in flight
	// wins and concurrent triggers become no-ops.
	refreshing atomic.Bool

	timerMu     sync.Mutex
	stopRefresh context.CancelFunc
}

func New(logger *slog.Logger, source DataSource, prefs PrefsStore, refreshInterval time.Duration) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	s := &Store{
		logger:          logger,
		source:          source,
		prefs:           prefs,
		synth:           history.NewGenerator(),
		refreshInterval: refreshInterval,
	}
	if prefs != nil {
		s.filters.SearchQuery = prefs.LoadSearchQuery()
	}
	return s
}

// RefreshCatalog replaces the catalog wholesale with the latest list result.
// An empty result is treated as a reportable condition: the (empty) catalog
// still replaces the old one, but the error message is set for the UI.
func (s *Store) RefreshCatalog(ctx context.Context) {
	if !s.refreshing.CompareAndSwap(false, true) {
		s.logger.DebugContext(ctx, "refresh already in flight, coalescing")
		return
	}
	defer s.refreshing.Store(false)

	s.setLoading(true)
	defer s.setLoading(false)

	records, err := s.source.ListAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.catalog = records
	observability.SetCatalogSize(len(records))

	switch {
	case errors.Is(err, opendata.ErrEmpty) || (err == nil && len(records) == 0):
		s.errMsg = "no parking data found; check your connection or try again later"
		observability.IncRefresh("empty")
		s.logger.WarnContext(ctx, "catalog refresh returned no records")
	case err != nil:
		s.errMsg = "unable to load parking data: " + err.Error()
		observability.IncRefresh("error")
		s.logger.WarnContext(ctx, "catalog refresh failed", "err", err)
	default:
		s.errMsg = ""
		s.lastUpdated = time.Now()
		observability.IncRefresh("ok")
		s.logger.InfoContext(ctx, "catalog refreshed", "records", len(records))
	}
}

// LoadDetails fetches one record and then its history. A history failure is
// swallowed: the details stay loaded, the history reads as absent.
func (s *Store) LoadDetails(ctx context.Context, id string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	rec, err := s.source.GetByID(ctx, id)
	if err != nil {
		s.mu.Lock()
		s.errMsg = "unable to load parking details"
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.selected = &rec
	s.errMsg = ""
	s.mu.Unlock()

	if ts, err := s.source.GetHistory(ctx, id, model.PeriodWeek, "hour"); err != nil {
		s.logger.WarnContext(ctx, "history load failed, details served without it",
			"id", id, "err", err)
		s.mu.Lock()
		s.history = nil
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		s.history = &ts
		s.mu.Unlock()
	}
	return nil
}

// LoadHistory loads the availability series for one record. It always leaves
// a usable series behind: if even the client's own fallback fails, a
// patterned synthetic series for the same period takes its place.
func (s *Store) LoadHistory(ctx context.Context, id string, period model.Period, interval string) model.TimeSeries {
	ts, err := s.source.GetHistory(ctx, id, period, interval)
	if err != nil {
		s.logger.WarnContext(ctx, "history unavailable, generating patterned series",
			"id", id, "period", string(period), "err", err)
		observability.IncSyntheticSeries("patterned")
		ts = s.synth.Patterned(id, period)
	}

	s.mu.Lock()
	s.history = &ts
	s.mu.Unlock()
	return ts
}

// SetFilters merges a partial update; a present search query is persisted.
func (s *Store) SetFilters(update model.FilterUpdate) {
	s.mu.Lock()
	if update.MinAvailabilityPercent != nil {
		s.filters.MinAvailabilityPercent = *update.MinAvailabilityPercent
	}
	if update.MaxDistanceMeters != nil {
		s.filters.MaxDistanceMeters = *update.MaxDistanceMeters
	}
	if update.SearchQuery != nil {
		s.filters.SearchQuery = *update.SearchQuery
	}
	s.mu.Unlock()

	if update.SearchQuery != nil && s.prefs != nil {
		if err := s.prefs.SaveSearchQuery(*update.SearchQuery); err != nil {
			s.logger.Warn("persist search query failed", "err", err)
		}
	}
}

// UpdateUserPosition records the user's position; distances in the sorted
// view follow on the next read.
func (s *Store) UpdateUserPosition(latitude, longitude float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.UserLocation = &model.GeoPoint{Latitude: latitude, Longitude: longitude}
}

// SortedView recomputes the filtered, sorted catalog on every read.
func (s *Store) SortedView() []model.RankedRecord {
	s.mu.RLock()
	records := make([]model.ParkingRecord, len(s.catalog))
	copy(records, s.catalog)
	filters := s.filters
	s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filters.SearchQuery))

	out := make([]model.RankedRecord, 0, len(records))
	for _, rec := range records {
		if query != "" && !strings.Contains(strings.ToLower(rec.Name), query) {
			continue
		}
		if filters.MinAvailabilityPercent > 0 {
			if rec.Total == 0 {
				continue
			}
			freePct := 100 * float64(rec.Available) / float64(rec.Total)
			if freePct < filters.MinAvailabilityPercent {
				continue
			}
		}

		ranked := model.RankedRecord{ParkingRecord: rec}
		if filters.UserLocation != nil && rec.Location != nil {
			ranked.DistanceMeters = derive.DistanceMeters(
				filters.UserLocation.Latitude, filters.UserLocation.Longitude,
				rec.Location.Latitude, rec.Location.Longitude)
			ranked.HasDistance = true
		}
		if filters.UserLocation != nil && filters.MaxDistanceMeters > 0 {
			if !ranked.HasDistance || ranked.DistanceMeters > filters.MaxDistanceMeters {
				continue
			}
		}
		out = append(out, ranked)
	}

	if filters.UserLocation != nil {
		// Nearest first; records with no known location go last.
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.HasDistance != b.HasDistance {
				return a.HasDistance
			}
			return a.DistanceMeters < b.DistanceMeters
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Available > out[j].Available
		})
	}
	return out
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Loading:      s.loading,
		ErrorMessage: s.errMsg,
		LastUpdated:  s.lastUpdated,
		Filters:      s.filters,
	}
	snap.Catalog = make([]model.ParkingRecord, len(s.catalog))
	copy(snap.Catalog, s.catalog)
	if s.selected != nil {
		rec := *s.selected
		snap.Selected = &rec
	}
	if s.history != nil {
		ts := *s.history
		snap.History = &ts
	}
	return snap
}

// Readiness reports whether at least one refresh has completed.
func (s *Store) Readiness() (bool, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.lastUpdated.IsZero(), s.lastUpdated
}

// StartAutoRefresh launches the periodic refresh timer. Starting while the
// timer runs is a no-op.
func (s *Store) StartAutoRefresh(ctx context.Context) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.stopRefresh != nil {
		return
	}

	tctx, cancel := context.WithCancel(ctx)
	s.stopRefresh = cancel

	go func() {
		ticker := time.NewTicker(s.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-tctx.Done():
				return
			case <-ticker.C:
				s.RefreshCatalog(tctx)
			}
		}
	}()
}

// StopAutoRefresh stops the timer. Stopping an idle store is a no-op.
func (s *Store) StopAutoRefresh() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.stopRefresh == nil {
		return
	}
	s.stopRefresh()
	s.stopRefresh = nil
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
	if v {
		s.errMsg = ""
	}
}
