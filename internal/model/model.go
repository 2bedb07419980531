// Package model defines the domain types shared across the service.
package model

import (
	"fmt"
	"time"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// ParkingRecord is one facility's current state as served by the open-data
// API. OccupancyPercent and RemainingSpots are derived from the raw counts on
// every fetch and never stored authoritatively.
type ParkingRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status,omitempty"`
	Available int       `json:"availableSpots"`
	Total     int       `json:"totalSpots"`
	Location  *GeoPoint `json:"location,omitempty"`

	OccupancyPercent int `json:"occupancyPercent"`
	RemainingSpots   int `json:"remainingSpots"`
}

// RankedRecord is a catalog record as it appears in the sorted view, with an
// optional distance annotation when a user position is known.
type RankedRecord struct {
	ParkingRecord
	DistanceMeters float64 `json:"distanceMeters,omitempty"`
	HasDistance    bool    `json:"-"`
}

// Provenance marks whether a time series came from the remote source or was
// fabricated by the synthetic generator.
type Provenance string

const (
	ProvenanceReal      Provenance = "real"
	ProvenanceSynthetic Provenance = "synthetic"
)

// TimeSeries is the canonical history shape: one attribute of one entity as
// parallel timestamp and value slices. The multi-attribute variant seen in
// some NGSI deployments is normalized to this at the client boundary.
type TimeSeries struct {
	AttrName   string      `json:"attrName"`
	EntityID   string      `json:"entityId"`
	Provenance Provenance  `json:"provenance"`
	Index      []time.Time `json:"index"`
	Values     []float64   `json:"values"`
}

func (ts TimeSeries) Len() int { return len(ts.Index) }

// Period selects how far back a history window reaches.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return Period(s), nil
	case "":
		return PeriodWeek, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Days returns the number of whole days the period spans when generating
// hourly synthetic data.
func (p Period) Days() int {
	switch p {
	case PeriodDay:
		return 1
	case PeriodMonth:
		return 30
	default:
		return 7
	}
}

// WindowFrom returns the start of the history window ending at now. A month
// is a calendar month, not 30 days, matching the upstream API contract.
func (p Period) WindowFrom(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -1)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// FilterState drives the sorted catalog view. Zero values mean "no filter".
// SearchQuery is the only field persisted across sessions.
type FilterState struct {
	MinAvailabilityPercent float64   `json:"minAvailabilityPercent"`
	MaxDistanceMeters      float64   `json:"maxDistanceMeters"`
	UserLocation           *GeoPoint `json:"userLocation,omitempty"`
	SearchQuery            string    `json:"searchQuery"`
}

// FilterUpdate is a partial FilterState merge; nil fields are left untouched.
type FilterUpdate struct {
	MinAvailabilityPercent *float64 `json:"minAvailabilityPercent,omitempty"`
	MaxDistanceMeters      *float64 `json:"maxDistanceMeters,omitempty"`
	SearchQuery            *string  `json:"searchQuery,omitempty"`
}
