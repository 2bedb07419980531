package opendata

import (
	"github.com/judev34/parking-montpellier-app/internal/derive"
	"github.com/judev34/parking-montpellier-app/internal/model"
)

// NGSI v2 wraps every entity field in a {type, value, metadata} envelope.
// The wire shapes below are the only ones this client accepts; anything else
// is rejected as malformed at the boundary instead of being guessed at.

type textAttribute struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type numberAttribute struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type geoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // longitude, latitude
}

type locationAttribute struct {
	Type  string       `json:"type"`
	Value geoJSONPoint `json:"value"`
}

type apiParking struct {
	ID                  string             `json:"id"`
	Type                string             `json:"type"`
	Name                *textAttribute     `json:"name"`
	Status              *textAttribute     `json:"status"`
	AvailableSpotNumber *numberAttribute   `json:"availableSpotNumber"`
	TotalSpotNumber     *numberAttribute   `json:"totalSpotNumber"`
	Location            *locationAttribute `json:"location"`
}

// toRecord flattens the envelopes and computes the derived fields. Missing
// counts read as zero, matching the upstream convention.
func (p apiParking) toRecord() model.ParkingRecord {
	rec := model.ParkingRecord{ID: p.ID}
	if p.Name != nil {
		rec.Name = p.Name.Value
	}
	if p.Status != nil {
		rec.Status = p.Status.Value
	}
	if p.AvailableSpotNumber != nil {
		rec.Available = int(p.AvailableSpotNumber.Value)
	}
	if p.TotalSpotNumber != nil {
		rec.Total = int(p.TotalSpotNumber.Value)
	}
	if p.Location != nil && len(p.Location.Value.Coordinates) >= 2 {
		rec.Location = &model.GeoPoint{
			Longitude: p.Location.Value.Coordinates[0],
			Latitude:  p.Location.Value.Coordinates[1],
		}
	}

	rec.OccupancyPercent = derive.OccupancyPercent(rec.Available, rec.Total)
	rec.RemainingSpots = derive.RemainingSpots(rec.Available)
	return rec
}

// singleSeries is the time-series endpoint's usual shape: one attribute,
// parallel index and values arrays.
type singleSeries struct {
	AttrName string    `json:"attrName"`
	EntityID string    `json:"entityId"`
	Index    []string  `json:"index"`
	Values   []float64 `json:"values"`
}

// multiAttrSeries is the alternate QuantumLeap-style shape: a shared index
// with one value vector per named attribute.
type multiAttrSeries struct {
	EntityID   string   `json:"entityId"`
	Index      []string `json:"index"`
	Attributes []struct {
		AttrName string    `json:"attrName"`
		Values   []float64 `json:"values"`
	} `json:"attributes"`
}
