// Package derive holds the pure functions computing per-record metrics.
package derive

import "math"

const earthRadiusMeters = 6371000.0

// OccupancyPercent returns round(100*(total-available)/total), or 0 when the
// total is unknown or zero.
func OccupancyPercent(available, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(total-available) / float64(total)))
}

// RemainingSpots clamps a missing or negative availability count to zero.
func RemainingSpots(available int) int {
	if available < 0 {
		return 0
	}
	return available
}

// DistanceMeters is the great-circle distance between two WGS84 points via
// the haversine formula.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
