// Package geo provides great-circle distance computation for the
// geofence and impossible-travel rules.
package geo

import (
	"math"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the great-circle distance in kilometers between two
// points using the haversine formula. It is a total function: inputs
// outside valid latitude/longitude ranges produce a best-effort result
// rather than an error, since upstream station coordinates are trusted
// operational telemetry.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(h))

	return earthRadiusKm * c
}
