package geo

import (
	"math"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
)

const (
	// EarthRadiusMeters is the mean Earth radius of the spherical model.
	EarthRadiusMeters = 6_371_000.0

	// octantWidth is the angular width of one compass octant in degrees.
	octantWidth = 45.0

	degreesPerCircle = 360.0
)

// octants lists the eight compass directions in clockwise order from north.
//
//nolint:gochecknoglobals // Static lookup table.
var octants = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// DistanceMeters returns the haversine great-circle distance between a and b.
// The result is symmetric in its arguments. When either coordinate is unknown
// (zero sentinel or out of range), it returns 0.
func DistanceMeters(a, b alert.Coordinate) float64 {
	if !a.IsUsable() || !b.IsUsable() {
		return 0
	}

	var (
		lat1 = radians(a.Latitude)
		lat2 = radians(b.Latitude)
		dLat = radians(b.Latitude - a.Latitude)
		dLon = radians(b.Longitude - a.Longitude)
	)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// InitialBearingDegrees returns the forward azimuth from a to b in [0, 360).
// By convention it returns 0 when a equals b or either coordinate is unknown.
func InitialBearingDegrees(a, b alert.Coordinate) float64 {
	if !a.IsUsable() || !b.IsUsable() || a == b {
		return 0
	}

	var (
		lat1 = radians(a.Latitude)
		lat2 = radians(b.Latitude)
		dLon = radians(b.Longitude - a.Longitude)
	)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	bearing := degrees(math.Atan2(y, x))

	// Normalize atan2's (-180, 180] range into [0, 360).
	bearing = math.Mod(bearing+degreesPerCircle, degreesPerCircle)

	return bearing
}

// CompassOctant maps a bearing in degrees to one of the eight compass
// directions. Rounding is half-away-from-zero, so a bearing of exactly 22.5
// resolves to NE.
func CompassOctant(bearing float64) string {
	bearing = math.Mod(bearing, degreesPerCircle)
	if bearing < 0 {
		bearing += degreesPerCircle
	}

	index := int(math.Round(bearing/octantWidth)) % len(octants)

	return octants[index]
}

// radians converts degrees to radians.
func radians(d float64) float64 {
	return d * math.Pi / 180
}

// degrees converts radians to degrees.
func degrees(r float64) float64 {
	return r * 180 / math.Pi
}
