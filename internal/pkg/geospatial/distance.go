// Package geospatial holds the small amount of spherical and Web Mercator
// math the map needs.
package geospatial

import "math"

const (
	earthRadiusMeters = 6371000.0
	metersPerDegree   = 111320.0
)

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	sinLat := math.Sin(toRad(lat2-lat1) / 2)
	sinLng := math.Sin(toRad(lng2-lng1) / 2)

	a := sinLat*sinLat + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*sinLng*sinLng
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// BoundingBox returns the box enclosing a circle of radiusMeters around a
// point. Latitudes are clamped to the poles.
func BoundingBox(lat, lng, radiusMeters float64) (minLat, minLng, maxLat, maxLng float64) {
	latDelta := radiusMeters / metersPerDegree
	lngDelta := 180.0
	if c := math.Cos(toRad(lat)); c > 1e-9 {
		lngDelta = math.Min(180, radiusMeters/(metersPerDegree*c))
	}
	return math.Max(-90, lat-latDelta), lng - lngDelta, math.Min(90, lat+latDelta), lng + lngDelta
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
