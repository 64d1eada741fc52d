package geospatial

import "math"

// TileSize is the pixel width of a zoom-0 world.
const TileSize = 256.0

const maxMercatorLat = 85.05112878

// Project converts a coordinate to Web Mercator world pixels at zoom.
func Project(lat, lng float64, zoom int) (x, y float64) {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	scale := TileSize * math.Exp2(float64(zoom))

	x = (lng + 180) / 360 * scale
	sin := math.Sin(toRad(lat))
	y = (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * scale
	return x, y
}

// ZoomForBounds returns the largest zoom at which the box fits in a
// viewport of widthPx by heightPx, capped at maxZoom.
func ZoomForBounds(minLat, minLng, maxLat, maxLng float64, widthPx, heightPx float64, maxZoom int) int {
	for z := maxZoom; z > 0; z-- {
		x1, y1 := Project(maxLat, minLng, z)
		x2, y2 := Project(minLat, maxLng, z)
		if math.Abs(x2-x1) <= widthPx && math.Abs(y2-y1) <= heightPx {
			return z
		}
	}
	return 0
}
