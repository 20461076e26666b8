package geo

import "math"

// Spherical Web Mercator (EPSG:3857) constants.
const (
	// EarthRadius is the WGS84 semi-major axis in meters.
	EarthRadius = 6378137.0

	// OriginShift is half the projected world width, i.e. the x
	// coordinate of lon=180.
	OriginShift = math.Pi * EarthRadius

	// TileSize is the pixel dimension of a web map tile.
	TileSize = 256

	// BaseResolution is the level-0 resolution in meters per pixel for
	// 256px tiles.
	BaseResolution = 2 * OriginShift / TileSize

	// WebMercatorWKID is the well-known spatial reference id reported
	// in service metadata.
	WebMercatorWKID = 3857
)

// Point is a position in projected Web Mercator meters.
type Point struct {
	X float64
	Y float64
}

// Project converts a WGS84 lon/lat pair to Web Mercator meters using
// the spherical forward transform. Callers are expected to pass
// coordinates within the valid geographic domain; latitudes at the
// poles are not representable in this projection.
func Project(lon, lat float64) Point {
	x := lon * OriginShift / 180.0
	y := math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * OriginShift / 180.0
	return Point{X: x, Y: y}
}
