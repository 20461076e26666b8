package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectOrigin(t *testing.T) {
	p := Project(0, 0)
	assert.InDelta(t, 0, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)
}

func TestProjectAntimeridian(t *testing.T) {
	for _, lat := range []float64{-60, -33.87, 0, 33.87, 60} {
		p := Project(180, lat)
		assert.InDelta(t, 20037508.342789244, p.X, 1e-6, "x at lon=180 must be the origin shift for lat %f", lat)
	}
}

func TestProjectSymmetry(t *testing.T) {
	p := Project(72.5, 34.0)
	q := Project(-72.5, -34.0)
	// the log/tan evaluation is not bit-symmetric, so compare with a
	// tolerance proportional to coordinates in the millions of meters
	assert.InEpsilon(t, p.X, -q.X, 1e-12)
	assert.InEpsilon(t, p.Y, -q.Y, 1e-12)
}

func TestProjectMonotonicLatitude(t *testing.T) {
	prev := Project(0, -80).Y
	for lat := -79.0; lat <= 80; lat += 1.0 {
		y := Project(0, lat).Y
		assert.Greater(t, y, prev, "y must increase with latitude")
		prev = y
	}
}
