// Package lod synthesizes the level-of-detail pyramid reported in
// service metadata. Entries follow the standard 256px Web-Mercator
// tiling scheme: resolution halves at each level and scale is derived
// from resolution at a fixed DPI.
package lod

import (
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/geo"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/state"
)

const (
	DPI            = 96
	InchesPerMeter = 39.37

	// fallbackLevel is the zoom whose resolution/scale are reported as
	// the single usable level while the archive has not been
	// inspected yet.
	fallbackLevel = 18
)

// LOD is one zoom level's resolution/scale pairing.
type LOD struct {
	Level      int     `json:"level"`
	Resolution float64 `json:"resolution"`
	Scale      float64 `json:"scale"`
}

func levelEntry(level int) LOD {
	resolution := geo.BaseResolution / float64(uint64(1)<<uint(level))
	return LOD{
		Level:      level,
		Resolution: resolution,
		Scale:      resolution * DPI * InchesPerMeter,
	}
}

// Levels returns the pyramid for the given zoom range, ascending by
// level. Consumers assume increasing level means decreasing
// resolution, so the ordering is load-bearing.
//
// A nil range produces exactly one fallback entry so clients always
// see a usable (if coarse) tiling scheme before the archive has been
// inspected.
func Levels(zr *state.ZoomRange) []LOD {
	if zr == nil {
		fb := levelEntry(fallbackLevel)
		fb.Level = 0
		return []LOD{fb}
	}

	lods := make([]LOD, 0, zr.Max-zr.Min+1)
	for z := zr.Min; z <= zr.Max; z++ {
		lods = append(lods, levelEntry(z))
	}
	return lods
}
