package state

import (
	"sync/atomic"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/geo"
)

// Extent is the service's rectangular extent in projected Web Mercator
// meters.
type Extent struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
	WKID int
}

// ZoomRange is the archive's declared zoom span, Min <= Max.
type ZoomRange struct {
	Min int
	Max int
}

// Inspection is the immutable result of one archive-metadata read.
// Extent and Zoom always travel together so that a reader can never
// observe one field from a newer inspection and the other from an
// older one.
type Inspection struct {
	Extent *Extent
	Zoom   *ZoomRange
}

// Cell holds the current Inspection for the configured archive. There
// is a single writer (the startup inspection) and many concurrent
// readers; replacement is one atomic pointer swap.
type Cell struct {
	current atomic.Pointer[Inspection]
}

func NewCell() *Cell {
	c := &Cell{}
	c.current.Store(&Inspection{})
	return c
}

// Replace installs a new inspection result. A nil inspection is
// ignored so a failed re-inspection can never clear previously
// resolved state.
func (c *Cell) Replace(ins *Inspection) {
	if ins == nil {
		return
	}
	c.current.Store(ins)
}

// Current returns the latest inspection. The result is never nil; its
// Extent and Zoom fields are nil until the first successful
// inspection.
func (c *Cell) Current() *Inspection {
	return c.current.Load()
}

// ResolveBounds projects raw geographic bounds [minLon, minLat,
// maxLon, maxLat] into a service extent and combines it with the
// archive's zoom range into one Inspection. It returns nil when
// bounds are absent, so callers naturally skip Replace on a failed
// inspection.
func ResolveBounds(bounds *[4]float64, zoom *ZoomRange) *Inspection {
	if bounds == nil {
		return nil
	}
	min := geo.Project(bounds[0], bounds[1])
	max := geo.Project(bounds[2], bounds[3])
	return &Inspection{
		Extent: &Extent{
			XMin: min.X,
			YMin: min.Y,
			XMax: max.X,
			YMax: max.Y,
			WKID: geo.WebMercatorWKID,
		},
		Zoom: zoom,
	}
}
