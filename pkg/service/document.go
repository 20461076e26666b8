// Package service composes the ImageServer service-description
// document. The document is assembled fresh on every request so it
// always reflects the latest archive inspection, including the
// degraded state before any inspection has completed.
package service

import (
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/geo"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/lod"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/state"
)

const (
	currentVersion = 10.81
	pixelType      = "F32"
	bandCount      = 1
	capabilities   = "Image,Metadata"
)

type SpatialReference struct {
	WKID       int `json:"wkid"`
	LatestWKID int `json:"latestWkid"`
}

var webMercator = SpatialReference{WKID: 102100, LatestWKID: geo.WebMercatorWKID}

// Extent is the service extent document. A nil *Extent marshals to
// JSON null, which is exactly the degraded pre-inspection shape.
type Extent struct {
	XMin             float64          `json:"xmin"`
	YMin             float64          `json:"ymin"`
	XMax             float64          `json:"xmax"`
	YMax             float64          `json:"ymax"`
	SpatialReference SpatialReference `json:"spatialReference"`
}

type Origin struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type TileInfo struct {
	Rows             int              `json:"rows"`
	Cols             int              `json:"cols"`
	DPI              int              `json:"dpi"`
	Format           string           `json:"format"`
	Origin           Origin           `json:"origin"`
	SpatialReference SpatialReference `json:"spatialReference"`
	LODs             []lod.LOD        `json:"lods"`
}

// Document is the ImageServer service description.
type Document struct {
	CurrentVersion          float64          `json:"currentVersion"`
	ServiceDescription      string           `json:"serviceDescription"`
	Name                    string           `json:"name"`
	Description             string           `json:"description"`
	Extent                  *Extent          `json:"extent"`
	InitialExtent           *Extent          `json:"initialExtent"`
	FullExtent              *Extent          `json:"fullExtent"`
	PixelSizeX              float64          `json:"pixelSizeX"`
	PixelSizeY              float64          `json:"pixelSizeY"`
	BandCount               int              `json:"bandCount"`
	PixelType               string           `json:"pixelType"`
	MinValues               []float64        `json:"minValues"`
	MaxValues               []float64        `json:"maxValues"`
	NoDataValue             float64          `json:"noDataValue"`
	SingleFusedMapCache     bool             `json:"singleFusedMapCache"`
	Capabilities            string           `json:"capabilities"`
	CopyrightText           string           `json:"copyrightText"`
	SpatialReference        SpatialReference `json:"spatialReference"`
	TileInfo                TileInfo         `json:"tileInfo"`
	MinScale                float64          `json:"minScale"`
	MaxScale                float64          `json:"maxScale"`
	AllowRasterFunction     bool             `json:"allowRasterFunction"`
	SupportsStatistics      bool             `json:"supportsStatistics"`
	SupportsAdvancedQueries bool             `json:"supportsAdvancedQueries"`
}

// Config is the fixed, start-time service description input.
type Config struct {
	Name         string
	Description  string
	Copyright    string
	MinElevation float64
	MaxElevation float64
	NoDataValue  float64
}

// Synthesizer builds documents from the inspection state cell.
type Synthesizer struct {
	cfg  Config
	cell *state.Cell
}

func NewSynthesizer(cfg Config, cell *state.Cell) *Synthesizer {
	return &Synthesizer{cfg: cfg, cell: cell}
}

// Describe composes the full service description from the current
// inspection state. Before the first successful inspection the
// extent fields are null and the LOD table holds the single fallback
// entry.
func (s *Synthesizer) Describe() *Document {
	ins := s.cell.Current()

	var extent *Extent
	if e := ins.Extent; e != nil {
		extent = &Extent{
			XMin:             e.XMin,
			YMin:             e.YMin,
			XMax:             e.XMax,
			YMax:             e.YMax,
			SpatialReference: webMercator,
		}
	}

	lods := lod.Levels(ins.Zoom)

	return &Document{
		CurrentVersion:     currentVersion,
		ServiceDescription: s.cfg.Description,
		Name:               s.cfg.Name,
		Description:        s.cfg.Description,
		Extent:             extent,
		InitialExtent:      extent,
		FullExtent:         extent,
		PixelSizeX:         lods[len(lods)-1].Resolution,
		PixelSizeY:         lods[len(lods)-1].Resolution,
		BandCount:          bandCount,
		PixelType:          pixelType,
		MinValues:          []float64{s.cfg.MinElevation},
		MaxValues:          []float64{s.cfg.MaxElevation},
		NoDataValue:        s.cfg.NoDataValue,
		SingleFusedMapCache: true,
		Capabilities:       capabilities,
		CopyrightText:      s.cfg.Copyright,
		SpatialReference:   webMercator,
		TileInfo: TileInfo{
			Rows:   geo.TileSize,
			Cols:   geo.TileSize,
			DPI:    lod.DPI,
			Format: "LERC",
			Origin: Origin{
				X: -geo.OriginShift,
				Y: geo.OriginShift,
			},
			SpatialReference: webMercator,
			LODs:             lods,
		},
		MinScale: lods[0].Scale,
		MaxScale: lods[len(lods)-1].Scale,
	}
}

// CatalogEntry is one service in the catalog listing.
type CatalogEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Catalog is the services directory document.
type Catalog struct {
	CurrentVersion float64        `json:"currentVersion"`
	Folders        []string       `json:"folders"`
	Services       []CatalogEntry `json:"services"`
}

// DescribeCatalog lists the single configured image service.
func (s *Synthesizer) DescribeCatalog() *Catalog {
	return &Catalog{
		CurrentVersion: currentVersion,
		Folders:        []string{},
		Services: []CatalogEntry{
			{Name: s.cfg.Name, Type: "ImageServer"},
		},
	}
}
