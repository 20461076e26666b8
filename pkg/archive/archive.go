// Package archive resolves named tile archives and reads tiles out of
// them. An archive name maps to a .pmtiles file under a base directory
// or an S3 prefix; open readers are shared across requests through a
// TTL cache so the per-request open cost from the reference behavior
// becomes a cache hit without changing observable semantics.
package archive

import (
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/pmtiles"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/tile"
)

const (
	// handleTTL bounds how long an open reader is reused. Archive
	// content changes become visible after at most this interval.
	handleTTL = 5 * time.Minute

	maxOpenHandles = 16
)

// Info is the archive's declared spatial metadata.
type Info struct {
	Bounds  [4]float64 // minLon, minLat, maxLon, maxLat
	MinZoom int
	MaxZoom int
}

// TileData is a raw tile payload plus the content headers the archive
// reports for it. The payload bytes are never inspected or transcoded
// here.
type TileData struct {
	Body        []byte
	ContentType string
}

// Store opens archives by name and reads tiles at native addresses.
type Store interface {
	// Info returns the named archive's declared bounds and zoom range.
	Info(name string) (*Info, error)

	// ReadTile returns the payload at the native address, or nil with
	// no error when the archive holds no tile there.
	ReadTile(name string, addr tile.Native) (*TileData, error)

	// HealthCheck verifies the store can open its configured archive.
	HealthCheck() error
}

// OpenError reports that a named archive could not be opened or read.
type OpenError struct {
	Name string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("archive %q: %s", e.Name, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// opener produces a pmtiles reader for a named archive.
type opener interface {
	open(name string) (*pmtiles.Reader, error)
}

// store implements Store over any opener with a shared handle cache.
type store struct {
	opener  opener
	handles *ccache.Cache[*pmtiles.Reader]

	// healthName is the archive checked by HealthCheck.
	healthName string
}

func newStore(o opener, healthName string) *store {
	return &store{
		opener: o,
		handles: ccache.New(ccache.Configure[*pmtiles.Reader]().
			MaxSize(maxOpenHandles).
			ItemsToPrune(1).
			OnDelete(func(item *ccache.Item[*pmtiles.Reader]) {
				item.Value().Close()
			})),
		healthName: healthName,
	}
}

func (s *store) reader(name string) (*pmtiles.Reader, error) {
	item, err := s.handles.Fetch(name, handleTTL, func() (*pmtiles.Reader, error) {
		return s.opener.open(name)
	})
	if err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}
	return item.Value(), nil
}

func (s *store) Info(name string) (*Info, error) {
	r, err := s.reader(name)
	if err != nil {
		return nil, err
	}
	min, max := r.ZoomRange()
	return &Info{
		Bounds:  r.Bounds(),
		MinZoom: min,
		MaxZoom: max,
	}, nil
}

func (s *store) ReadTile(name string, addr tile.Native) (*TileData, error) {
	r, err := s.reader(name)
	if err != nil {
		return nil, err
	}

	body, err := r.ReadTile(addr.Level, addr.Col, addr.Row)
	if err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}
	if body == nil {
		return nil, nil
	}

	return &TileData{
		Body:        body,
		ContentType: r.Header().ContentType(),
	}, nil
}

func (s *store) HealthCheck() error {
	_, err := s.Info(s.healthName)
	return err
}
