// Package fetch retrieves tile payloads for translated native
// addresses, either directly from an in-process archive or by relaying
// to a separate tile-serving process.
package fetch

import (
	"context"
	"time"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/archive"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/tile"
)

// Payload is the fetched tile body plus its content type. Direct
// lookups carry the archive's own content type; relayed lookups are
// always served as opaque bytes.
type Payload struct {
	Body        []byte
	ContentType string
}

// Result discriminates the non-error outcomes of a fetch. A transport
// or archive failure is reported through the error return instead;
// timeouts surface as context.DeadlineExceeded.
//
// The cache fields report what the relay's payload cache did for this
// fetch; direct lookups leave them zero.
type Result struct {
	NotFound bool
	CacheHit bool
	Payload  *Payload

	CacheLookup      time.Duration
	CacheSet         time.Duration
	CacheLookupError bool
}

type Fetcher interface {
	Fetch(ctx context.Context, addr tile.Native) (*Result, error)
}

// Direct reads tiles straight out of the configured archive.
type Direct struct {
	store archive.Store
	name  string
}

func NewDirect(store archive.Store, archiveName string) *Direct {
	return &Direct{store: store, name: archiveName}
}

func (d *Direct) Fetch(ctx context.Context, addr tile.Native) (*Result, error) {
	data, err := d.store.ReadTile(d.name, addr)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &Result{NotFound: true}, nil
	}
	return &Result{
		Payload: &Payload{
			Body:        data.Body,
			ContentType: data.ContentType,
		},
	}, nil
}
