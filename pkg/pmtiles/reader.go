package pmtiles

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Reader provides tile lookups against a PMTiles v3 archive through an
// io.ReaderAt, so the same code path serves local files and ranged
// remote reads. The root directory is parsed eagerly; leaf directories
// are resolved lazily and memoized.
type Reader struct {
	src    io.ReaderAt
	closer io.Closer
	header Header

	root []Entry

	mu     sync.Mutex
	leaves map[uint64][]Entry // leaf dir offset -> parsed entries
}

// NewReader parses the header and root directory of an archive.
func NewReader(src io.ReaderAt) (*Reader, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := src.ReadAt(headerBuf, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	header, err := DeserializeHeader(headerBuf)
	if err != nil {
		return nil, err
	}

	// directories are always gunzipped below, so refuse anything else
	// here rather than surfacing an opaque gzip error later
	if header.InternalCompression != CompressionGzip {
		return nil, fmt.Errorf("unsupported internal compression %d, only gzip directories are supported", header.InternalCompression)
	}

	rootData := make([]byte, header.RootDirLength)
	if _, err := src.ReadAt(rootData, int64(header.RootDirOffset)); err != nil {
		return nil, fmt.Errorf("reading root directory: %w", err)
	}

	root, err := DeserializeDirectory(rootData)
	if err != nil {
		return nil, fmt.Errorf("parsing root directory: %w", err)
	}

	r := &Reader{
		src:    src,
		header: header,
		root:   root,
		leaves: make(map[uint64][]Entry),
	}
	if c, ok := src.(io.Closer); ok {
		r.closer = c
	}
	return r, nil
}

// Open opens a local archive file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Header returns the parsed archive header.
func (r *Reader) Header() Header {
	return r.header
}

// Bounds returns the archive's declared geographic bounds as
// [minLon, minLat, maxLon, maxLat].
func (r *Reader) Bounds() [4]float64 {
	return [4]float64{r.header.MinLon, r.header.MinLat, r.header.MaxLon, r.header.MaxLat}
}

// ZoomRange returns the archive's declared min and max zoom.
func (r *Reader) ZoomRange() (min, max int) {
	return int(r.header.MinZoom), int(r.header.MaxZoom)
}

// ReadTile returns the raw stored bytes for z/x/y, or nil with no
// error when the archive has no tile at that address. Payload bytes
// are returned exactly as stored; the archive's tile compression is
// the client's concern.
func (r *Reader) ReadTile(z, x, y int) ([]byte, error) {
	id := TileID(z, x, y)

	entry, err := r.findEntry(r.root, id, 0)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	// A run-length entry deduplicates identical tiles: every id in the
	// run resolves to the same data block.
	data := make([]byte, entry.Length)
	absOffset := int64(r.header.TileDataOffset + entry.Offset)
	if _, err := r.src.ReadAt(data, absOffset); err != nil {
		return nil, fmt.Errorf("reading tile %d/%d/%d: %w", z, x, y, err)
	}
	return data, nil
}

// findEntry locates the directory entry covering a tile ID, following
// at most one level of leaf directories per the v3 spec. depth guards
// against malformed archives with leaf cycles.
func (r *Reader) findEntry(dir []Entry, id uint64, depth int) (*Entry, error) {
	if depth > 3 {
		return nil, fmt.Errorf("directory nesting too deep for tile id %d", id)
	}

	// Binary search for the last entry with TileID <= id.
	lo, hi := 0, len(dir)-1
	found := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if dir[mid].TileID <= id {
			found = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if found < 0 {
		return nil, nil
	}

	e := dir[found]
	if e.RunLength == 0 {
		// Leaf directory pointer.
		leaf, err := r.leafEntries(e)
		if err != nil {
			return nil, err
		}
		return r.findEntry(leaf, id, depth+1)
	}

	if id < e.TileID || id >= e.TileID+uint64(e.RunLength) {
		return nil, nil
	}
	return &e, nil
}

func (r *Reader) leafEntries(e Entry) ([]Entry, error) {
	r.mu.Lock()
	cached, ok := r.leaves[e.Offset]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	data := make([]byte, e.Length)
	absOffset := int64(r.header.LeafDirOffset + e.Offset)
	if _, err := r.src.ReadAt(data, absOffset); err != nil {
		return nil, fmt.Errorf("reading leaf directory at %d: %w", absOffset, err)
	}

	entries, err := DeserializeDirectory(data)
	if err != nil {
		return nil, fmt.Errorf("parsing leaf directory: %w", err)
	}

	r.mu.Lock()
	r.leaves[e.Offset] = entries
	r.mu.Unlock()
	return entries, nil
}

// Close releases the underlying source if it is closeable.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
