// Package pmtiles reads PMTiles v3 archives: a single-file tile store
// indexed by (zoom, col, row). Only the read path is implemented;
// serialization helpers exist to build fixtures in tests.
package pmtiles

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// HeaderSize is the fixed v3 header length in bytes.
	HeaderSize = 127

	magic = "PMTiles"

	// Internal compression codes for directories.
	CompressionUnknown = 0
	CompressionNone    = 1
	CompressionGzip    = 2

	// Tile type codes.
	TileTypeUnknown = 0
	TileTypeMVT     = 1
	TileTypePNG     = 2
	TileTypeJPEG    = 3
	TileTypeWebP    = 4
)

// Header is the parsed 127-byte PMTiles v3 header.
type Header struct {
	RootDirOffset       uint64
	RootDirLength       uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirOffset       uint64
	LeafDirLength       uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	NumAddressedTiles   uint64
	NumTileEntries      uint64
	NumTileContents     uint64
	Clustered           bool
	InternalCompression uint8
	TileCompression     uint8
	TileType            uint8
	MinZoom             uint8
	MaxZoom             uint8
	MinLon              float64
	MinLat              float64
	MaxLon              float64
	MaxLat              float64
	CenterZoom          uint8
	CenterLon           float64
	CenterLat           float64
}

// ContentType maps the archive's tile type to an HTTP content type.
// Elevation archives typically carry TileTypeUnknown and are served as
// opaque bytes.
func (h Header) ContentType() string {
	switch h.TileType {
	case TileTypeMVT:
		return "application/vnd.mapbox-vector-tile"
	case TileTypePNG:
		return "image/png"
	case TileTypeJPEG:
		return "image/jpeg"
	case TileTypeWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// DeserializeHeader parses a 127-byte v3 header.
func DeserializeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("header too short: %d bytes", len(buf))
	}
	if string(buf[0:7]) != magic {
		return h, fmt.Errorf("invalid magic number %q", buf[0:7])
	}
	if buf[7] != 3 {
		return h, fmt.Errorf("unsupported pmtiles version %d", buf[7])
	}

	h.RootDirOffset = binary.LittleEndian.Uint64(buf[8:16])
	h.RootDirLength = binary.LittleEndian.Uint64(buf[16:24])
	h.MetadataOffset = binary.LittleEndian.Uint64(buf[24:32])
	h.MetadataLength = binary.LittleEndian.Uint64(buf[32:40])
	h.LeafDirOffset = binary.LittleEndian.Uint64(buf[40:48])
	h.LeafDirLength = binary.LittleEndian.Uint64(buf[48:56])
	h.TileDataOffset = binary.LittleEndian.Uint64(buf[56:64])
	h.TileDataLength = binary.LittleEndian.Uint64(buf[64:72])
	h.NumAddressedTiles = binary.LittleEndian.Uint64(buf[72:80])
	h.NumTileEntries = binary.LittleEndian.Uint64(buf[80:88])
	h.NumTileContents = binary.LittleEndian.Uint64(buf[88:96])

	h.Clustered = buf[96] == 1
	h.InternalCompression = buf[97]
	h.TileCompression = buf[98]
	h.TileType = buf[99]
	h.MinZoom = buf[100]
	h.MaxZoom = buf[101]

	h.MinLon = e7ToDegrees(buf[102:106])
	h.MinLat = e7ToDegrees(buf[106:110])
	h.MaxLon = e7ToDegrees(buf[110:114])
	h.MaxLat = e7ToDegrees(buf[114:118])

	h.CenterZoom = buf[118]
	h.CenterLon = e7ToDegrees(buf[119:123])
	h.CenterLat = e7ToDegrees(buf[123:127])

	return h, nil
}

// Serialize writes the header back to its 127-byte wire form.
func (h Header) Serialize() []byte {
	buf := make([]byte, HeaderSize)

	copy(buf[0:7], magic)
	buf[7] = 3

	binary.LittleEndian.PutUint64(buf[8:16], h.RootDirOffset)
	binary.LittleEndian.PutUint64(buf[16:24], h.RootDirLength)
	binary.LittleEndian.PutUint64(buf[24:32], h.MetadataOffset)
	binary.LittleEndian.PutUint64(buf[32:40], h.MetadataLength)
	binary.LittleEndian.PutUint64(buf[40:48], h.LeafDirOffset)
	binary.LittleEndian.PutUint64(buf[48:56], h.LeafDirLength)
	binary.LittleEndian.PutUint64(buf[56:64], h.TileDataOffset)
	binary.LittleEndian.PutUint64(buf[64:72], h.TileDataLength)
	binary.LittleEndian.PutUint64(buf[72:80], h.NumAddressedTiles)
	binary.LittleEndian.PutUint64(buf[80:88], h.NumTileEntries)
	binary.LittleEndian.PutUint64(buf[88:96], h.NumTileContents)

	if h.Clustered {
		buf[96] = 1
	}
	buf[97] = h.InternalCompression
	buf[98] = h.TileCompression
	buf[99] = h.TileType
	buf[100] = h.MinZoom
	buf[101] = h.MaxZoom

	putE7(buf[102:106], h.MinLon)
	putE7(buf[106:110], h.MinLat)
	putE7(buf[110:114], h.MaxLon)
	putE7(buf[114:118], h.MaxLat)

	buf[118] = h.CenterZoom
	putE7(buf[119:123], h.CenterLon)
	putE7(buf[123:127], h.CenterLat)

	return buf
}

// Bounds in the header are stored as E7: degrees * 1e7 as a
// little-endian int32.
func e7ToDegrees(b []byte) float64 {
	return float64(int32(binary.LittleEndian.Uint32(b))) / 1e7
}

func putE7(b []byte, degrees float64) {
	binary.LittleEndian.PutUint32(b, uint32(int32(math.Round(degrees*1e7))))
}
