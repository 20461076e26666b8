// Package tile holds the public tile address and its translation into
// the archive's native addressing convention.
package tile

import "fmt"

// Scheme selects the row convention of the backing archive. It is a
// fixed configuration choice, never inferred per request.
type Scheme int

const (
	// SchemeXYZ is the default top-origin convention. Translation is a
	// pure reordering: the public level/row/col path maps to the
	// archive's level/col/row storage order.
	SchemeXYZ Scheme = iota

	// SchemeTMS additionally flips the row for archives stored with a
	// bottom-origin row index.
	SchemeTMS
)

func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "", "xyz":
		return SchemeXYZ, nil
	case "tms":
		return SchemeTMS, nil
	default:
		return SchemeXYZ, fmt.Errorf("unknown tile scheme %q", name)
	}
}

func (s Scheme) String() string {
	if s == SchemeTMS {
		return "tms"
	}
	return "xyz"
}

// Address is an inbound tile address in the public ImageServer path
// convention: tile/{level}/{row}/{col}. All fields are non-negative;
// out-of-range values are not rejected here, the archive lookup
// reports them as not found.
type Address struct {
	Level int
	Row   int
	Col   int
}

// Native is the archive-side address in its stored level/col/row
// order.
type Native struct {
	Level int
	Col   int
	Row   int
}

// Native translates the public address into the archive's convention.
func (a Address) Native(s Scheme) Native {
	row := a.Row
	if s == SchemeTMS {
		row = FlipRow(a.Level, row)
	}
	return Native{Level: a.Level, Col: a.Col, Row: row}
}

// FlipRow converts between top-origin and bottom-origin row indices at
// the given level. It is its own inverse.
func FlipRow(level, row int) int {
	return (1 << uint(level)) - 1 - row
}

func (n Native) String() string {
	return fmt.Sprintf("%d/%d/%d", n.Level, n.Col, n.Row)
}
