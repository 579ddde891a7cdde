package world

import (
	"bytes"
	"errors"
	"fmt"
)

// Unclaimed is the cell value reserved for cells without an owner.
const Unclaimed = 255

// PlayerID identifies a player. Grid cells can only reference ids 0-254.
type PlayerID int32

var ErrGridSize = errors.New("world: grid size mismatch")

// Grid is an immutable W×H ownership matrix stored row-major, one byte per
// cell.
type Grid struct {
	width  int
	height int
	cells  []byte
}

// NewGrid wraps cells as a width×height grid. The grid takes ownership of
// cells; callers must not modify the slice afterwards.
func NewGrid(width, height int, cells []byte) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrGridSize, width, height)
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("%w: have %d cells, want %d", ErrGridSize, len(cells), width*height)
	}
	return &Grid{width: width, height: height, cells: cells}, nil
}

// EmptyGrid returns a grid with every cell unclaimed.
func EmptyGrid(width, height int) *Grid {
	cells := bytes.Repeat([]byte{Unclaimed}, width*height)
	return &Grid{width: width, height: height, cells: cells}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }
func (g *Grid) Len() int    { return len(g.cells) }

// Owner reports the owner of cell (x, y). ok is false for unclaimed cells
// and for coordinates outside the grid.
func (g *Grid) Owner(x, y int) (id PlayerID, ok bool) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return 0, false
	}
	return g.OwnerAt(y*g.width + x)
}

// OwnerAt is Owner addressed by row-major index.
func (g *Grid) OwnerAt(i int) (PlayerID, bool) {
	v := g.cells[i]
	if v == Unclaimed {
		return 0, false
	}
	return PlayerID(v), true
}

// Cells returns a copy of the raw row-major cell bytes.
func (g *Grid) Cells() []byte {
	return append([]byte(nil), g.cells...)
}

// Equal reports whether both grids have the same size and owners.
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.width == o.width && g.height == o.height && bytes.Equal(g.cells, o.cells)
}

// With returns a copy of g with cell (x, y) set to id. Used by producers
// that build successive frames; the receiver is left untouched.
func (g *Grid) With(x, y int, id PlayerID, claimed bool) *Grid {
	cells := g.Cells()
	v := byte(Unclaimed)
	if claimed {
		v = byte(id)
	}
	cells[y*g.width+x] = v
	return &Grid{width: g.width, height: g.height, cells: cells}
}
