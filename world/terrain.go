package world

import "fmt"

// RGB is an 8-bit colour triple.
type RGB struct {
	R, G, B uint8
}

// TerrainMap is the static per-cell colour map of the world.
type TerrainMap struct {
	width  int
	height int
	colors []RGB
}

// NewTerrainMap wraps colors (row-major, width×height) as a terrain map and
// takes ownership of the slice.
func NewTerrainMap(width, height int, colors []RGB) (*TerrainMap, error) {
	if width <= 0 || height <= 0 || len(colors) != width*height {
		return nil, fmt.Errorf("world: terrain %dx%d with %d colours", width, height, len(colors))
	}
	return &TerrainMap{width: width, height: height, colors: colors}, nil
}

func (t *TerrainMap) Width() int  { return t.width }
func (t *TerrainMap) Height() int { return t.height }

func (t *TerrainMap) At(x, y int) RGB { return t.colors[y*t.width+x] }

// Index returns the colour at row-major index i.
func (t *TerrainMap) Index(i int) RGB { return t.colors[i] }

func (t *TerrainMap) Len() int { return len(t.colors) }
