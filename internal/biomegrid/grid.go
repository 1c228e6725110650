// Package biomegrid holds sampled biome ids for a rectangular area.
//
// Data is stored row-major so an oracle's output slice can be wrapped
// without copying. A Grid is either borrowed, aliasing storage that the
// producer may reuse on its next call, or owned, holding a private
// compacted copy. Views into sub-rectangles never copy; call MakeOwned
// before keeping a borrowed grid past the producing call.
package biomegrid

import (
	"errors"
	"fmt"

	"seedsift.ai/internal/catalog"
)

var ErrOutOfBounds = errors.New("biomegrid: out of bounds")

type Grid struct {
	data   []catalog.BiomeID
	width  int
	height int
	stride int // elements between two rows
	offset int // index of (0, 0)
	owned  bool
}

func newGrid(data []catalog.BiomeID, width, height, stride, offset int, owned bool) (*Grid, error) {
	if width < 0 || height < 0 || stride < width || offset < 0 {
		return nil, fmt.Errorf("biomegrid: invalid layout %dx%d stride=%d offset=%d", width, height, stride, offset)
	}
	if width > 0 && height > 0 && offset+(height-1)*stride+width > len(data) {
		return nil, fmt.Errorf("biomegrid: %dx%d grid does not fit in %d elements", width, height, len(data))
	}
	return &Grid{data: data, width: width, height: height, stride: stride, offset: offset, owned: owned}, nil
}

// Borrow wraps data without copying. The grid is valid only as long as
// the caller does not reuse data.
func Borrow(data []catalog.BiomeID, width, height int) (*Grid, error) {
	return newGrid(data, width, height, width, 0, false)
}

// New returns an owned grid filled with biome id 0.
func New(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grid{data: make([]catalog.BiomeID, width*height), width: width, height: height, stride: width, owned: true}
}

// FromOwned takes ownership of data; the caller must not touch it afterwards.
func FromOwned(data []catalog.BiomeID, width, height int) (*Grid, error) {
	return newGrid(data, width, height, width, 0, true)
}

func (g *Grid) Width() int    { return g.width }
func (g *Grid) Height() int   { return g.height }
func (g *Grid) Len() int      { return g.width * g.height }
func (g *Grid) IsOwned() bool { return g.owned }

func (g *Grid) index(x, y int) int { return g.offset + y*g.stride + x }

func (g *Grid) inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

func (g *Grid) At(x, y int) catalog.BiomeID {
	if !g.inside(x, y) {
		panic(fmt.Sprintf("biomegrid: (%d,%d) outside %dx%d", x, y, g.width, g.height))
	}
	return g.data[g.index(x, y)]
}

// Set writes into an owned grid. Borrowed storage is read-only.
func (g *Grid) Set(x, y int, b catalog.BiomeID) error {
	if !g.owned {
		return errors.New("biomegrid: cannot write into a borrowed grid")
	}
	if !g.inside(x, y) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, g.width, g.height)
	}
	g.data[g.index(x, y)] = b
	return nil
}

// View returns a borrowed grid over the given sub-rectangle sharing g's
// storage. Requests reaching outside g are rejected, never clamped.
func (g *Grid) View(x, y, w, h int) (*Grid, error) {
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > g.width || y+h > g.height {
		return nil, fmt.Errorf("%w: view %dx%d at (%d,%d) of %dx%d", ErrOutOfBounds, w, h, x, y, g.width, g.height)
	}
	return &Grid{data: g.data, width: w, height: h, stride: g.stride, offset: g.index(x, y)}, nil
}

// MakeOwned replaces borrowed storage by a private compacted copy.
func (g *Grid) MakeOwned() {
	if g.owned {
		return
	}
	g.data = g.compact()
	g.stride = g.width
	g.offset = 0
	g.owned = true
}

// Clone returns an owned, compacted copy of g.
func (g *Grid) Clone() *Grid {
	return &Grid{data: g.compact(), width: g.width, height: g.height, stride: g.width, owned: true}
}

// CopyFrom makes g hold src's contents. An owned g copies (reusing its
// storage when large enough); a borrowed g starts aliasing src's storage.
func (g *Grid) CopyFrom(src *Grid) {
	if !g.owned {
		g.data, g.width, g.height, g.stride, g.offset = src.data, src.width, src.height, src.stride, src.offset
		return
	}
	n := src.Len()
	if cap(g.data) < n {
		g.data = make([]catalog.BiomeID, n)
	}
	g.data = g.data[:n]
	src.copyRows(g.data)
	g.width, g.height, g.stride, g.offset = src.width, src.height, src.width, 0
}

func (g *Grid) compact() []catalog.BiomeID {
	out := make([]catalog.BiomeID, g.Len())
	g.copyRows(out)
	return out
}

func (g *Grid) copyRows(dst []catalog.BiomeID) {
	if g.stride == g.width {
		copy(dst, g.data[g.offset:g.offset+g.Len()])
		return
	}
	for y := 0; y < g.height; y++ {
		start := g.index(0, y)
		copy(dst[y*g.width:(y+1)*g.width], g.data[start:start+g.width])
	}
}

// FindFirst scans row by row (x fastest) and returns the local position
// of the first cell for which fn reports true.
func (g *Grid) FindFirst(fn func(x, y int, b catalog.BiomeID) bool) (int, int, bool) {
	start := g.offset
	for y := 0; y < g.height; y++ {
		row := g.data[start : start+g.width]
		for x, b := range row {
			if fn(x, y, b) {
				return x, y, true
			}
		}
		start += g.stride
	}
	return 0, 0, false
}

// All reports whether fn holds for every cell, stopping at the first miss.
func (g *Grid) All(fn func(x, y int, b catalog.BiomeID) bool) bool {
	_, _, miss := g.FindFirst(func(x, y int, b catalog.BiomeID) bool { return !fn(x, y, b) })
	return !miss
}
