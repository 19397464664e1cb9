package grid

import (
	"github.com/pkg/errors"
)

var (
	ErrOutOfBounds    = errors.New("pixel out of bounds")
	ErrDuplicatePixel = errors.New("pixel already written")
	ErrIncomplete     = errors.New("grid is not fully populated")
	ErrFrozen         = errors.New("grid is read-only")
)

// Grid is a height x width buffer of iteration counts, stored row-major in a single
// contiguous slice. It is not safe for concurrent writes; the owner serializes them.
type Grid struct {
	width, height int
	counts        []int
	written       []bool
	filled        int
	frozen        bool
}

func New(width, height int) *Grid {
	return &Grid{
		width:   width,
		height:  height,
		counts:  make([]int, width*height),
		written: make([]bool, width*height),
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// Len returns the total number of cells.
func (g *Grid) Len() int { return len(g.counts) }

// Filled returns the number of distinct cells written so far.
func (g *Grid) Filled() int { return g.filled }

// Complete reports whether every cell has been written exactly once.
func (g *Grid) Complete() bool { return g.filled == len(g.counts) }

func (g *Grid) index(x, y int) (int, error) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return 0, errors.Wrapf(ErrOutOfBounds, "(%d, %d) in %dx%d", x, y, g.width, g.height)
	}
	return y*g.width + x, nil
}

// Set writes the iteration count of the pixel (x, y). Each cell can be written only once.
func (g *Grid) Set(x, y, count int) error {
	if g.frozen {
		return ErrFrozen
	}
	i, err := g.index(x, y)
	if err != nil {
		return err
	}
	if g.written[i] {
		return errors.Wrapf(ErrDuplicatePixel, "(%d, %d)", x, y)
	}
	g.counts[i] = count
	g.written[i] = true
	g.filled++
	return nil
}

// Freeze makes the grid read-only. It fails if any cell is still missing.
func (g *Grid) Freeze() error {
	if !g.Complete() {
		return errors.Wrapf(ErrIncomplete, "%d of %d pixels written", g.filled, len(g.counts))
	}
	g.frozen = true
	g.written = nil
	return nil
}

func (g *Grid) Frozen() bool { return g.frozen }

// At returns the count of the pixel (x, y). It panics if the pixel is out of bounds.
func (g *Grid) At(x, y int) int {
	i, err := g.index(x, y)
	if err != nil {
		panic(err)
	}
	return g.counts[i]
}

// Row returns a read-only view of row y.
func (g *Grid) Row(y int) []int {
	if y < 0 || y >= g.height {
		panic(errors.Wrapf(ErrOutOfBounds, "row %d of %d", y, g.height))
	}
	return g.counts[y*g.width : (y+1)*g.width : (y+1)*g.width]
}

// Equal returns true if both grids have the same dimensions and counts.
func (g *Grid) Equal(o *Grid) bool {
	if g.width != o.width || g.height != o.height {
		return false
	}
	for i := range g.counts {
		if g.counts[i] != o.counts[i] {
			return false
		}
	}
	return true
}

// Diff returns the coordinates of the first cell differing from o, if any.
func (g *Grid) Diff(o *Grid) (x, y int, differs bool) {
	if g.width != o.width || g.height != o.height {
		return 0, 0, true
	}
	for i := range g.counts {
		if g.counts[i] != o.counts[i] {
			return i % g.width, i / g.width, true
		}
	}
	return 0, 0, false
}
