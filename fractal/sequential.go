package fractal

import "github.com/ab180/mandelmr/grid"

// RenderSequential evaluates every pixel in a single goroutine. It is the reference
// rendering path which the distributed result is checked against.
func RenderSequential(c Config) *grid.Grid {
	g := grid.New(c.Width, c.Height)
	m := NewMapper(c)
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			if err := g.Set(x, y, EscapeTime(m.Map(x, y), c.MaxIter)); err != nil {
				panic(err)
			}
		}
	}
	if err := g.Freeze(); err != nil {
		panic(err)
	}
	return g
}
