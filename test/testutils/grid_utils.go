package testutils

import (
	"github.com/ab180/mandelmr/grid"
)

// GridRows returns escape counts of the grid as a row-major matrix.
func GridRows(g *grid.Grid) [][]int {
	rows := make([][]int, g.Height())
	for y := range rows {
		rows[y] = append([]int(nil), g.Row(y)...)
	}
	return rows
}
