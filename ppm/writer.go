// Package ppm writes escape counts as plain-text (P3) portable pixmaps.
package ppm

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/ab180/mandelmr/grid"
	"github.com/pkg/errors"
	"github.com/therne/errorist"
)

// MaxColorValue is the maximum channel value written in the header.
const MaxColorValue = 255

// ErrNotFrozen is returned when an image still being assembled is written.
var ErrNotFrozen = errors.New("grid is not frozen")

// Gray maps an escape count to a gray channel value.
func Gray(count int) int {
	return count % (MaxColorValue + 1)
}

// Write encodes g as a P3 image. Each pixel is written as "g g g " and
// every row ends with a newline.
func Write(w io.Writer, g *grid.Grid) error {
	if !g.Frozen() {
		return ErrNotFrozen
	}
	bw := bufio.NewWriter(w)

	buf := make([]byte, 0, 64)
	buf = append(buf, "P3\n"...)
	buf = strconv.AppendInt(buf, int64(g.Width()), 10)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(g.Height()), 10)
	buf = append(buf, '\n')
	buf = strconv.AppendInt(buf, MaxColorValue, 10)
	buf = append(buf, '\n')
	if _, err := bw.Write(buf); err != nil {
		return errors.Wrap(err, "write header")
	}

	for y := 0; y < g.Height(); y++ {
		for _, count := range g.Row(y) {
			buf = buf[:0]
			v := int64(Gray(count))
			for i := 0; i < 3; i++ {
				buf = strconv.AppendInt(buf, v, 10)
				buf = append(buf, ' ')
			}
			if _, err := bw.Write(buf); err != nil {
				return errors.Wrapf(err, "write row %d", y)
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return errors.Wrapf(err, "write row %d", y)
		}
	}
	return bw.Flush()
}

// WriteFile creates (or truncates) the file at path and writes g into it.
func WriteFile(path string, g *grid.Grid) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create image file")
	}
	defer errorist.CloseWithErrCapture(f, &err, errorist.Wrapf("close %s", path))

	return Write(f, g)
}
