package fractal

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
)

func TestEscapeTime(t *testing.T) {
	Convey("Given the escape-time kernel", t, func() {
		Convey("The origin should never escape", func() {
			for _, maxIter := range []int{1, 10, 256, 1000} {
				So(EscapeTime(PlanePoint{0, 0}, maxIter), ShouldEqual, maxIter)
			}
		})

		Convey("A point far outside should escape on the first iteration", func() {
			for _, maxIter := range []int{1, 2, 256} {
				So(EscapeTime(PlanePoint{3, 3}, maxIter), ShouldEqual, 1)
			}
		})

		Convey("A point on the escape circle should stop right away", func() {
			So(EscapeTime(PlanePoint{0, -2}, 10), ShouldEqual, 1)
			So(EscapeTime(PlanePoint{-2, 0}, 10), ShouldEqual, 1)
		})

		Convey("A zero iteration cap should return zero", func() {
			So(EscapeTime(PlanePoint{0, 0}, 0), ShouldEqual, 0)
		})

		Convey("Periodic orbits should be bounded", func() {
			So(EscapeTime(PlanePoint{-1, 0}, 50), ShouldEqual, 50)
			So(EscapeTime(PlanePoint{0, 1}, 50), ShouldEqual, 50)
		})

		Convey("Slowly escaping points should be counted", func() {
			So(EscapeTime(PlanePoint{1, 0}, 10), ShouldEqual, 2)
			So(EscapeTime(PlanePoint{-1, -1}, 10), ShouldEqual, 3)
		})
	})
}

func TestEscapeTime_Purity(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		c := PlanePoint{Real: rnd.Float64()*4 - 2.5, Imag: rnd.Float64()*4 - 2}
		first := EscapeTime(c, 256)
		require.GreaterOrEqual(t, first, 0)
		require.LessOrEqual(t, first, 256)
		require.Equal(t, first, EscapeTime(c, 256), "kernel is not deterministic at %v", c)
	}
}

// roundedEscapeTime iterates with every product stored before it is summed.
func roundedEscapeTime(c PlanePoint, maxIter int) int {
	var zr, zi, magnitude float64
	n := 0
	for n < maxIter && magnitude < 4 {
		rr, ii, ri := float64(zr*zr), float64(zi*zi), float64(zr*zi)
		zr, zi = rr-ii+c.Real, ri+ri+c.Imag
		magnitude = float64(zr*zr) + float64(zi*zi)
		n++
	}
	return n
}

func TestEscapeTime_RoundsProducts(t *testing.T) {
	m := NewMapper(DefaultConfig())
	for y := 0; y < 1200; y += 7 {
		for x := 0; x < 1200; x += 13 {
			c := m.Map(x, y)
			require.Equal(t, roundedEscapeTime(c, 256), EscapeTime(c, 256), "pixel (%d, %d)", x, y)
		}
	}
}
