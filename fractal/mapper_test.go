package fractal

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
)

func TestMapper_Map(t *testing.T) {
	Convey("Given a mapper over [-2, 2] x [-2, 2] on a 4x4 image", t, func() {
		m := NewMapper(Config{Width: 4, Height: 4, RealMin: -2, RealMax: 2, ImagMin: -2, ImagMax: 2})

		Convey("The top-left pixel should map to the lower bounds", func() {
			So(m.Map(0, 0), ShouldResemble, PlanePoint{-2, -2})
		})

		Convey("Each pixel should advance one step per axis", func() {
			So(m.Map(1, 0), ShouldResemble, PlanePoint{-1, -2})
			So(m.Map(0, 3), ShouldResemble, PlanePoint{-2, 1})
			So(m.Map(2, 2), ShouldResemble, PlanePoint{0, 0})
		})
	})

	Convey("Given the default configuration", t, func() {
		c := DefaultConfig()
		m := NewMapper(c)

		Convey("It should divide the range by the resolution before scaling", func() {
			step := (c.RealMax - c.RealMin) / float64(c.Width)
			So(m.Map(777, 0).Real, ShouldEqual, float64(777*step)+c.RealMin)
		})
	})
}

func TestMapper_RoundsProducts(t *testing.T) {
	c := DefaultConfig()
	m := NewMapper(c)
	step := (c.RealMax - c.RealMin) / float64(c.Width)

	fusedDiffers := 0
	for x := 0; x < c.Width; x++ {
		rounded := float64(float64(x)*step) + c.RealMin
		require.Equal(t, rounded, m.Map(x, 0).Real, "x=%d", x)
		if math.FMA(float64(x), step, c.RealMin) != rounded {
			fusedDiffers++
		}
	}
	t.Logf("%d of %d columns would differ under fused multiply-add", fusedDiffers, c.Width)
}

func TestConfig(t *testing.T) {
	Convey("Given DefaultConfig", t, func() {
		c := DefaultConfig()

		Convey("It should be valid", func() {
			So(c.Validate(), ShouldBeNil)
			So(c.MaxIter, ShouldEqual, 256)
			So(c.Pixels(), ShouldEqual, 1200*1200)
			So(c.RealMin, ShouldEqual, -2.5)
		})

		Convey("An empty resolution should be rejected", func() {
			c.Width = 0
			So(errors.Is(c.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("A zero iteration cap should be rejected", func() {
			c.MaxIter = 0
			So(errors.Is(c.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Inverted bounds should be rejected", func() {
			c.ImagMin, c.ImagMax = c.ImagMax, c.ImagMin
			So(errors.Is(c.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestRenderSequential(t *testing.T) {
	Convey("Rendering the 4x4 fixture sequentially", t, func() {
		g := RenderSequential(Config{MaxIter: 10, Width: 4, Height: 4, RealMin: -2, RealMax: 2, ImagMin: -2, ImagMax: 2})

		Convey("It should produce the golden counts", func() {
			So(g.Frozen(), ShouldBeTrue)
			So(g.Row(0), ShouldResemble, []int{1, 1, 1, 1})
			So(g.Row(1), ShouldResemble, []int{1, 3, 10, 2})
			So(g.Row(2), ShouldResemble, []int{1, 10, 10, 2})
			So(g.Row(3), ShouldResemble, []int{1, 3, 10, 2})
		})
	})
}
