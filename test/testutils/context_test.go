package testutils

import (
	"testing"
	"time"

	"github.com/ab180/mandelmr/fractal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestContextForRender(t *testing.T) {
	Convey("Given render configs", t, func() {
		small := fractal.Config{Width: 4, Height: 4, MaxIter: 10}
		large := fractal.DefaultConfig()

		Convey("The budget should grow with pixels and the iteration cap", func() {
			So(RenderBudget(small), ShouldBeLessThan, time.Millisecond)
			So(RenderBudget(large), ShouldBeGreaterThan, RenderBudget(small))

			doubled := large
			doubled.MaxIter *= 2
			So(RenderBudget(doubled).Seconds(), ShouldAlmostEqual, 2*RenderBudget(large).Seconds(), 0.001)
		})

		Convey("The context should outlast the default timeout by the budget", func() {
			ctx := ContextForRender(large)
			deadline, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
			So(time.Until(deadline), ShouldBeGreaterThan, RenderBudget(large))
		})
	})
}
