package testutils

import (
	"context"
	"time"

	"github.com/ab180/mandelmr/fractal"
	"github.com/smartystreets/goconvey/convey"
)

const (
	defaultTimeout = 5 * time.Second

	// iterationsPerSecond is a pessimistic escape-time throughput of a single core,
	// with the race detector on.
	iterationsPerSecond = 10_000_000
)

// ContextWithTimeout returns a context cancelled when the current convey scope ends.
// It times out after 5 seconds unless another timeout is given.
func ContextWithTimeout(overrideTimeout ...time.Duration) context.Context {
	timeout := defaultTimeout
	if len(overrideTimeout) > 0 {
		timeout = overrideTimeout[0]
	}
	return scoped(context.WithTimeout(context.Background(), timeout))
}

// ContextForRender returns a convey-scoped context long enough for cfg to be rendered
// on a single core even if every pixel runs up to the iteration cap.
func ContextForRender(cfg fractal.Config) context.Context {
	return ContextWithTimeout(defaultTimeout + RenderBudget(cfg))
}

// RenderBudget is the worst-case single-core time of rendering cfg.
func RenderBudget(cfg fractal.Config) time.Duration {
	iterations := float64(cfg.Pixels()) * float64(cfg.MaxIter)
	return time.Duration(iterations / iterationsPerSecond * float64(time.Second))
}

func scoped(ctx context.Context, cancel context.CancelFunc) context.Context {
	convey.Reset(cancel)
	return ctx
}
