// Package errgroup wraps golang.org/x/sync/errgroup to recover panics of the
// spawned goroutines as errors.
package errgroup

import (
	"context"
	"sync"

	"github.com/ab180/mandelmr/internal/logutils"
	"golang.org/x/sync/errgroup"
)

// Group is a collection of goroutines working on subtasks of a common task.
// A zero Group is valid and does not cancel on error.
type Group struct {
	once sync.Once
	wg   *errgroup.Group
}

// WithContext returns a new Group and an associated Context derived from ctx.
// The derived Context is canceled the first time a function passed to Go
// returns a non-nil error or panics, or the first time Wait returns.
func WithContext(ctx context.Context) (*Group, context.Context) {
	wg, groupCtx := errgroup.WithContext(ctx)
	return &Group{wg: wg}, groupCtx
}

func (g *Group) group() *errgroup.Group {
	g.once.Do(func() {
		if g.wg == nil {
			g.wg = new(errgroup.Group)
		}
	})
	return g.wg
}

// Go calls the given function in a new goroutine. A panic in the function
// is converted into a *logutils.PanicError.
func (g *Group) Go(fn func() error) {
	g.group().Go(func() (err error) {
		defer func() {
			if p := logutils.WrapRecover(recover()); p != nil {
				err = p
			}
		}()
		return fn()
	})
}

// Wait blocks until all function calls from the Go method have returned,
// then returns the first non-nil error (if any) from them.
func (g *Group) Wait() error {
	return g.group().Wait()
}
