package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ab180/mandelmr/fractal"
	"github.com/ab180/mandelmr/internal/cpuaffinity"
	"github.com/ab180/mandelmr/metric"
	"github.com/ab180/mandelmr/output"
	"github.com/ab180/mandelmr/partitions"
	"github.com/ab180/mandelmr/renderpb"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/therne/errorist"
)

// renderTask is a row range of a render assigned to this worker.
type renderTask struct {
	RenderID   string
	Assignment partitions.RowAssignment
	Config     fractal.Config

	state     *stateMachine
	metrics   metric.Repository
	createdAt time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	released bool
}

func newRenderTask(req *renderpb.AssignRequest) *renderTask {
	return &renderTask{
		RenderID:   req.RenderID,
		Assignment: req.Assignment(),
		Config:     req.Config.Fractal(),
		state:      newStateMachine(Assigned),
		metrics:    metric.NewRepository(),
		createdAt:  time.Now(),
	}
}

// matches reports whether the request assigns the same work as the task.
func (t *renderTask) matches(req *renderpb.AssignRequest) bool {
	return t.Assignment == req.Assignment() && t.Config == req.Config.Fractal()
}

// startCompute moves an assigned task to Computing. The cancel func stops
// the computation when the task is released in the middle.
func (t *renderTask) startCompute(cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released || !t.state.Transition(Assigned, Computing) {
		return false
	}
	t.cancel = cancel
	return true
}

// endCompute stores the final state of a computation.
// It returns true if the task was released while computing.
func (t *renderTask) endCompute(s State) (released bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Store(s)
	t.cancel = nil
	return t.released
}

// release marks the task as no longer needed. It returns true if the task is idle and can
// be removed right away. Otherwise the computation is cancelled and endCompute reports it.
func (t *renderTask) release() (idle bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.released = true
	if t.cancel != nil {
		t.cancel()
		return false
	}
	return true
}

type computeOptions struct {
	cpuScheduler   *cpuaffinity.Scheduler
	pixelsComputed prometheus.Counter
}

// compute evaluates every pixel of the assigned rows in row-major order and writes
// the results to the output. The output is closed after the last pixel.
func (t *renderTask) compute(ctx context.Context, out *output.BufferedOutput, opt computeOptions) (err error) {
	defer func() {
		if p := errorist.WrapPanic(recover()); p != nil {
			err = p
		}
	}()
	if opt.cpuScheduler != nil {
		occupation := opt.cpuScheduler.Occupy(t.RenderID)
		defer opt.cpuScheduler.Release(occupation)
	}

	mapper := fractal.NewMapper(t.Config)
	width := t.Config.Width
	for y := t.Assignment.StartRow; y < t.Assignment.EndRow(); y++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for x := 0; x < width; x++ {
			count := fractal.EscapeTime(mapper.Map(x, y), t.Config.MaxIter)
			if err := out.Write(renderpb.PixelResult{X: x, Y: y, Count: count}); err != nil {
				return errors.Wrapf(err, "send pixel (%d, %d)", x, y)
			}
		}
		t.metrics.AddRow(width)
		if opt.pixelsComputed != nil {
			opt.pixelsComputed.Add(float64(width))
		}
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	return nil
}
