package coordinator

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/ab180/mandelmr/cluster"
	"github.com/ab180/mandelmr/fractal"
	"github.com/ab180/mandelmr/grid"
	"github.com/ab180/mandelmr/input"
	"github.com/ab180/mandelmr/internal/errgroup"
	"github.com/ab180/mandelmr/internal/util"
	"github.com/ab180/mandelmr/kv"
	"github.com/ab180/mandelmr/metric"
	"github.com/ab180/mandelmr/partitions"
	"github.com/ab180/mandelmr/pkg/retry"
	"github.com/ab180/mandelmr/renderpb"
	"github.com/airbloc/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var log = logger.New("coordinator")

// ErrGatherTimeout is returned when results of every worker did not arrive in Options.GatherTimeout.
var ErrGatherTimeout = errors.New("timed out while gathering pixels")

// ImageWriter writes an assembled image.
type ImageWriter interface {
	WriteImage(g *grid.Grid) error
}

// ImageWriterFunc is an adapter to use a function as an ImageWriter.
type ImageWriterFunc func(g *grid.Grid) error

func (f ImageWriterFunc) WriteImage(g *grid.Grid) error {
	return f(g)
}

// Coordinator drives a single render over a fixed group of workers.
// It partitions the rows, assigns them, and assembles the results into a grid.
type Coordinator struct {
	ID     string
	Config fractal.Config

	cluster cluster.Cluster
	host    string
	opt     Options

	mu         sync.RWMutex
	state      State
	status     RenderStatus
	statusKV   kv.KV
	grid       *grid.Grid
	placements partitions.Placements
	clients    map[int]renderpb.WorkerClient
	metrics    metric.Repository
}

// New creates a coordinator of a render. It fails fast on an invalid config or
// a worker group smaller than one, before any work is done.
func New(c cluster.Cluster, cfg fractal.Config, opt Options) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opt.Workers < 1 {
		return nil, errors.Wrapf(partitions.ErrNoWorkers, "got %d", opt.Workers)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "coordinator"
	}
	id := util.GenerateID("R")
	return &Coordinator{
		ID:      id,
		Config:  cfg,
		cluster: c,
		host:    host,
		opt:     opt,
		state:   Init,
		status: RenderStatus{
			ID:    id,
			State: Init,
			Total: cfg.Pixels(),
		},
		statusKV: c.States(),
		grid:     grid.New(cfg.Width, cfg.Height),
		clients:  make(map[int]renderpb.WorkerClient),
		metrics:  metric.NewRepository(),
	}, nil
}

// State returns the current phase of the render.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Placements returns the row ranges and their workers. It is empty before ASSIGNING.
func (c *Coordinator) Placements() partitions.Placements {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.placements
}

// Metrics returns counters of the render.
func (c *Coordinator) Metrics() metric.Metrics {
	return c.metrics.Collect()
}

// Run renders the image and hands the completed grid to the writer.
func (c *Coordinator) Run(ctx context.Context, w ImageWriter) (g *grid.Grid, err error) {
	startedAt := time.Now()
	metric.RunningRendersGauge.Inc()
	defer metric.RunningRendersGauge.Dec()
	defer func() {
		if err != nil {
			c.fail(err)
			return
		}
		metric.RenderDurationSummary.Observe(time.Since(startedAt).Seconds())
	}()

	ctx, err = renderpb.WithRenderHeader(ctx, renderpb.RenderHeader{
		RenderID:        c.ID,
		CoordinatorHost: c.host,
	})
	if err != nil {
		return nil, err
	}
	c.openStatus(ctx, startedAt)

	if err := c.transition(ctx, Assigning); err != nil {
		return nil, err
	}
	if err := c.assign(ctx); err != nil {
		c.finish()
		return nil, errors.Wrap(err, "assign")
	}

	if err := c.transition(ctx, Gathering); err != nil {
		return nil, err
	}
	gatherErr := c.gather(ctx)
	c.finish()
	if gatherErr != nil {
		return nil, errors.Wrap(gatherErr, "gather")
	}

	if err := c.transition(ctx, Writing); err != nil {
		return nil, err
	}
	log.Info("Coloring image")
	if err := w.WriteImage(c.grid); err != nil {
		return nil, errors.Wrap(err, "write image")
	}
	log.Info("Image has been colored")

	if err := c.transition(ctx, Done); err != nil {
		return nil, err
	}
	log.Info("Render {} done in {}.\n{}", c.ID, time.Since(startedAt), c.metrics.Collect())
	return c.grid, nil
}

// assign partitions the rows over the worker group and delivers each range to its worker.
// It returns after every worker acknowledged its assignment.
func (c *Coordinator) assign(ctx context.Context) error {
	nodes, err := c.cluster.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list nodes")
	}
	as, err := partitions.Plan(c.Config.Height, c.opt.Workers)
	if err != nil {
		return err
	}
	if err := as.Validate(c.Config.Height); err != nil {
		return err
	}
	scheduleOpts := []partitions.ScheduleOption{partitions.WithNodeSelector(c.opt.NodeSelector)}
	if c.opt.DisableShufflingNodes {
		scheduleOpts = append(scheduleOpts, partitions.WithoutShufflingNodes())
	}
	placements, err := partitions.Schedule(nodes, as, scheduleOpts...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.placements = placements
	c.status.Placements = placements
	c.mu.Unlock()

	log.Info("Sending rows of render {} to {} workers:\n{}", c.ID, len(placements), placements.Pretty())

	var mu sync.Mutex
	wg, wctx := errgroup.WithContext(ctx)
	for _, p := range placements {
		p := p
		wg.Go(func() error {
			conn, err := c.cluster.Connect(wctx, p.Host)
			if err != nil {
				return errors.Wrapf(err, "dial %s", p.Host)
			}
			cli := renderpb.NewWorkerClient(conn)
			req := renderpb.NewAssignRequest(c.ID, p.RowAssignment, c.Config)

			err = retry.Do(
				func() error {
					_, err := cli.Assign(wctx, req)
					return err
				},
				retry.WithRetryCount(c.opt.AssignRetryCount),
				retry.WithDelay(c.opt.AssignRetryDelay),
				retry.WithGiveUpOn(isPermanent),
			)
			if err != nil {
				return errors.Wrapf(err, "assign %s to %s", p.RowAssignment, p.Host)
			}
			mu.Lock()
			c.clients[p.WorkerID] = cli
			mu.Unlock()
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}
	log.Info("Rows sent")
	return nil
}

// gather opens a Render stream per worker and writes every received pixel into the grid.
// It returns after all streams ended, and fails unless the grid is complete.
func (c *Coordinator) gather(ctx context.Context) error {
	gctx, cancel := context.WithTimeout(ctx, c.opt.GatherTimeout)
	defer cancel()

	log.Info("Receiving rows")

	// every stream is opened before dispatching, so that the reader
	// is not closed while some streams are still being opened.
	type openedStream struct {
		workerID int
		stream   renderpb.Worker_RenderClient
	}
	var opened []openedStream
	for _, p := range c.Placements() {
		stream, err := c.clients[p.WorkerID].Render(gctx, &renderpb.RenderRequest{RenderID: c.ID})
		if err != nil {
			if errors.Is(gctx.Err(), context.DeadlineExceeded) {
				return errors.Wrapf(ErrGatherTimeout, "open render stream to %s", p.Host)
			}
			return errors.Wrapf(err, "open render stream to %s", p.Host)
		}
		opened = append(opened, openedStream{workerID: p.WorkerID, stream: stream})
	}

	reader := input.NewReader(c.opt.QueueLength)
	var (
		errs   error
		errsMu sync.Mutex
		wg     errgroup.Group
	)
	for _, o := range opened {
		rs := input.NewRenderStream(reader, o.stream, o.workerID)
		wg.Go(func() error {
			if err := rs.Dispatch(gctx); err != nil && gctx.Err() == nil {
				errsMu.Lock()
				errs = multierror.Append(errs, err)
				errsMu.Unlock()
				cancel()
			}
			return nil
		})
	}

	aborted := false
	for batch := range reader.C {
		if aborted {
			continue
		}
		for _, p := range batch.Pixels {
			if err := c.grid.Set(p.X, p.Y, p.Count); err != nil {
				errsMu.Lock()
				errs = multierror.Append(errs, errors.Wrapf(err, "pixel from worker #%d", batch.WorkerID))
				errsMu.Unlock()
				aborted = true
				cancel()
				break
			}
		}
		c.metrics.AddBatch(batch.WorkerID, len(batch.Pixels))
	}
	if err := wg.Wait(); err != nil {
		errs = multierror.Append(errs, err)
	}

	received := c.grid.Filled()
	c.mu.Lock()
	c.status.Received = received
	c.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errs != nil {
		return errors.Wrapf(errs, "received %d of %d pixels", received, c.grid.Len())
	}
	if errors.Is(gctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(ErrGatherTimeout, "received %d of %d pixels in %s", received, c.grid.Len(), c.opt.GatherTimeout)
	}
	if err := c.grid.Freeze(); err != nil {
		return errors.Wrapf(err, "received %d of %d pixels", received, c.grid.Len())
	}
	log.Info("Rows received")
	return nil
}

// finish releases the render on every assigned worker.
func (c *Coordinator) finish() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg errgroup.Group
	for workerID, cli := range c.clients {
		workerID, cli := workerID, cli
		wg.Go(func() error {
			if _, err := cli.Finish(ctx, &renderpb.FinishRequest{RenderID: c.ID}); err != nil {
				log.Verbose("Failed to finish render {} on worker #{}: {}", c.ID, workerID, err)
			}
			return nil
		})
	}
	_ = wg.Wait()
}

func (c *Coordinator) transition(ctx context.Context, to State) error {
	c.mu.Lock()
	from := c.state
	if !canTransition(from, to) {
		c.mu.Unlock()
		return errors.Errorf("invalid transition from %s to %s", from, to)
	}
	c.state = to
	c.status.State = to
	if to == Done || to == Failed {
		now := time.Now()
		c.status.CompletedAt = &now
	}
	st := c.status
	c.mu.Unlock()

	log.Verbose("Render {}: {} -> {}", c.ID, from, to)
	c.putStatus(ctx, st)
	return nil
}

func (c *Coordinator) fail(err error) {
	c.mu.Lock()
	c.status.Errors = append(c.status.Errors, err.Error())
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if terr := c.transition(ctx, Failed); terr != nil {
		log.Verbose("Render {} is already completed: {}", c.ID, terr)
	}
	log.Error("Render {} failed: {}", c.ID, err)
}

// openStatus records the render in the cluster state. The status expires after Options.StatusTTL.
func (c *Coordinator) openStatus(ctx context.Context, startedAt time.Time) {
	st := c.cluster.States()
	seq, err := st.IncrementCounter(ctx, renderCounterKey)
	if err != nil {
		log.Warn("Failed to count render {}: {}", c.ID, err)
	}
	lease := clientv3.NoLease
	if c.opt.StatusTTL > 0 {
		if lease, err = st.GrantLease(ctx, c.opt.StatusTTL); err != nil {
			log.Warn("Failed to grant lease of render status: {}", err)
			lease = clientv3.NoLease
		}
	}

	c.mu.Lock()
	c.status.Seq = seq
	c.status.StartedAt = startedAt
	c.statusKV = st.WithOptions(kv.WithLease(lease))
	snapshot := c.status
	c.mu.Unlock()

	c.putStatus(ctx, snapshot)
}

func (c *Coordinator) putStatus(ctx context.Context, st RenderStatus) {
	if err := c.statusKV.Put(ctx, statusKey(c.ID), st); err != nil {
		log.Warn("Failed to update status of render {}: {}", c.ID, err)
	}
}

// GetStatus reads the status of a render from the cluster state.
func GetStatus(ctx context.Context, c cluster.Cluster, renderID string) (*RenderStatus, error) {
	st := new(RenderStatus)
	if err := c.States().Get(ctx, statusKey(renderID), st); err != nil {
		return nil, err
	}
	return st, nil
}

// isPermanent reports whether an RPC error would not be resolved by retrying.
func isPermanent(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound, codes.Unimplemented, codes.Canceled:
		return true
	}
	return errors.Is(err, context.Canceled)
}
