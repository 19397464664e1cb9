package worker

import (
	"context"
	"net"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ab180/mandelmr/cluster"
	"github.com/ab180/mandelmr/cluster/node"
	"github.com/ab180/mandelmr/internal/cpuaffinity"
	"github.com/ab180/mandelmr/metric"
	"github.com/ab180/mandelmr/output"
	"github.com/ab180/mandelmr/renderpb"
	"github.com/airbloc/logger"
	"github.com/airbloc/logger/module/loggergrpc"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var log = logger.New("worker")

// renderStateNs is a prefix of render task states in the node state.
const renderStateNs = "renders"

// Worker computes assigned row ranges and streams the results to the coordinator.
type Worker struct {
	renderpb.UnimplementedWorkerServer

	Cluster   cluster.Cluster
	Node      node.Registration
	RPCServer *grpc.Server

	serverLis    net.Listener
	state        *stateMachine
	tasks        sync.Map
	cpuScheduler *cpuaffinity.Scheduler
	opt          Options
}

// New creates a worker and registers it to the cluster. The worker starts
// to accept assignments after Start is called.
func New(c cluster.Cluster, opt Options, lis ...net.Listener) (*Worker, error) {
	w := &Worker{
		Cluster: c,
		state:   newStateMachine(Init),
		opt:     opt,
	}
	if len(lis) > 0 {
		w.serverLis = lis[0]
	}
	if opt.ExperimentalCPUAffinity {
		w.cpuScheduler = cpuaffinity.NewScheduler()
	}

	w.RPCServer = grpc.NewServer(
		grpc.MaxRecvMsgSize(w.opt.MaxMessageSize),
		grpc.MaxSendMsgSize(w.opt.MaxMessageSize),
		grpc.UnaryInterceptor(loggergrpc.UnaryServerRecover()),
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			errorLogMiddleware,
			loggergrpc.StreamServerRecover(),
		)),
	)
	renderpb.RegisterWorkerServer(w.RPCServer, w)

	if err := w.register(); err != nil {
		return nil, errors.WithMessage(err, "register worker")
	}
	return w, nil
}

func (w *Worker) register() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if w.serverLis == nil {
		// if port is not specified on ListenHost, it must be automatically
		// assigned with any available port in system by net.Listen.
		lis, err := net.Listen("tcp", w.opt.ListenHost)
		if err != nil {
			return errors.Wrapf(err, "listen %s", w.opt.ListenHost)
		}
		w.serverLis = lis
	}

	advHost := w.opt.AdvertisedHost
	if strings.HasSuffix(advHost, ":") {
		// port is assigned automatically
		_, actualPort, _ := net.SplitHostPort(w.serverLis.Addr().String())
		advHost += actualPort
	}
	n := node.New(advHost, node.Worker)
	n.Tag = w.opt.NodeTags

	nr, err := w.Cluster.Register(ctx, n)
	if err != nil {
		_ = w.serverLis.Close()
		return err
	}
	w.Node = nr
	return nil
}

// Start serves assignments until Close is called.
func (w *Worker) Start() error {
	if !w.state.Transition(Init, AwaitingAssignment) {
		return errors.Errorf("worker cannot start in %s state", w.state.Load())
	}
	log.Info("{} is awaiting assignments.", w.Node.Info().String())
	return w.RPCServer.Serve(w.serverLis)
}

// State returns the lifecycle state of the worker.
// It is Computing while any of the renders on the worker is being computed.
func (w *Worker) State() State {
	s := w.state.Load()
	if s != AwaitingAssignment {
		return s
	}
	w.tasks.Range(func(_, v interface{}) bool {
		if v.(*renderTask).state.Load() == Computing {
			s = Computing
			return false
		}
		return true
	})
	return s
}

func (w *Worker) Host() string {
	return w.Node.Info().Host
}

// Assign accepts a row range of a render. Its acknowledgement is the rendezvous
// between the coordinator and the worker before computing.
func (w *Worker) Assign(ctx context.Context, req *renderpb.AssignRequest) (*renderpb.AssignResponse, error) {
	if s := w.state.Load(); s != AwaitingAssignment {
		return nil, status.Errorf(codes.FailedPrecondition, "worker is in %s state", s)
	}
	cfg := req.Config.Fractal()
	if err := cfg.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	a := req.Assignment()
	if a.StartRow < 0 || a.RowCount < 0 || a.EndRow() > cfg.Height {
		return nil, status.Errorf(codes.InvalidArgument, "%s is out of the image height %d", a, cfg.Height)
	}

	t := newRenderTask(req)
	if v, loaded := w.tasks.LoadOrStore(req.RenderID, t); loaded {
		// a retried Assign of which acknowledgement was lost
		if v.(*renderTask).matches(req) {
			log.Verbose("Assignment {} of render {} is acknowledged again", a, req.RenderID)
			return &renderpb.AssignResponse{Host: w.Host()}, nil
		}
		return nil, status.Errorf(codes.FailedPrecondition, "render %s is already assigned with different rows", req.RenderID)
	}
	w.reportState(ctx, t)

	if h, err := renderpb.RenderHeaderFromContext(ctx); err == nil {
		log.Info("Assigned {} of render {} by {}", a, req.RenderID, h.CoordinatorHost)
	} else {
		log.Info("Assigned {} of render {}", a, req.RenderID)
	}
	return &renderpb.AssignResponse{Host: w.Host()}, nil
}

// Render computes the assigned rows and streams the results in batches.
// The stream ends after every pixel of the assignment has been sent.
func (w *Worker) Render(req *renderpb.RenderRequest, stream renderpb.Worker_RenderServer) error {
	t := w.getTask(req.RenderID)
	if t == nil {
		return status.Errorf(codes.FailedPrecondition, "render %s is not assigned to %s", req.RenderID, w.Host())
	}
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	if !t.startCompute(cancel) {
		return status.Errorf(codes.FailedPrecondition, "render %s is in %s state", req.RenderID, t.state.Load())
	}
	w.reportState(ctx, t)

	labels := metric.WorkerLabelValuesFrom(w.Node.Info())
	runningTasksGauge := metric.RunningTasksGauge.With(labels)
	runningTasksGauge.Inc()
	defer runningTasksGauge.Dec()

	log.Info("Sending rows {} of render {}", t.Assignment, t.RenderID)
	streamOut := output.NewStreamOutput(stream, t.Assignment.WorkerID)
	out := output.NewBufferedOutput(streamOut, w.opt.Output.BufferLength, output.WithMaxDelay(w.opt.Output.MaxBatchDelay))
	err := t.compute(ctx, out, computeOptions{
		cpuScheduler:   w.cpuScheduler,
		pixelsComputed: metric.PixelsComputedCounter.With(labels),
	})
	t.metrics.SetBatches(streamOut.Sent())
	if err != nil {
		if t.endCompute(Failed) {
			w.removeTask(context.Background(), t.RenderID)
			return status.Errorf(codes.Canceled, "render %s is finished by the coordinator", t.RenderID)
		}
		w.reportState(context.Background(), t)
		if ctx.Err() != nil {
			return status.Error(codes.Canceled, err.Error())
		}
		return status.Errorf(codes.Internal, "render %s: %v", t.RenderID, err)
	}
	if t.endCompute(Done) {
		w.removeTask(context.Background(), t.RenderID)
		return nil
	}
	w.reportState(ctx, t)

	log.Info("Rows sent: {} of render {} in {}\n{}", t.Assignment, t.RenderID, time.Since(t.createdAt), t.metrics.Collect())
	return nil
}

// Finish releases a render. A render still being computed is cancelled,
// and removed once its computation returns.
func (w *Worker) Finish(ctx context.Context, req *renderpb.FinishRequest) (*renderpb.Empty, error) {
	t := w.getTask(req.RenderID)
	if t == nil {
		return nil, status.Errorf(codes.NotFound, "render %s not found on %s", req.RenderID, w.Host())
	}
	if !t.release() {
		log.Info("Cancelling render {} which is still computing", req.RenderID)
		return &renderpb.Empty{}, nil
	}
	w.removeTask(ctx, req.RenderID)
	return &renderpb.Empty{}, nil
}

func (w *Worker) removeTask(ctx context.Context, renderID string) {
	w.tasks.Delete(renderID)
	if _, err := w.Node.States().Delete(ctx, path.Join(renderStateNs, renderID)); err != nil {
		log.Warn("Failed to clear state of render {}: {}", renderID, err)
	}
}

func (w *Worker) getTask(renderID string) *renderTask {
	v, ok := w.tasks.Load(renderID)
	if !ok {
		return nil
	}
	return v.(*renderTask)
}

// reportState records the task state in the ephemeral node state.
func (w *Worker) reportState(ctx context.Context, t *renderTask) {
	s := t.state.Load()
	if err := w.Node.States().Put(ctx, path.Join(renderStateNs, t.RenderID), s.String()); err != nil {
		log.Warn("Failed to report state {} of render {}: {}", s, t.RenderID, err)
	}
}

// Close unregisters the worker and stops the server after running streams end.
func (w *Worker) Close() error {
	if w.state.Transition(Init, Done) {
		// the listener is only closed by the server after Serve
		_ = w.serverLis.Close()
	}
	w.state.Store(Done)
	w.Node.Unregister()
	w.RPCServer.GracefulStop()
	return nil
}

func errorLogMiddleware(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error { //nolint:lll
	// dump header on stream failure
	if err := handler(srv, ss); err != nil {
		if status.Code(err) == codes.Canceled {
			return err
		}
		if h, herr := renderpb.RenderHeaderFromContext(ss.Context()); herr == nil {
			log.Error("{} of render {} called by {} failed: {}", info.FullMethod, h.RenderID, h.CoordinatorHost, err)
		} else {
			log.Error("{} failed: {}", info.FullMethod, err)
		}
		return err
	}
	return nil
}

// Worker implements renderpb.WorkerServer.
var _ renderpb.WorkerServer = (*Worker)(nil)
