package mandelmr

import (
	"context"
	"os"
	"runtime"
	"syscall"

	"github.com/ab180/mandelmr/cluster"
	"github.com/ab180/mandelmr/coordinator"
	"github.com/ab180/mandelmr/grid"
	"github.com/ab180/mandelmr/internal/util"
	"github.com/ab180/mandelmr/kv"
	"github.com/ab180/mandelmr/ppm"
	"github.com/ab180/mandelmr/worker"
	"github.com/airbloc/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var log = logger.New("mandelmr")

// ErrNoClusterState is returned when a standalone worker is started without etcd endpoints.
var ErrNoClusterState = errors.New("etcd endpoints are required to run a standalone worker")

// OpenCluster connects to the cluster state and returns a cluster owning it.
// An empty EtcdEndpoints selects a state living in the process memory.
func OpenCluster(opt Options) (cluster.Cluster, error) {
	var (
		st  kv.Store
		err error
	)
	if len(opt.EtcdEndpoints) == 0 {
		st = kv.NewLocalMemory()
	} else {
		st, err = kv.NewEtcd(opt.EtcdEndpoints, opt.EtcdNamespace, opt.EtcdOptions)
		if err != nil {
			return nil, errors.Wrap(err, "connect etcd")
		}
	}
	c, err := cluster.Open(st, opt.Cluster)
	if err != nil {
		_ = st.Close()
		return nil, errors.Wrap(err, "open cluster")
	}
	return &ownedCluster{Cluster: c, store: st}, nil
}

// ownedCluster closes its state store along with the cluster.
type ownedCluster struct {
	cluster.Cluster
	store kv.Store
}

func (c *ownedCluster) Close() error {
	var merr *multierror.Error
	if err := c.Cluster.Close(); err != nil {
		merr = multierror.Append(merr, err)
	}
	if err := c.store.Close(); err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, "close cluster state"))
	}
	return merr.ErrorOrNil()
}

// RunWorker runs a worker process until it receives SIGINT or SIGTERM.
func RunWorker(opt Options) (err error) {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if len(opt.EtcdEndpoints) == 0 {
		return ErrNoClusterState
	}
	ctx, cancel := util.ContextWithSignal(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := OpenCluster(opt)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	lw, err := StartLocalWorkers(c, 1, opt.Worker)
	if err != nil {
		return errors.Wrap(err, "init worker")
	}
	select {
	case <-ctx.Done():
	case serveErr := <-lw.Err():
		err = serveErr
	}
	if closeErr := lw.Close(); closeErr != nil {
		log.Error("Failed to shutdown worker: {}", closeErr)
	}
	log.Info("Bye")
	return err
}

// Render renders an image on the worker group and writes it to Options.OutputPath.
// If Options.LocalWorkers is positive, that number of workers are started in this process
// over loopback and form the whole worker group. Options.Coordinator.Workers is then ignored,
// and other workers sharing the cluster state are never scheduled.
func Render(ctx context.Context, opt Options) (g *grid.Grid, err error) {
	c, err := OpenCluster(opt)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			log.Warn("Failed to close cluster: {}", closeErr)
		}
	}()

	if opt.LocalWorkers > 0 {
		if len(opt.EtcdEndpoints) > 0 {
			log.Info("Rendering only on the {} local workers, not on other workers in etcd", opt.LocalWorkers)
		}
		var wopt worker.Options
		wopt, opt.Coordinator = scopeToLocalWorkers(opt)
		lw, err := StartLocalWorkers(c, opt.LocalWorkers, wopt)
		if err != nil {
			return nil, errors.Wrap(err, "start local workers")
		}
		defer func() {
			if closeErr := lw.Close(); closeErr != nil {
				log.Warn("Failed to close local workers: {}", closeErr)
			}
		}()

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go abortOnError(ctx, cancel, lw.Err())
	}

	co, err := coordinator.New(c, opt.Fractal, opt.Coordinator)
	if err != nil {
		return nil, err
	}
	log.Info("Rendering {}x{} image on {} workers as {}", opt.Fractal.Width, opt.Fractal.Height, opt.Coordinator.Workers, co.ID)
	return co.Run(ctx, coordinator.ImageWriterFunc(func(g *grid.Grid) error {
		return ppm.WriteFile(opt.OutputPath, g)
	}))
}

// localWorkerTag marks the workers started by a render with the group they belong to.
const localWorkerTag = "mandelmr.local"

// scopeToLocalWorkers returns options of local workers, and coordinator options
// which only select them.
func scopeToLocalWorkers(opt Options) (worker.Options, coordinator.Options) {
	group := util.GenerateID("L")

	wopt := opt.Worker
	wopt.ListenHost = "127.0.0.1:"
	wopt.AdvertisedHost = "127.0.0.1:"
	wopt.NodeTags = lo.Assign(opt.Worker.NodeTags, map[string]string{localWorkerTag: group})

	copt := opt.Coordinator
	copt.Workers = opt.LocalWorkers
	copt.NodeSelector = lo.Assign(opt.Coordinator.NodeSelector, map[string]string{localWorkerTag: group})
	return wopt, copt
}

func abortOnError(ctx context.Context, cancel context.CancelFunc, errs <-chan error) {
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			log.Error("Local worker failed: {}", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
