package integration

import (
	"strconv"
	"time"

	"github.com/ab180/mandelmr/cluster"
	"github.com/ab180/mandelmr/worker"
	. "github.com/smartystreets/goconvey/convey"
)

// LocalCluster is a group of workers serving on loopback in the test process.
type LocalCluster struct {
	Cluster cluster.Cluster
	Workers []*worker.Worker
}

// WithLocalCluster starts workers over loopback gRPC and stops them on the end of the convey scope.
// Each worker is tagged with its 1-indexed number as "No".
func WithLocalCluster(numWorkers int, fn func(lc *LocalCluster), options ...func(*worker.Options)) func() {
	return func() {
		st, closeStore := ProvideStore()

		clusterOpt := cluster.DefaultOptions()
		clusterOpt.HeartbeatInterval = time.Second
		c, err := cluster.Open(st, clusterOpt)
		So(err, ShouldBeNil)

		workers := make([]*worker.Worker, 0, numWorkers)
		Reset(func() {
			for _, w := range workers {
				So(w.Close(), ShouldBeNil)
			}
			So(c.Close(), ShouldBeNil)
			closeStore()
		})

		for i := 0; i < numWorkers; i++ {
			opt := worker.DefaultOptions()
			opt.ListenHost = "127.0.0.1:"
			opt.AdvertisedHost = "127.0.0.1:"
			opt.NodeTags["No"] = strconv.Itoa(i + 1)
			for _, o := range options {
				o(&opt)
			}

			w, err := worker.New(c, opt)
			So(err, ShouldBeNil)
			go func() {
				_ = w.Start()
			}()
			workers = append(workers, w)
		}

		// wait for workers to start serving
		deadline := time.Now().Add(2 * time.Second)
		for _, w := range workers {
			for w.State() != worker.AwaitingAssignment && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
		}

		fn(&LocalCluster{
			Cluster: c,
			Workers: workers,
		})
	}
}
