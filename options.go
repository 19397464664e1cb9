package mandelmr

import (
	"github.com/ab180/mandelmr/cluster"
	"github.com/ab180/mandelmr/coordinator"
	"github.com/ab180/mandelmr/fractal"
	"github.com/ab180/mandelmr/kv"
	"github.com/ab180/mandelmr/worker"
	"github.com/creasty/defaults"
)

// DefaultOutputPath is where a distributed render is written unless overridden.
const DefaultOutputPath = "parallel_output_image.ppm"

// SequentialOutputPath is where a sequential render is written.
const SequentialOutputPath = "output_image.ppm"

type Options struct {
	// EtcdEndpoints is the cluster state shared by the coordinator and the workers.
	// Leaving it empty keeps the state in the process memory, which only works with LocalWorkers.
	EtcdEndpoints []string `default:"[]"`
	EtcdNamespace string   `default:"mandelmr/"`
	EtcdOptions   kv.EtcdOptions

	Cluster     cluster.Options
	Worker      worker.Options
	Coordinator coordinator.Options
	Fractal     fractal.Config

	// LocalWorkers is the number of workers started in the rendering process.
	LocalWorkers int    `default:"0"`
	OutputPath   string `default:"parallel_output_image.ppm"`
}

func DefaultOptions() (o Options) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}
