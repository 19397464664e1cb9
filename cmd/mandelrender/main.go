package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/ab180/mandelmr"
	"github.com/ab180/mandelmr/fractal"
	"github.com/ab180/mandelmr/internal/util"
	"github.com/ab180/mandelmr/ppm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func main() {
	opt := mandelmr.DefaultOptions()

	etcd := flag.String("etcd", "", "comma-separated etcd endpoints (empty runs the cluster state in memory)")
	flag.StringVar(&opt.EtcdNamespace, "namespace", opt.EtcdNamespace, "etcd key namespace")
	flag.IntVar(&opt.LocalWorkers, "local", 0, "number of workers started in this process, forming the whole worker group")
	flag.IntVar(&opt.Coordinator.Workers, "workers", opt.Coordinator.Workers, "size of the worker group (defaults to -local if given)")
	flag.DurationVar(&opt.Coordinator.GatherTimeout, "timeout", opt.Coordinator.GatherTimeout, "time to wait for every worker's results")
	flag.StringVar(&opt.OutputPath, "o", opt.OutputPath, "output image path")
	sequential := flag.Bool("sequential", false, "render in this process without workers")

	flag.IntVar(&opt.Fractal.Width, "width", opt.Fractal.Width, "image width in pixels")
	flag.IntVar(&opt.Fractal.Height, "height", opt.Fractal.Height, "image height in pixels")
	flag.IntVar(&opt.Fractal.MaxIter, "max-iter", opt.Fractal.MaxIter, "iteration cap")
	flag.Float64Var(&opt.Fractal.RealMin, "real-min", opt.Fractal.RealMin, "left bound of the real axis")
	flag.Float64Var(&opt.Fractal.RealMax, "real-max", opt.Fractal.RealMax, "right bound of the real axis")
	flag.Float64Var(&opt.Fractal.ImagMin, "imag-min", opt.Fractal.ImagMin, "bottom bound of the imaginary axis")
	flag.Float64Var(&opt.Fractal.ImagMax, "imag-max", opt.Fractal.ImagMax, "top bound of the imaginary axis")
	flag.Parse()

	workersSet := false
	flag.Visit(func(f *flag.Flag) {
		workersSet = workersSet || f.Name == "workers"
	})
	if err := checkWorkerGroup(opt, workersSet); err != nil {
		log.Error().Err(err).Msg("invalid flags")
		os.Exit(2)
	}

	for _, ep := range strings.Split(*etcd, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			opt.EtcdEndpoints = append(opt.EtcdEndpoints, ep)
		}
	}

	if *sequential {
		if err := renderSequential(opt); err != nil {
			log.Error().Err(err).Msg("sequential render failed")
			os.Exit(1)
		}
		return
	}
	if len(opt.EtcdEndpoints) == 0 && opt.LocalWorkers == 0 {
		log.Error().Msg("either -etcd or -local is required")
		os.Exit(2)
	}

	ctx, cancel := util.ContextWithSignal(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	if _, err := mandelmr.Render(ctx, opt); err != nil {
		log.Error().Err(err).Msg("render failed")
		cancel()
		os.Exit(1)
	}
	log.Info().
		Str("output", opt.OutputPath).
		Dur("elapsed", time.Since(startedAt)).
		Msg("render done")
}

// checkWorkerGroup rejects a -workers which disagrees with -local,
// since local workers form the whole group.
func checkWorkerGroup(opt mandelmr.Options, workersSet bool) error {
	if opt.LocalWorkers < 0 {
		return errors.Errorf("-local must not be negative, got %d", opt.LocalWorkers)
	}
	if opt.LocalWorkers > 0 && workersSet && opt.Coordinator.Workers != opt.LocalWorkers {
		return errors.Errorf("-workers %d conflicts with -local %d", opt.Coordinator.Workers, opt.LocalWorkers)
	}
	return nil
}

func renderSequential(opt mandelmr.Options) error {
	if err := opt.Fractal.Validate(); err != nil {
		return err
	}
	path := opt.OutputPath
	if path == mandelmr.DefaultOutputPath {
		path = mandelmr.SequentialOutputPath
	}
	startedAt := time.Now()
	g := fractal.RenderSequential(opt.Fractal)
	if err := ppm.WriteFile(path, g); err != nil {
		return err
	}
	log.Info().
		Str("output", path).
		Dur("elapsed", time.Since(startedAt)).
		Msg("sequential render done")
	return nil
}
