package mandelmr

import (
	"sync"

	"github.com/ab180/mandelmr/cluster"
	"github.com/ab180/mandelmr/internal/errchannel"
	"github.com/ab180/mandelmr/worker"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// LocalWorkers is a group of workers serving in the current process.
type LocalWorkers struct {
	Workers []*worker.Worker

	errs *errchannel.ErrChannel
	wg   sync.WaitGroup
}

// StartLocalWorkers starts n workers registered to the cluster.
// A ListenHost without a port lets each of them listen on a port chosen by the system.
func StartLocalWorkers(c cluster.Cluster, n int, opt worker.Options) (*LocalWorkers, error) {
	lw := &LocalWorkers{
		errs: errchannel.New(),
	}
	for i := 0; i < n; i++ {
		w, err := worker.New(c, opt)
		if err != nil {
			_ = lw.Close()
			return nil, errors.Wrapf(err, "start worker #%d", i+1)
		}
		lw.Workers = append(lw.Workers, w)

		lw.wg.Add(1)
		go func() {
			defer lw.wg.Done()
			if err := w.Start(); err != nil {
				lw.errs.Send(w.Host(), err)
			}
		}()
	}
	return lw, nil
}

// Err returns a channel receiving the first serving error of the workers,
// as an *errchannel.ServeError naming the failed worker.
func (lw *LocalWorkers) Err() <-chan error {
	return lw.errs.Recv()
}

// Close stops every worker and waits for them to finish serving.
func (lw *LocalWorkers) Close() error {
	var merr *multierror.Error
	for _, w := range lw.Workers {
		if err := w.Close(); err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "close %s", w.Host()))
		}
	}
	lw.wg.Wait()
	lw.errs.Close()
	if n := lw.errs.Dropped(); n > 0 {
		log.Warn("{} more local worker failures were not reported", n)
	}
	return merr.ErrorOrNil()
}
