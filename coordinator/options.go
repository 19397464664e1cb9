package coordinator

import (
	"time"

	"github.com/creasty/defaults"
)

type Options struct {
	// Workers is the fixed size of the worker group. It must be at least 1.
	Workers int `default:"3"`

	// GatherTimeout bounds the time waiting for results of every worker.
	GatherTimeout time.Duration `default:"5m"`

	AssignRetryCount int           `default:"3"`
	AssignRetryDelay time.Duration `default:"200ms"`

	// NodeSelector restricts the worker nodes by their tags.
	NodeSelector map[string]string `default:"{}"`

	// DisableShufflingNodes assigns row ranges to workers in the order of their hosts.
	DisableShufflingNodes bool `default:"false"`

	// QueueLength is the number of pixel batches buffered between streams and the grid.
	QueueLength int `default:"64"`

	// StatusTTL is how long the status of a render is kept in the cluster state.
	StatusTTL time.Duration `default:"1h"`
}

func DefaultOptions() (o Options) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}
