package partitions

import (
	"sort"

	"github.com/ab180/mandelmr/cluster/node"
	"github.com/airbloc/logger"
	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
)

var log = logger.New("partition")

// ErrInsufficientWorkers is returned when fewer worker nodes are available than assignments.
var ErrInsufficientWorkers = errors.New("not enough worker nodes")

// Schedule places each assignment onto a distinct worker node. Nodes which are not workers,
// or which do not satisfy the selector given by WithNodeSelector, are never selected.
func Schedule(nodes []*node.Node, as Assignments, opt ...ScheduleOption) (Placements, error) {
	opts := buildScheduleOptions(opt)

	var candidates []*node.Node
	for _, n := range nodes {
		if n.Type != node.Worker {
			continue
		}
		if len(opts.NodeSelector) > 0 && !n.TagMatches(opts.NodeSelector) {
			continue
		}
		candidates = append(candidates, n)
	}
	if len(candidates) < len(as) {
		return nil, errors.Wrapf(ErrInsufficientWorkers, "%d workers requested, %d available", len(as), len(candidates))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Host < candidates[j].Host
	})
	if !opts.DisableShufflingNodes {
		candidates = funk.Shuffle(candidates).([]*node.Node)
	}
	if len(candidates) > len(as) {
		log.Verbose("{} of {} workers are left idle", len(candidates)-len(as), len(candidates))
	}

	placements := make(Placements, len(as))
	for i, a := range as {
		placements[i] = Placement{
			RowAssignment: a,
			Host:          candidates[i].Host,
		}
	}
	return placements, nil
}

type ScheduleOptions struct {
	DisableShufflingNodes bool
	NodeSelector          map[string]string
}

type ScheduleOption func(o *ScheduleOptions)

func WithoutShufflingNodes() ScheduleOption {
	return func(o *ScheduleOptions) {
		o.DisableShufflingNodes = true
	}
}

// WithNodeSelector restricts scheduling to nodes having all of the given tags.
func WithNodeSelector(selector map[string]string) ScheduleOption {
	return func(o *ScheduleOptions) {
		o.NodeSelector = selector
	}
}

func buildScheduleOptions(opts []ScheduleOption) (options ScheduleOptions) {
	for _, optFn := range opts {
		optFn(&options)
	}
	return options
}
