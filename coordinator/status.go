package coordinator

import (
	"path"
	"time"

	"github.com/ab180/mandelmr/partitions"
)

const renderStatusNs = "status/renders"

// renderCounterKey counts renders started in the cluster.
const renderCounterKey = "counters/renders"

// RenderStatus is a progress of a render recorded in the cluster state.
type RenderStatus struct {
	ID          string                `json:"id"`
	Seq         int64                 `json:"seq"`
	State       State                 `json:"state"`
	Placements  partitions.Placements `json:"placements,omitempty"`
	Received    int                   `json:"received"`
	Total       int                   `json:"total"`
	Errors      []string              `json:"errors,omitempty"`
	StartedAt   time.Time             `json:"startedAt"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
}

func statusKey(renderID string) string {
	return path.Join(renderStatusNs, renderID)
}
