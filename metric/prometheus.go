package metric

import (
	"github.com/ab180/mandelmr/cluster/node"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerLabels are vector definitions for worker-level metrics.
var WorkerLabels = []string{"host", "tag"}

var RunningRendersGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "mandelmr_running_renders",
	Help: "The current number of renders driven by the coordinator",
})

var RenderDurationSummary = promauto.NewSummary(prometheus.SummaryOpts{
	Name: "mandelmr_render_duration_sec",
	Help: "Distributed render duration in seconds",
})

var PixelsComputedCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mandelmr_pixels_computed_total",
		Help: "The number of pixels computed per worker node",
	},
	WorkerLabels,
)

var RunningTasksGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "mandelmr_running_tasks",
		Help: "The current number of row ranges being computed per worker node",
	},
	WorkerLabels,
)

// WorkerLabelValuesFrom extracts label values for worker-level metrics from a node information.
func WorkerLabelValuesFrom(n *node.Node) prometheus.Labels {
	return prometheus.Labels{
		"host": n.Host,
		"tag":  n.TagString(),
	}
}
