package metric

import (
	"sort"
	"strconv"
	"strings"

	"github.com/thoas/go-funk"
)

// Counter names shared by coordinators and workers.
const (
	PixelsKey  = "pixels"
	RowsKey    = "rows"
	BatchesKey = "batches"
)

const (
	workerKeyPrefix = "worker"
	workerKeySuffix = ".pixels"
)

// Metrics are counters of a render, or of a row range on a worker.
type Metrics map[string]uint64

// WorkerPixelsKey is the counter of pixels received from the worker.
func WorkerPixelsKey(workerID int) string {
	return workerKeyPrefix + strconv.Itoa(workerID) + workerKeySuffix
}

func parseWorkerPixelsKey(key string) (workerID int, ok bool) {
	if !strings.HasPrefix(key, workerKeyPrefix) || !strings.HasSuffix(key, workerKeySuffix) {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(key, workerKeyPrefix), workerKeySuffix))
	if err != nil {
		return 0, false
	}
	return id, true
}

// WorkerPixels returns pixel counts keyed by worker ID.
func (m Metrics) WorkerPixels() map[int]uint64 {
	pixels := make(map[int]uint64)
	for k, v := range m {
		if id, ok := parseWorkerPixelsKey(k); ok {
			pixels[id] = v
		}
	}
	return pixels
}

// Pixels is the number of pixels counted, either per worker or as a whole.
func (m Metrics) Pixels() (total uint64) {
	workers := m.WorkerPixels()
	if len(workers) == 0 {
		return m[PixelsKey]
	}
	for _, v := range workers {
		total += v
	}
	return total
}

// String lists plain counters alphabetically, followed by
// pixels of each worker in ID order with their share of the image.
func (m Metrics) String() string {
	workers := m.WorkerPixels()
	keys := funk.FilterString(funk.Keys(m).([]string), func(k string) bool {
		_, ok := parseWorkerPixelsKey(k)
		return !ok
	})
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(" - " + key + ": " + strconv.FormatUint(m[key], 10) + "\n")
	}
	if len(workers) == 0 {
		return sb.String()
	}

	ids := funk.Keys(workers).([]int)
	sort.Ints(ids)
	total := m.Pixels()
	for _, id := range ids {
		share := 0.0
		if total > 0 {
			share = float64(workers[id]) * 100 / float64(total)
		}
		sb.WriteString(" - worker #" + strconv.Itoa(id) + ": " + strconv.FormatUint(workers[id], 10) +
			" pixels (" + strconv.FormatFloat(share, 'f', 1, 64) + "%)\n")
	}
	return sb.String()
}
