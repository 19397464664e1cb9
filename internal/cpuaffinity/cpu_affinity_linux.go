//go:build linux
// +build linux

package cpuaffinity

import (
	"runtime"
	"sync"

	"github.com/airbloc/logger"
	"golang.org/x/sys/unix"
)

var log = logger.New("cpuaffinity")

// maxNumCPUs bounds the core IDs looked up in the affinity mask.
const maxNumCPUs = 1 << 10

// Scheduler pins compute goroutines of renders onto the least loaded cores
// allowed to the process. Core #0 is left to the Go runtime when there are others.
type Scheduler struct {
	mu       sync.Mutex
	original unix.CPUSet
	load     map[int]int
	cores    []int
}

// Occupation is a core held by a compute goroutine.
type Occupation struct {
	RenderID string
	Core     int
}

// NewScheduler reads the affinity mask of the process.
// It panics if the mask cannot be read.
func NewScheduler() *Scheduler {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		panic("read CPU affinity: " + err.Error())
	}

	s := &Scheduler{
		original: mask,
		load:     make(map[int]int),
	}
	for id := 0; id < maxNumCPUs; id++ {
		if mask.IsSet(id) {
			s.cores = append(s.cores, id)
		}
	}
	if len(s.cores) > 1 {
		s.cores = s.cores[1:]
	}
	return s
}

// Occupy locks the calling goroutine to its OS thread and pins the thread to the least
// loaded core. It returns nil if pinning failed, in which case only the thread lock holds.
func (s *Scheduler) Occupy(renderID string) *Occupation {
	runtime.LockOSThread()

	s.mu.Lock()
	defer s.mu.Unlock()

	core := s.cores[0]
	for _, id := range s.cores[1:] {
		if s.load[id] < s.load[core] {
			core = id
		}
	}

	var pinned unix.CPUSet
	pinned.Set(core)
	if err := unix.SchedSetaffinity(0, &pinned); err != nil {
		log.Warn("Failed to pin render {} to core #{}: {}", renderID, core, err)
		return nil
	}
	s.load[core]++
	log.Debug("Render {} pinned to core #{} (running {})", renderID, core, s.load[core])
	return &Occupation{RenderID: renderID, Core: core}
}

// Release restores the affinity of the calling goroutine and unlocks it from the thread.
func (s *Scheduler) Release(o *Occupation) {
	defer runtime.UnlockOSThread()
	if o == nil {
		return
	}

	s.mu.Lock()
	s.load[o.Core]--
	s.mu.Unlock()

	if err := unix.SchedSetaffinity(0, &s.original); err != nil {
		log.Warn("Failed to unpin render {} from core #{}: {}", o.RenderID, o.Core, err)
	}
}

// Load returns the number of compute goroutines pinned to each core.
func (s *Scheduler) Load() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	load := make(map[int]int, len(s.load))
	for id, n := range s.load {
		if n > 0 {
			load[id] = n
		}
	}
	return load
}
