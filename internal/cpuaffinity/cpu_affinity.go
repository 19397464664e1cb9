//go:build !linux
// +build !linux

package cpuaffinity

import (
	"sync"

	"github.com/airbloc/logger"
)

var log = logger.New("cpuaffinity")

var warnOnce sync.Once

// Scheduler does not pin anything on systems other than linux.
type Scheduler struct{}

// Occupation is a core held by a compute goroutine.
type Occupation struct {
	RenderID string
	Core     int
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) Occupy(string) *Occupation {
	warnOnce.Do(func() {
		log.Warn("CPU affinity is only supported on linux")
	})
	return nil
}

func (s *Scheduler) Release(*Occupation) {}

func (s *Scheduler) Load() map[int]int {
	return map[int]int{}
}
