//go:build linux
// +build linux

package cpuaffinity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScheduler_SpreadsRenders(t *testing.T) {
	s := NewScheduler()
	if len(s.cores) < 2 {
		t.Skip("needs at least two schedulable cores")
	}

	cores := make(chan int, 2)
	release := make(chan struct{})
	done := make(chan struct{}, 2)
	for _, id := range []string{"R1", "R2"} {
		go func(id string) {
			o := s.Occupy(id)
			if o == nil {
				cores <- -1
			} else {
				cores <- o.Core
			}
			<-release
			s.Release(o)
			done <- struct{}{}
		}(id)
	}
	first, second := <-cores, <-cores
	close(release)
	<-done
	<-done
	if first < 0 || second < 0 {
		t.Skip("pinning is not permitted")
	}
	require.NotEqual(t, first, second)
	require.Empty(t, s.Load())
}
