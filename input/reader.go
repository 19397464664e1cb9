package input

import (
	"sync"

	"github.com/ab180/mandelmr/renderpb"
	"go.uber.org/atomic"
)

// Input is a source of pixel batches fanned into a Reader.
type Input interface {
	// Received returns the number of pixels read from the input so far.
	Received() int64
}

// Reader fans in pixel batches of multiple inputs into a single channel.
// C is closed once every added input is done.
type Reader struct {
	C chan *renderpb.PixelBatch

	inputs    []Input
	lock      sync.RWMutex
	activeCnt atomic.Int64
	closed    atomic.Bool
}

func NewReader(queueLen int) *Reader {
	return &Reader{
		C: make(chan *renderpb.PixelBatch, queueLen),
	}
}

// Add registers an input. Every input must be added before any of them is done.
func (p *Reader) Add(in Input) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.inputs = append(p.inputs, in)
	p.activeCnt.Inc()
}

func (p *Reader) Done() {
	newActiveCnt := p.activeCnt.Dec()
	if newActiveCnt == 0 {
		p.Close()
	}
}

// Received returns the number of pixels read from all inputs.
func (p *Reader) Received() (n int64) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for _, in := range p.inputs {
		n += in.Received()
	}
	return
}

func (p *Reader) Close() {
	if swapped := p.closed.CAS(false, true); !swapped {
		// p.closed was true
		return
	}
	// with CAS, only a goroutine can enter here
	close(p.C)
}
