package output

import (
	"sync"
	"time"

	"github.com/ab180/mandelmr/renderpb"
	"github.com/pkg/errors"
)

// BufferedOutput collects pixels into batches of a fixed size before writing them to the
// output. With a max delay, a partial batch is also written once its oldest pixel has
// waited that long, so the coordinator sees progress of slowly escaping rows.
type BufferedOutput struct {
	mu     sync.Mutex
	output Output
	buf    []renderpb.PixelResult
	offset int

	maxDelay time.Duration
	oldest   time.Time
	now      func() time.Time
}

type BufferOption func(b *BufferedOutput)

// WithMaxDelay bounds how long a pixel waits in a partial batch. Zero disables it.
func WithMaxDelay(d time.Duration) BufferOption {
	return func(b *BufferedOutput) {
		b.maxDelay = d
	}
}

func NewBufferedOutput(output Output, size int, opts ...BufferOption) *BufferedOutput {
	if size <= 0 {
		panic("batch size must be positive")
	}
	b := &BufferedOutput{
		output: output,
		buf:    make([]renderpb.PixelResult, size),
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *BufferedOutput) Write(pixels ...renderpb.PixelResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offset == 0 && len(pixels) > 0 {
		b.oldest = b.now()
	}
	for len(pixels) > 0 {
		n := copy(b.buf[b.offset:], pixels)
		b.offset += n
		pixels = pixels[n:]
		if b.offset == len(b.buf) {
			if err := b.flush(); err != nil {
				return err
			}
			if len(pixels) > 0 {
				b.oldest = b.now()
			}
		}
	}
	if b.maxDelay > 0 && b.offset > 0 && b.now().Sub(b.oldest) >= b.maxDelay {
		return b.flush()
	}
	return nil
}

func (b *BufferedOutput) flush() error {
	if b.offset == 0 {
		return nil
	}
	if err := b.output.Write(b.buf[:b.offset]); err != nil {
		return err
	}
	b.offset = 0
	return nil
}

// Flush writes the partial batch, if any.
func (b *BufferedOutput) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush()
}

// Close writes the partial batch and closes the output.
func (b *BufferedOutput) Close() error {
	if err := b.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	return b.output.Close()
}
