package output

import (
	"github.com/ab180/mandelmr/renderpb"
)

// Output is a destination of pixel results computed by a worker.
type Output interface {
	// Write sends the results. The slice is not retained after Write returns.
	Write([]renderpb.PixelResult) error
	Close() error
}

// BatchSender is a stream accepting pixel batches, such as renderpb.Worker_RenderServer.
type BatchSender interface {
	Send(*renderpb.PixelBatch) error
}

// StreamOutput sends every write as a sealed PixelBatch onto a stream.
type StreamOutput struct {
	stream   BatchSender
	workerID int
	seq      uint64
}

func NewStreamOutput(stream BatchSender, workerID int) *StreamOutput {
	return &StreamOutput{
		stream:   stream,
		workerID: workerID,
	}
}

func (s *StreamOutput) Write(pixels []renderpb.PixelResult) error {
	if len(pixels) == 0 {
		return nil
	}
	batch := renderpb.NewPixelBatch(s.workerID, s.seq, pixels)
	if err := s.stream.Send(batch); err != nil {
		return err
	}
	s.seq++
	return nil
}

// Sent returns the number of batches sent.
func (s *StreamOutput) Sent() uint64 {
	return s.seq
}

// Close is a no-op; the stream ends when the RPC handler returns.
func (s *StreamOutput) Close() error {
	return nil
}
