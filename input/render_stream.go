package input

import (
	"context"
	"io"

	"github.com/ab180/mandelmr/renderpb"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrCorruptedBatch is returned when a batch does not match its checksum.
	ErrCorruptedBatch = errors.New("pixel batch checksum mismatch")

	// ErrOutOfOrder is returned when batches of a stream skip or repeat a sequence number.
	ErrOutOfOrder = errors.New("pixel batch out of order")
)

// BatchReceiver is a stream of pixel batches, such as renderpb.Worker_RenderClient.
type BatchReceiver interface {
	Recv() (*renderpb.PixelBatch, error)
}

// RenderStream reads results of a worker from its Render stream.
type RenderStream struct {
	stream   BatchReceiver
	reader   *Reader
	workerID int

	nextSeq  uint64
	received atomic.Int64
}

// NewRenderStream creates a stream input and adds it to the reader.
func NewRenderStream(r *Reader, stream BatchReceiver, workerID int) *RenderStream {
	rs := &RenderStream{
		stream:   stream,
		reader:   r,
		workerID: workerID,
	}
	r.Add(rs)
	return rs
}

// Dispatch forwards batches to the reader until the stream ends.
// A clean end of stream returns nil.
func (rs *RenderStream) Dispatch(ctx context.Context) error {
	defer rs.reader.Done()

	for {
		batch, err := rs.stream.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if status.Code(err) == codes.Canceled && ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrapf(err, "receive from worker #%d", rs.workerID)
		}
		if !batch.Verify() {
			return errors.Wrapf(ErrCorruptedBatch, "batch #%d of worker #%d", batch.Seq, rs.workerID)
		}
		if batch.Seq != rs.nextSeq {
			return errors.Wrapf(ErrOutOfOrder, "worker #%d: expected batch #%d, got #%d", rs.workerID, rs.nextSeq, batch.Seq)
		}
		rs.nextSeq++

		select {
		case rs.reader.C <- batch:
			rs.received.Add(int64(len(batch.Pixels)))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (rs *RenderStream) WorkerID() int {
	return rs.workerID
}

func (rs *RenderStream) Received() int64 {
	return rs.received.Load()
}
