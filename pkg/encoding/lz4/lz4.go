// Package lz4 registers an LZ4 compressor for gRPC. Pixel batches are highly
// repetitive, so streams between workers and the coordinator are compressed with it.
package lz4

import (
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
	"google.golang.org/grpc/encoding"
)

// Name is the name of the compressor, used in grpc.UseCompressor.
const Name = "lz4"

func init() {
	encoding.RegisterCompressor(compressor{})
}

type compressor struct{}

func (compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	zw := writers.Get().(*pooledWriter)
	zw.Reset(w)
	return zw, nil
}

func (compressor) Decompress(r io.Reader) (io.Reader, error) {
	zr := readers.Get().(*pooledReader)
	zr.Reset(r)
	return zr, nil
}

func (compressor) Name() string {
	return Name
}

type pooledWriter struct {
	*lz4.Writer
}

func (w *pooledWriter) Close() error {
	defer writers.Put(w)
	return w.Writer.Close()
}

type pooledReader struct {
	*lz4.Reader
}

// Read returns the reader to the pool when the frame is fully consumed.
func (r *pooledReader) Read(p []byte) (n int, err error) {
	n, err = r.Reader.Read(p)
	if err == io.EOF {
		readers.Put(r)
	}
	return n, err
}

var (
	writers = sync.Pool{
		New: func() any {
			return &pooledWriter{Writer: lz4.NewWriter(nil)}
		},
	}
	readers = sync.Pool{
		New: func() any {
			return &pooledReader{Reader: lz4.NewReader(nil)}
		},
	}
)
