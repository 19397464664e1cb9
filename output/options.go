package output

import "time"

type Options struct {
	// BufferLength is the number of pixels sent in a batch.
	// The default value is a row of the default image width.
	BufferLength int `default:"1200"`

	// MaxBatchDelay sends a partial batch once its first pixel has waited this long.
	// Zero only sends full batches and the last one.
	MaxBatchDelay time.Duration `default:"500ms"`
}
