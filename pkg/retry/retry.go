package retry

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Do runs a given function with retry.
func Do(fn func() error, opts ...OptionFunc) error {
	_, err := DoWithResult(func() (struct{}, error) {
		return struct{}{}, fn()
	}, opts...)
	return err
}

// DoWithResult runs a given function with retry. Errors of every attempt are
// collected into the returned error once the retry count is exceeded.
func DoWithResult[T any](fn func() (T, error), opts ...OptionFunc) (T, error) {
	opt := defaultOption()
	for _, o := range opts {
		o(&opt)
	}

	var errs error
	for attempt := 1; ; attempt++ {
		t, err := fn()
		if err == nil {
			return t, nil
		}
		if opt.shouldGiveUp != nil && opt.shouldGiveUp(err) {
			return t, err
		}
		errs = multierror.Append(errs, err)
		if attempt >= opt.maxRetryCount {
			return t, errors.Wrapf(errs, "retry count exceeded: %d", attempt)
		}
		time.Sleep(opt.delay)
	}
}
