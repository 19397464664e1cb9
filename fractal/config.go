package fractal

import (
	"github.com/creasty/defaults"
	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned by Config.Validate when the run parameters cannot produce an image.
var ErrInvalidConfig = errors.New("invalid fractal config")

// Config is the immutable set of run parameters. It is fixed for the lifetime of a render
// and passed by value to every component which needs it.
type Config struct {
	// MaxIter is the iteration cap of the escape-time kernel.
	MaxIter int `default:"256" json:"maxIter"`

	Width  int `default:"1200" json:"width"`
	Height int `default:"1200" json:"height"`

	// plane region bounds
	RealMin float64 `default:"-2.5" json:"realMin"`
	RealMax float64 `default:"1.5" json:"realMax"`
	ImagMin float64 `default:"-2.0" json:"imagMin"`
	ImagMax float64 `default:"2.0" json:"imagMax"`
}

func DefaultConfig() (c Config) {
	if err := defaults.Set(&c); err != nil {
		panic(err)
	}
	return
}

// Pixels returns the number of pixels in the image.
func (c Config) Pixels() int {
	return c.Width * c.Height
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "resolution must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.MaxIter < 1 {
		return errors.Wrapf(ErrInvalidConfig, "iteration cap must be positive, got %d", c.MaxIter)
	}
	if !(c.RealMin < c.RealMax) {
		return errors.Wrapf(ErrInvalidConfig, "real bounds [%g, %g] are empty", c.RealMin, c.RealMax)
	}
	if !(c.ImagMin < c.ImagMax) {
		return errors.Wrapf(ErrInvalidConfig, "imaginary bounds [%g, %g] are empty", c.ImagMin, c.ImagMax)
	}
	return nil
}
