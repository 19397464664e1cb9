package fractal

// Mapper translates pixel indices into points of the plane region.
type Mapper struct {
	realMin, imagMin   float64
	realStep, imagStep float64
}

func NewMapper(c Config) Mapper {
	return Mapper{
		realMin: c.RealMin,
		imagMin: c.ImagMin,
		// the step is divided before multiplying by the pixel index;
		// reordering it changes rounding of the rendered image.
		realStep: (c.RealMax - c.RealMin) / float64(c.Width),
		imagStep: (c.ImagMax - c.ImagMin) / float64(c.Height),
	}
}

// Map returns the plane point of the pixel (x, y).
// Products are rounded before the addition, so no platform fuses them into an FMA.
func (m Mapper) Map(x, y int) PlanePoint {
	return PlanePoint{
		Real: float64(float64(x)*m.realStep) + m.realMin,
		Imag: float64(float64(y)*m.imagStep) + m.imagMin,
	}
}
