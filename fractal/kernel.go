package fractal

// escapeRadiusSquared is the squared escape radius (|z| >= 2).
const escapeRadiusSquared = 4.0

// PlanePoint is a point in the rendered plane region.
type PlanePoint struct {
	Real float64
	Imag float64
}

// EscapeTime iterates z = z^2 + c from z = 0 and returns the number of iterations
// performed before |z|^2 reached 4, or maxIter if the orbit stayed bounded.
// The result is always within [0, maxIter].
func EscapeTime(c PlanePoint, maxIter int) int {
	var zr, zi, magnitude float64
	n := 0
	for n < maxIter && magnitude < escapeRadiusSquared {
		// every product is rounded on its own; see Mapper.Map
		zr, zi = float64(zr*zr)-float64(zi*zi)+c.Real, float64(zr*zi)+float64(zi*zr)+c.Imag
		magnitude = float64(zr*zr) + float64(zi*zi)
		n++
	}
	return n
}
