package fractal

// Escape iterates z = z^2 + c from z = 0 with c = (x0, y0) until |z|^2 > 4
// or maxIterations is reached. escaped reports count < maxIterations.
func Escape(x0, y0 float64, maxIterations int) (count int, escaped bool) {
	var zre, zim float64 = 0, 0
	for ; float64(zre*zre)+float64(zim*zim) <= 4 && count < maxIterations; count += 1 {
		// z = z ^ 2 + c
		// the explicit conversions stop the compiler from fusing into FMA,
		// which would make counts differ between architectures
		copyZre := zre
		zre = float64(zre*zre) - float64(zim*zim) + x0
		zim = float64(copyZre*zim*2) + y0
	}
	return count, count < maxIterations
}
