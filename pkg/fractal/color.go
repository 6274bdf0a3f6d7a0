package fractal

import "math"

const (
	// Bounded is the color of points that never escape: opaque black.
	Bounded uint32 = 0xFF000000

	startHue   = 280
	saturation = 0.8
)

// Color maps an escape count to an ARGB pixel. Escaped points walk the hue
// down from 280 degrees to 0 and darken as count approaches maxIterations;
// bounded points are opaque black.
func Color(count, maxIterations int) uint32 {
	if count >= maxIterations {
		return Bounded
	}
	t := float64(count) / float64(maxIterations)
	// the hue is truncated to whole degrees
	hue := int(float64(startHue) - float64(t*startHue))
	brightness := 1.0 - float64(t*0.8)
	return 0xFF000000 | (HSBToARGB(float32(float64(hue)/360.0), saturation, float32(brightness)) & 0x00FFFFFF)
}

// HSBToARGB converts hue (fraction of a turn), saturation and brightness to
// an opaque ARGB pixel. All arithmetic is float32 and every intermediate is
// rounded explicitly, so results match other HSBtoRGB implementations bit for bit.
func HSBToARGB(hue, saturation, brightness float32) uint32 {
	var r, g, b uint32
	if saturation == 0 {
		r = channel(brightness)
		return 0xFF000000 | r<<16 | r<<8 | r
	}
	h := float32(hue-float32(math.Floor(float64(hue)))) * 6
	f := h - float32(math.Floor(float64(h)))
	p := brightness * (1 - saturation)
	q := brightness * (1 - float32(saturation*f))
	t := brightness * (1 - float32(saturation*(1-f)))
	switch int(h) {
	case 0:
		r, g, b = channel(brightness), channel(t), channel(p)
	case 1:
		r, g, b = channel(q), channel(brightness), channel(p)
	case 2:
		r, g, b = channel(p), channel(brightness), channel(t)
	case 3:
		r, g, b = channel(p), channel(q), channel(brightness)
	case 4:
		r, g, b = channel(t), channel(p), channel(brightness)
	case 5:
		r, g, b = channel(brightness), channel(p), channel(q)
	}
	return 0xFF000000 | r<<16 | g<<8 | b
}

func channel(v float32) uint32 {
	return uint32(int32(float32(v*255) + 0.5))
}
