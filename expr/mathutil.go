package expr

import "math"

func floorf(x float64) float64 { return math.Floor(x) }

func modf(x, y float64) float64 {
	m := math.Mod(x, y)
	if m != 0 && (m < 0) != (y < 0) {
		m += y
	}
	return m
}

func powf(x, y float64) float64 { return math.Pow(x, y) }
