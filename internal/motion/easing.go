package motion

import "math"

// easeSmoothstep applies the cubic smoothstep function (3t^2 - 2t^3)
func easeSmoothstep(t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

// easeRaisedCosine applies a raised-cosine ease used for pan-type profiles
func easeRaisedCosine(t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return (1 - math.Cos(math.Pi*t)) / 2
}

// easeIdentity passes progress through unchanged (pulse-type profiles)
func easeIdentity(t float64) float64 {
	return t
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func sin2pi(t float64) float64 {
	return math.Sin(2 * math.Pi * t)
}
