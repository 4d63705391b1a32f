package motion

import (
	"math"

	"github.com/ivlev/storyreel/internal/script"
)

// Transform describes the camera state for one frame: a zoom factor and a
// pan offset expressed as a fraction of the frame dimension. Every profile
// keeps its magnitude under ~10% of the frame so the movement stays subtle.
type Transform struct {
	Zoom    float64
	OffsetX float64
	OffsetY float64
}

type profileDef struct {
	ease      func(float64) float64
	transform func(eased float64) Transform
}

// profiles is the closed set of motion profiles. Adding a profile is a
// single entry here; unknown names fall back to a static full view.
var profiles = map[script.MotionProfile]profileDef{
	script.MotionIn: {
		ease: easeSmoothstep,
		transform: func(t float64) Transform {
			return Transform{Zoom: lerp(1.0, 1.10, t)}
		},
	},
	script.MotionForwardPush: {
		ease: easeSmoothstep,
		transform: func(t float64) Transform {
			return Transform{Zoom: lerp(1.0, 1.08, t), OffsetY: lerp(0, -0.02, t)}
		},
	},
	script.MotionSlowPan: {
		ease: easeRaisedCosine,
		transform: func(t float64) Transform {
			return Transform{Zoom: 1.05, OffsetX: lerp(-0.05, 0.05, t)}
		},
	},
	script.MotionGentleZoomOut: {
		ease: easeSmoothstep,
		transform: func(t float64) Transform {
			return Transform{Zoom: lerp(1.10, 1.0, t)}
		},
	},
	script.MotionLookingUp: {
		ease: easeRaisedCosine,
		transform: func(t float64) Transform {
			return Transform{Zoom: 1.06, OffsetY: lerp(0.04, -0.04, t)}
		},
	},
	script.MotionFocusIn: {
		ease: easeSmoothstep,
		transform: func(t float64) Transform {
			return Transform{Zoom: lerp(1.02, 1.095, t)}
		},
	},
	script.MotionDrift: {
		ease: easeRaisedCosine,
		transform: func(t float64) Transform {
			return Transform{
				Zoom:    1.04,
				OffsetX: lerp(0.03, -0.03, t),
				OffsetY: lerp(0.015, -0.015, t),
			}
		},
	},
	script.MotionGentlePulse: {
		ease: easeIdentity,
		transform: func(t float64) Transform {
			return Transform{Zoom: 1.03 + 0.01*sin2pi(t)}
		},
	},
}

// TransformAt returns the camera transform for the given profile at
// progress in [0,1]. Unknown profiles yield the identity transform.
func TransformAt(p script.MotionProfile, progress float64) Transform {
	def, ok := profiles[p]
	if !ok {
		return Transform{Zoom: 1.0}
	}
	tr := def.transform(def.ease(progress))
	if tr.Zoom < 1.0 {
		tr.Zoom = 1.0
	}
	return tr
}

// FrameCount is the number of frames a clip of the given duration occupies.
func FrameCount(duration float64, fps int) int {
	n := int(math.Round(duration * float64(fps)))
	if n < 1 {
		n = 1
	}
	return n
}
