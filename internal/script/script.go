package script

import (
	"fmt"
)

// MotionProfile selects the camera movement applied to a segment's image.
type MotionProfile string

const (
	MotionIn            MotionProfile = "in"
	MotionForwardPush   MotionProfile = "forward_push"
	MotionSlowPan       MotionProfile = "slow_pan"
	MotionGentleZoomOut MotionProfile = "gentle_zoom_out"
	MotionLookingUp     MotionProfile = "looking_up"
	MotionFocusIn       MotionProfile = "focus_in"
	MotionDrift         MotionProfile = "drift"
	MotionGentlePulse   MotionProfile = "gentle_pulse"
)

// TransitionType selects the bridging effect between two consecutive segments.
type TransitionType string

const (
	TransitionCut        TransitionType = "cut"
	TransitionCrossfade  TransitionType = "crossfade"
	TransitionSlideUp    TransitionType = "slide_up"
	TransitionSlideDown  TransitionType = "slide_down"
	TransitionSlideLeft  TransitionType = "slide_left"
	TransitionSlideRight TransitionType = "slide_right"
	TransitionFadeBlack  TransitionType = "fade_black"
	TransitionWipe       TransitionType = "wipe"
	TransitionWhipPan    TransitionType = "whip_pan"
	TransitionDissolve   TransitionType = "dissolve"
)

// CaptionMode controls how the caption is composited onto the frame.
type CaptionMode string

const (
	// CaptionOverlay draws a rounded semi-transparent box sized to the text.
	CaptionOverlay CaptionMode = "overlay"
	// CaptionBand draws a full-width opaque subtitle band at the bottom.
	CaptionBand CaptionMode = "band"
)

// Segment is one scene of the video: an image, a caption and (optionally)
// a narration clip produced by the external TTS collaborator.
type Segment struct {
	ID                int            `yaml:"id"`
	Caption           string         `yaml:"caption"`
	Duration          float64        `yaml:"duration"` // requested duration, seconds (advisory)
	Image             string         `yaml:"image"`
	Narration         string         `yaml:"narration,omitempty"`
	NarrationDuration float64        `yaml:"narration_duration,omitempty"` // measured, seconds
	Motion            MotionProfile  `yaml:"motion"`
	Transition        TransitionType `yaml:"transition,omitempty"` // to the next segment
	CaptionMode       CaptionMode    `yaml:"caption_mode,omitempty"`
}

// EffectiveDuration returns the duration the segment actually occupies on the
// timeline: the measured narration duration when present, otherwise the
// requested one.
func (s *Segment) EffectiveDuration() float64 {
	if s.Narration != "" && s.NarrationDuration > 0 {
		return s.NarrationDuration
	}
	return s.Duration
}

// Script is the ordered list of segments for one generation request,
// produced by the external script collaborator.
type Script struct {
	Version  string    `yaml:"version"`
	Title    string    `yaml:"title,omitempty"`
	Link     string    `yaml:"link,omitempty"`  // optional CTA link, rendered as a QR end-card
	Music    string    `yaml:"music,omitempty"` // optional background music bed
	Segments []Segment `yaml:"segments"`
}

var validMotions = map[MotionProfile]bool{
	MotionIn: true, MotionForwardPush: true, MotionSlowPan: true,
	MotionGentleZoomOut: true, MotionLookingUp: true, MotionFocusIn: true,
	MotionDrift: true, MotionGentlePulse: true,
}

var validTransitions = map[TransitionType]bool{
	TransitionCut: true, TransitionCrossfade: true,
	TransitionSlideUp: true, TransitionSlideDown: true,
	TransitionSlideLeft: true, TransitionSlideRight: true,
	TransitionFadeBlack: true, TransitionWipe: true,
	TransitionWhipPan: true, TransitionDissolve: true,
}

// Validate checks the script for structural problems that would make the
// timeline arithmetic meaningless. Missing assets are not checked here:
// they are recovered per-segment during rendering.
func (s *Script) Validate() error {
	if len(s.Segments) == 0 {
		return fmt.Errorf("script has no segments")
	}
	for i := range s.Segments {
		seg := &s.Segments[i]
		if seg.Duration <= 0 && seg.NarrationDuration <= 0 {
			return fmt.Errorf("segment %d: no usable duration", i+1)
		}
		if seg.Motion != "" && !validMotions[seg.Motion] {
			return fmt.Errorf("segment %d: unknown motion profile %q", i+1, seg.Motion)
		}
		if seg.Transition != "" && !validTransitions[seg.Transition] {
			return fmt.Errorf("segment %d: unknown transition %q", i+1, seg.Transition)
		}
	}
	return nil
}

// Normalize fills in defaults: 1-based IDs, default motion/transition/caption
// mode for segments that omit them.
func (s *Script) Normalize() {
	for i := range s.Segments {
		seg := &s.Segments[i]
		if seg.ID == 0 {
			seg.ID = i + 1
		}
		if seg.Motion == "" {
			seg.Motion = MotionIn
		}
		if seg.Transition == "" {
			seg.Transition = TransitionCrossfade
		}
		if seg.CaptionMode == "" {
			seg.CaptionMode = CaptionBand
		}
	}
}
