// Package audiotrack builds the master audio track: one buffer spanning the
// whole timeline, with each segment's narration overlaid at its computed
// offset. The core operates on 16-bit mono PCM in memory so placement is
// sample-exact and re-running on identical input yields identical output.
package audiotrack

import (
	"fmt"
	"math"

	"github.com/ivlev/storyreel/internal/timeline"
)

const DefaultSampleRate = 44100

// ClipLoader resolves a narration handle into mono PCM at the assembler's
// sample rate.
type ClipLoader interface {
	Load(path string) ([]int16, error)
}

type Assembler struct {
	SampleRate  int
	ClipFadeMs  int // per-clip fade to avoid clicks
	TrackFadeMs int // gentle fade over the whole track
	Loader      ClipLoader
}

func NewAssembler(loader ClipLoader) *Assembler {
	return &Assembler{
		SampleRate:  DefaultSampleRate,
		ClipFadeMs:  100,
		TrackFadeMs: 150,
		Loader:      loader,
	}
}

// Assemble allocates silence of exactly totalDuration and overlays every
// entry's narration at its start offset. Narration longer than its slot is
// trimmed; shorter narration leaves the remainder of the slot silent. A
// missing clip is skipped with a warning and its span stays silent — the
// output duration never depends on partial failures.
func (a *Assembler) Assemble(entries []timeline.Entry, totalDuration float64) ([]int16, []string) {
	master := make([]int16, a.samplesFor(totalDuration))
	var warnings []string

	for _, e := range entries {
		if e.Narration == "" {
			continue
		}
		clip, err := a.Loader.Load(e.Narration)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("segment %d: narration %s skipped: %v", e.SegmentID, e.Narration, err))
			continue
		}

		slot := a.samplesFor(e.Duration)
		if len(clip) > slot {
			clip = clip[:slot]
		}
		fade := a.samplesFor(float64(a.ClipFadeMs) / 1000)
		applyFades(clip, fade)

		overlay(master, clip, a.samplesFor(e.Start))
	}

	applyFades(master, a.samplesFor(float64(a.TrackFadeMs)/1000))
	return master, warnings
}

// MixMusic overlays a background music bed under the narration: the clip is
// looped to the track length, attenuated and wrapped in a long fade
// envelope (5s in/out, shrunk proportionally on short tracks).
func (a *Assembler) MixMusic(master []int16, music []int16, volume float64) {
	if len(music) == 0 || len(master) == 0 {
		return
	}

	fade := a.samplesFor(5.0)
	if 2*fade > len(master) {
		fade = len(master) / 10
	}

	bed := make([]int16, len(master))
	for i := range bed {
		v := float64(music[i%len(music)]) * volume
		if i < fade {
			v *= float64(i) / float64(fade)
		}
		if tail := len(bed) - 1 - i; tail < fade {
			v *= float64(tail) / float64(fade)
		}
		bed[i] = int16(v)
	}
	overlay(master, bed, 0)
}

func (a *Assembler) samplesFor(seconds float64) int {
	return int(math.Round(seconds * float64(a.SampleRate)))
}

// overlay adds clip into master at the given sample offset, clamping to the
// int16 range. Addition, not replacement: overlapping audio is summed.
func overlay(master, clip []int16, at int) {
	for i, s := range clip {
		j := at + i
		if j < 0 {
			continue
		}
		if j >= len(master) {
			break
		}
		sum := int32(master[j]) + int32(s)
		if sum > math.MaxInt16 {
			sum = math.MaxInt16
		}
		if sum < math.MinInt16 {
			sum = math.MinInt16
		}
		master[j] = int16(sum)
	}
}

// applyFades applies linear fade-in/out ramps of n samples. Clips too short
// to hold both ramps are left untouched.
func applyFades(buf []int16, n int) {
	if n <= 0 || len(buf) < 3*n {
		return
	}
	for i := 0; i < n; i++ {
		g := float64(i) / float64(n)
		buf[i] = int16(float64(buf[i]) * g)
		buf[len(buf)-1-i] = int16(float64(buf[len(buf)-1-i]) * g)
	}
}
