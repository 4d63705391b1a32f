package audiotrack

import (
	"fmt"
	"testing"

	"github.com/ivlev/storyreel/internal/timeline"
)

// fakeLoader serves in-memory clips, so tests exercise the pure PCM core
// without ffmpeg.
type fakeLoader struct {
	clips map[string][]int16
}

func (l *fakeLoader) Load(path string) ([]int16, error) {
	clip, ok := l.clips[path]
	if !ok {
		return nil, fmt.Errorf("no such clip: %s", path)
	}
	out := make([]int16, len(clip))
	copy(out, clip)
	return out, nil
}

func constantClip(n int, v int16) []int16 {
	clip := make([]int16, n)
	for i := range clip {
		clip[i] = v
	}
	return clip
}

// testAssembler uses a 1 kHz rate so sample offsets are easy to reason about
func testAssembler(loader ClipLoader) *Assembler {
	a := NewAssembler(loader)
	a.SampleRate = 1000
	return a
}

func TestMasterDurationExact(t *testing.T) {
	loader := &fakeLoader{clips: map[string][]int16{
		"a": constantClip(500, 8000),
	}}
	a := testAssembler(loader)

	tests := []struct {
		entries []timeline.Entry
		total   float64
		samples int
	}{
		// с озвучкой
		{[]timeline.Entry{{Start: 0, Duration: 0.5, Narration: "a"}}, 2.0, 2000},
		// вовсе без озвучки: длительность мастера не зависит от наличия аудио
		{[]timeline.Entry{{Start: 0, Duration: 1.0}}, 3.5, 3500},
		// озвучка потеряна
		{[]timeline.Entry{{Start: 0, Duration: 1.0, Narration: "missing"}}, 1.25, 1250},
	}

	for _, tt := range tests {
		master, _ := a.Assemble(tt.entries, tt.total)
		if len(master) != tt.samples {
			t.Errorf("total %.2fs: expected %d samples, got %d", tt.total, tt.samples, len(master))
		}
	}
}

func TestNarrationTrimmedToSlot(t *testing.T) {
	// клип 0.9s против слота 0.5s: хвост обрезается, общая длительность не меняется
	loader := &fakeLoader{clips: map[string][]int16{
		"long": constantClip(900, 8000),
	}}
	a := testAssembler(loader)

	entries := []timeline.Entry{{Start: 0.5, Duration: 0.5, Narration: "long"}}
	master, warnings := a.Assemble(entries, 2.0)

	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(master) != 2000 {
		t.Fatalf("expected 2000 samples, got %d", len(master))
	}

	// за пределами слота [500, 1000) — тишина
	for i := 0; i < 500; i++ {
		if master[i] != 0 {
			t.Fatalf("expected silence before the slot at %d", i)
		}
	}
	for i := 1000; i < 2000; i++ {
		if master[i] != 0 {
			t.Fatalf("expected silence after the trimmed slot at %d", i)
		}
	}

	// середина слота несет сигнал
	if master[750] == 0 {
		t.Error("expected narration signal inside the slot")
	}
}

func TestShorterNarrationLeavesSilence(t *testing.T) {
	loader := &fakeLoader{clips: map[string][]int16{
		"short": constantClip(400, 8000), // 0.4s в слоте 1.0s
	}}
	a := testAssembler(loader)

	entries := []timeline.Entry{{Start: 0, Duration: 1.0, Narration: "short"}}
	master, _ := a.Assemble(entries, 1.0)

	for i := 450; i < 1000; i++ {
		if master[i] != 0 {
			t.Fatalf("remainder of the slot must be silent, found signal at %d", i)
		}
	}
}

func TestMissingClipSkippedWithWarning(t *testing.T) {
	a := testAssembler(&fakeLoader{clips: map[string][]int16{}})

	entries := []timeline.Entry{
		{SegmentID: 1, Start: 0, Duration: 0.5, Narration: "gone"},
		{SegmentID: 2, Start: 0.5, Duration: 0.5},
	}
	master, warnings := a.Assemble(entries, 1.0)

	if len(warnings) != 1 {
		t.Fatalf("expected one warning for the missing clip, got %v", warnings)
	}
	if len(master) != 1000 {
		t.Errorf("output duration must not depend on failures, got %d samples", len(master))
	}
	for _, s := range master {
		if s != 0 {
			t.Fatal("missing clip must leave its span silent")
		}
	}
}

func TestAssembleIdempotent(t *testing.T) {
	loader := &fakeLoader{clips: map[string][]int16{
		"a": constantClip(700, 12000),
		"b": constantClip(600, -9000),
	}}
	a := testAssembler(loader)

	entries := []timeline.Entry{
		{Start: 0, Duration: 0.7, Narration: "a"},
		{Start: 1.7, Duration: 0.6, Narration: "b"},
	}

	first, _ := a.Assemble(entries, 3.0)
	second, _ := a.Assemble(entries, 3.0)

	if len(first) != len(second) {
		t.Fatalf("durations differ between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("waveforms differ at sample %d: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestOverlayClampsToRange(t *testing.T) {
	loader := &fakeLoader{clips: map[string][]int16{
		"loud1": constantClip(1000, 30000),
		"loud2": constantClip(1000, 30000),
	}}
	a := testAssembler(loader)
	a.ClipFadeMs = 0
	a.TrackFadeMs = 0

	// два громких клипа в одном слоте: сложение, не замещение, с клампом
	entries := []timeline.Entry{
		{Start: 0, Duration: 1.0, Narration: "loud1"},
		{Start: 0, Duration: 1.0, Narration: "loud2"},
	}
	master, _ := a.Assemble(entries, 1.0)

	if master[500] != 32767 {
		t.Errorf("expected clamped overlay at max int16, got %d", master[500])
	}
}

func TestMixMusicKeepsLength(t *testing.T) {
	a := testAssembler(&fakeLoader{})
	master := make([]int16, 2000)
	music := constantClip(300, 10000)

	a.MixMusic(master, music, 0.5)

	if len(master) != 2000 {
		t.Fatalf("music mix must not change track length, got %d", len(master))
	}
	// в середине трека музыка слышна
	if master[1000] == 0 {
		t.Error("expected music bed in the middle of the track")
	}
	// края трека под фейдом
	if master[0] != 0 || master[len(master)-1] != 0 {
		t.Error("expected faded edges on the music bed")
	}
}
