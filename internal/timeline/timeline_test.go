package timeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// stubFrames creates a chunk directory with n tiny frame files. Compile
// never decodes frames, so file contents are irrelevant.
func stubFrames(t *testing.T, root, name string, n int) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", i))
		if err := os.WriteFile(path, []byte{0x89}, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCompileThreeSegmentScenario(t *testing.T) {
	// 3 сегмента: озвучка 8.0/7.0/7.5s при 30 fps, переходы по 1s
	root := t.TempDir()
	chunks := []Chunk{
		{Dir: stubFrames(t, root, "seg_001", 240), SegmentID: 1, Narration: "n1.mp3"},
		{Dir: stubFrames(t, root, "trans_001_002", 30), Transition: true},
		{Dir: stubFrames(t, root, "seg_002", 210), SegmentID: 2, Narration: "n2.mp3"},
		{Dir: stubFrames(t, root, "trans_002_003", 30), Transition: true},
		{Dir: stubFrames(t, root, "seg_003", 225), SegmentID: 3, Narration: "n3.mp3"},
	}

	masterDir := filepath.Join(root, "master")
	tl, warnings, err := Compile(chunks, 30, masterDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if tl.TotalFrames != 735 {
		t.Errorf("expected 735 master frames, got %d", tl.TotalFrames)
	}
	if math.Abs(tl.TotalDuration-24.5) > 1e-3 {
		t.Errorf("expected total duration 24.5s, got %f", tl.TotalDuration)
	}

	expectedStarts := []float64{0.0, 9.0, 17.0}
	if len(tl.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(tl.Entries))
	}
	for i, e := range tl.Entries {
		if math.Abs(e.Start-expectedStarts[i]) > 1e-3 {
			t.Errorf("entry %d: expected start %.3f, got %.3f", i, expectedStarts[i], e.Start)
		}
		t.Logf("entry %d: start=%.3fs dur=%.3fs narration=%s", i, e.Start, e.Duration, e.Narration)
	}

	// Мастер-каталог пронумерован монотонно с нулевым паддингом
	entries, err := os.ReadDir(masterDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 735 {
		t.Errorf("expected 735 files in master dir, got %d", len(entries))
	}
	if entries[0].Name() != "frame_000000.png" {
		t.Errorf("unexpected first master frame name: %s", entries[0].Name())
	}
	if entries[len(entries)-1].Name() != "frame_000734.png" {
		t.Errorf("unexpected last master frame name: %s", entries[len(entries)-1].Name())
	}
}

func TestCompileSkipsMissingChunkWithZeroContribution(t *testing.T) {
	root := t.TempDir()
	chunks := []Chunk{
		{Dir: stubFrames(t, root, "seg_001", 60), SegmentID: 1},
		{Dir: filepath.Join(root, "trans_missing"), Transition: true},
		{Dir: stubFrames(t, root, "seg_002", 90), SegmentID: 2},
	}

	tl, warnings, err := Compile(chunks, 30, filepath.Join(root, "master"))
	if err != nil {
		t.Fatal(err)
	}

	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
	if tl.TotalFrames != 150 {
		t.Errorf("missing chunk must contribute zero frames, got total %d", tl.TotalFrames)
	}
	// Второй сегмент стартует сразу после первого: пропуск не двоит и не теряет время
	if math.Abs(tl.Entries[1].Start-2.0) > 1e-3 {
		t.Errorf("expected second entry to start at 2.0s, got %f", tl.Entries[1].Start)
	}
	if math.Abs(tl.TotalDuration-5.0) > 1e-3 {
		t.Errorf("expected total 5.0s, got %f", tl.TotalDuration)
	}
}

func TestCompileEmptyDirContributesZero(t *testing.T) {
	root := t.TempDir()
	empty := filepath.Join(root, "seg_empty")
	os.MkdirAll(empty, 0755)

	chunks := []Chunk{
		{Dir: empty, SegmentID: 1},
		{Dir: stubFrames(t, root, "seg_002", 30), SegmentID: 2},
	}

	tl, warnings, err := Compile(chunks, 30, filepath.Join(root, "master"))
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 {
		t.Errorf("expected a warning for the empty dir, got %v", warnings)
	}
	if len(tl.Entries) != 1 || tl.Entries[0].SegmentID != 2 {
		t.Errorf("empty segment must be absent from entries: %+v", tl.Entries)
	}
	if tl.Entries[0].Start != 0 {
		t.Errorf("surviving segment must start at 0, got %f", tl.Entries[0].Start)
	}
}

func TestAudioEntries(t *testing.T) {
	tl := &Timeline{Entries: []Entry{
		{SegmentID: 1, Narration: "a.mp3"},
		{SegmentID: 2}, // без озвучки
		{SegmentID: 3, Narration: "c.mp3"},
	}}

	audio := tl.AudioEntries()
	if len(audio) != 2 {
		t.Fatalf("expected 2 audio-bearing entries, got %d", len(audio))
	}
	if audio[0].SegmentID != 1 || audio[1].SegmentID != 3 {
		t.Errorf("wrong audio entries: %+v", audio)
	}
}
