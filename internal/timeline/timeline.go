// Package timeline concatenates per-segment and per-transition frame
// sequences into one master sequence and computes the absolute playback
// offset of every segment. It does no media decoding: correctness here is
// purely arithmetic bookkeeping, and all downstream audio placement depends
// on it never drifting.
package timeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry places one segment on the master timeline. Narration may be empty:
// such entries occupy their span silently.
type Entry struct {
	SegmentID int
	Start     float64 // seconds from the beginning of the master sequence
	Duration  float64 // seconds
	Narration string  // audio handle, may be absent
}

// Chunk is one rendered frame directory in concatenation order:
// segment, transition, segment, transition, ..., segment.
type Chunk struct {
	Dir        string
	Transition bool
	SegmentID  int
	Narration  string
}

// Timeline is the compiled master sequence bookkeeping.
type Timeline struct {
	Entries       []Entry
	TotalDuration float64
	TotalFrames   int
}

// Compile copies every chunk's frames into masterDir under a single
// monotonic zero-padded index and returns the timeline entries. A missing
// or empty chunk directory is skipped with a warning and contributes
// exactly zero duration to the running offset.
func Compile(chunks []Chunk, fps int, masterDir string) (*Timeline, []string, error) {
	if fps <= 0 {
		return nil, nil, fmt.Errorf("fps must be positive, got %d", fps)
	}
	if err := os.MkdirAll(masterDir, 0755); err != nil {
		return nil, nil, err
	}

	tl := &Timeline{}
	var warnings []string
	offset := 0.0
	frameIdx := 0

	for _, c := range chunks {
		frames, err := listFrames(c.Dir)
		if err != nil || len(frames) == 0 {
			warnings = append(warnings, fmt.Sprintf("chunk %s is missing or empty, contributes 0s", c.Dir))
			continue
		}

		for _, src := range frames {
			dst := filepath.Join(masterDir, fmt.Sprintf("frame_%06d.png", frameIdx))
			if err := linkOrCopy(src, dst); err != nil {
				return nil, warnings, fmt.Errorf("copy frame %s: %w", src, err)
			}
			frameIdx++
		}

		dur := float64(len(frames)) / float64(fps)
		if !c.Transition {
			tl.Entries = append(tl.Entries, Entry{
				SegmentID: c.SegmentID,
				Start:     offset,
				Duration:  dur,
				Narration: c.Narration,
			})
		}
		offset += dur
	}

	tl.TotalDuration = offset
	tl.TotalFrames = frameIdx
	return tl, warnings, nil
}

// AudioEntries returns only the entries that carry a narration handle.
func (t *Timeline) AudioEntries() []Entry {
	var out []Entry
	for _, e := range t.Entries {
		if e.Narration != "" {
			out = append(out, e)
		}
	}
	return out
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var frames []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			frames = append(frames, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

// linkOrCopy hard-links the frame into the master directory and falls back
// to a byte copy on filesystems where linking fails.
func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
