package transition

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/storyreel/internal/script"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 255
	}
	return img
}

func decodeFrame(t *testing.T, dir string, idx int) image.Image {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, fmt.Sprintf("frame_%05d.png", idx)))
	if err != nil {
		t.Fatalf("frame %d: %v", idx, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("frame %d: %v", idx, err)
	}
	return img
}

func TestEveryKindEmitsConfiguredFrameCount(t *testing.T) {
	kinds := []script.TransitionType{
		script.TransitionCut, script.TransitionCrossfade,
		script.TransitionSlideUp, script.TransitionSlideDown,
		script.TransitionSlideLeft, script.TransitionSlideRight,
		script.TransitionFadeBlack, script.TransitionWipe,
		script.TransitionWhipPan, script.TransitionDissolve,
	}

	prev := solidFrame(48, 48, color.RGBA{200, 40, 40, 255})
	next := solidFrame(48, 48, color.RGBA{40, 40, 200, 255})

	for _, kind := range kinds {
		dir := t.TempDir()
		n, err := Render(prev, next, Params{
			Kind: kind, Frames: 30, Width: 48, Height: 48, Seed: 7,
		}, dir)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if n != 30 {
			t.Errorf("%s: expected 30 frames, wrote %d", kind, n)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 30 {
			t.Errorf("%s: expected 30 files, found %d", kind, len(entries))
		}
	}
}

func TestCrossfadeEndpoints(t *testing.T) {
	prev := solidFrame(32, 32, color.RGBA{255, 0, 0, 255})
	next := solidFrame(32, 32, color.RGBA{0, 0, 255, 255})

	dir := t.TempDir()
	if _, err := Render(prev, next, Params{
		Kind: script.TransitionCrossfade, Frames: 30, Width: 32, Height: 32,
	}, dir); err != nil {
		t.Fatal(err)
	}

	first := decodeFrame(t, dir, 0)
	r, _, b, _ := first.At(16, 16).RGBA()
	if r>>8 != 255 || b>>8 != 0 {
		t.Errorf("first crossfade frame must equal the tail frame, got r=%d b=%d", r>>8, b>>8)
	}

	last := decodeFrame(t, dir, 29)
	r, _, b, _ = last.At(16, 16).RGBA()
	if r>>8 != 0 || b>>8 != 255 {
		t.Errorf("last crossfade frame must equal the head frame, got r=%d b=%d", r>>8, b>>8)
	}
}

func TestCaptionBandRepasted(t *testing.T) {
	prev := solidFrame(32, 40, color.RGBA{255, 0, 0, 255})
	next := solidFrame(32, 40, color.RGBA{0, 0, 255, 255})
	band := image.Rect(0, 34, 32, 40)
	// полоса субтитров на next отличима от остального кадра
	for y := band.Min.Y; y < band.Max.Y; y++ {
		for x := band.Min.X; x < band.Max.X; x++ {
			next.SetRGBA(x, y, color.RGBA{10, 250, 10, 255})
		}
	}

	dir := t.TempDir()
	if _, err := Render(prev, next, Params{
		Kind: script.TransitionCrossfade, Frames: 10, Width: 32, Height: 40, Band: band,
	}, dir); err != nil {
		t.Fatal(err)
	}

	// На любом кадре перехода полоса — это полоса назначения, без анимации
	for _, idx := range []int{0, 5, 9} {
		frame := decodeFrame(t, dir, idx)
		for y := band.Min.Y; y < band.Max.Y; y++ {
			for x := band.Min.X; x < band.Max.X; x++ {
				r, g, b, _ := frame.At(x, y).RGBA()
				if r>>8 != 10 || g>>8 != 250 || b>>8 != 10 {
					t.Fatalf("frame %d: caption band animated at (%d,%d)", idx, x, y)
				}
			}
		}
	}
}

func TestMissingSourcesDegradeToBlack(t *testing.T) {
	dir := t.TempDir()
	n, err := Render(nil, nil, Params{
		Kind: script.TransitionCrossfade, Frames: 12, Width: 24, Height: 24,
	}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 12 {
		t.Errorf("expected the configured 12 frames even without sources, got %d", n)
	}

	frame := decodeFrame(t, dir, 6)
	r, g, b, _ := frame.At(12, 12).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("synthesized frame must be black, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestDissolveDeterministicForSeed(t *testing.T) {
	prev := solidFrame(32, 32, color.RGBA{255, 0, 0, 255})
	next := solidFrame(32, 32, color.RGBA{0, 0, 255, 255})

	dirA := t.TempDir()
	dirB := t.TempDir()
	p := Params{Kind: script.TransitionDissolve, Frames: 20, Width: 32, Height: 32, Seed: 42}

	if _, err := Render(prev, next, p, dirA); err != nil {
		t.Fatal(err)
	}
	if _, err := Render(prev, next, p, dirB); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		a, err := os.ReadFile(filepath.Join(dirA, fmt.Sprintf("frame_%05d.png", i)))
		if err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, fmt.Sprintf("frame_%05d.png", i)))
		if err != nil {
			t.Fatal(err)
		}
		if string(a) != string(b) {
			t.Fatalf("dissolve frame %d differs between identical renders", i)
		}
	}
}
