package motion

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/storyreel/internal/caption"
	"github.com/ivlev/storyreel/internal/script"
)

// Params describes one segment render job.
type Params struct {
	Duration     float64
	Profile      script.MotionProfile
	Caption      string
	CaptionMode  script.CaptionMode
	SegmentIndex int
}

// SegmentFrames is the result of rendering one segment. First and Last are
// retained copies used by the transition renderer.
type SegmentFrames struct {
	Count int
	First *image.RGBA
	Last  *image.RGBA
}

// Renderer turns one prepared base image into an ordered frame sequence.
// The base is expected at 2x the output resolution so the crop window can
// be resampled down without visible softness (same trick as supersampled
// zoompan input).
type Renderer struct {
	Width    int
	Height   int
	FPS      int
	Captions *caption.Renderer

	pool sync.Pool // кадровые буферы W×H, чтобы не дергать GC на каждый кадр
}

func NewRenderer(width, height, fps int, captions *caption.Renderer) *Renderer {
	r := &Renderer{Width: width, Height: height, FPS: fps, Captions: captions}
	r.pool.New = func() interface{} {
		return image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return r
}

// RenderSegment renders round(duration*fps) frames into outDir as
// frame_%05d.png. The caption is composited strictly after the geometric
// transform, and the brightness pulse is applied before the caption so the
// caption band stays pixel-stable across the whole segment.
func (r *Renderer) RenderSegment(base *image.RGBA, p Params, outDir string) (*SegmentFrames, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	count := FrameCount(p.Duration, r.FPS)
	result := &SegmentFrames{Count: count}

	for j := 0; j < count; j++ {
		progress := 0.0
		if count > 1 {
			progress = float64(j) / float64(count-1)
		}

		frame := r.pool.Get().(*image.RGBA)
		if !r.warp(base, TransformAt(p.Profile, progress), frame) {
			// Некорректное окно трансформации: отдаем немодифицированную
			// копию базового кадра, количество кадров не страдает.
			xdraw.ApproxBiLinear.Scale(frame, frame.Bounds(), base, base.Bounds(), xdraw.Src, nil)
		}
		applyPulse(frame, progress)

		if r.Captions != nil && p.Caption != "" {
			r.Captions.Apply(frame, p.Caption, p.CaptionMode)
		}

		if j == 0 {
			result.First = cloneRGBA(frame)
		}
		if j == count-1 {
			result.Last = cloneRGBA(frame)
		}

		path := filepath.Join(outDir, fmt.Sprintf("frame_%05d.png", j))
		if err := savePNG(path, frame); err != nil {
			r.pool.Put(frame)
			return nil, fmt.Errorf("segment %d frame %d: %w", p.SegmentIndex, j, err)
		}
		r.pool.Put(frame)
	}

	return result, nil
}

// warp resamples the crop window for the given transform into dst.
// Offsets are clamped so the window never leaves the base image, which
// approximates edge-replicate borders.
func (r *Renderer) warp(base *image.RGBA, tr Transform, dst *image.RGBA) bool {
	if tr.Zoom < 1.0 || tr.Zoom > 4.0 {
		return false
	}

	bw := float64(base.Bounds().Dx())
	bh := float64(base.Bounds().Dy())
	cw := bw / tr.Zoom
	ch := bh / tr.Zoom

	x0 := bw/2 + tr.OffsetX*bw - cw/2
	y0 := bh/2 + tr.OffsetY*bh - ch/2
	x0 = clampF(x0, 0, bw-cw)
	y0 = clampF(y0, 0, bh-ch)

	window := image.Rect(int(x0), int(y0), int(x0+cw), int(y0+ch))
	if window.Dx() < 2 || window.Dy() < 2 {
		return false
	}

	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), base, window, xdraw.Src, nil)
	return true
}

// applyPulse modulates frame brightness by ±0.5% over the segment
func applyPulse(frame *image.RGBA, progress float64) {
	f := 1.0 + 0.005*pulseWave(progress)
	if f == 1.0 {
		return
	}
	pix := frame.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i] = scaleByte(pix[i], f)
		pix[i+1] = scaleByte(pix[i+1], f)
		pix[i+2] = scaleByte(pix[i+2], f)
	}
}

func pulseWave(t float64) float64 {
	// один мягкий период на сегмент
	return sin2pi(t)
}

func scaleByte(b byte, f float64) byte {
	v := float64(b) * f
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return byte(v + 0.5)
}

func clampF(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
