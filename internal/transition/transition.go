// Package transition renders the fixed-length bridging frame sequences
// between two consecutive segments. A transition always emits its configured
// frame count: missing sources degrade to black frames, never to a shorter
// sequence, so the timeline arithmetic downstream stays exact.
package transition

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/ivlev/storyreel/internal/script"
)

// Params describes one transition render job.
type Params struct {
	Kind   script.TransitionType
	Frames int
	Width  int
	Height int
	// Band is the destination segment's caption band. It is extracted from
	// the first frame of the next segment and re-pasted unmodified onto
	// every transition frame so captions never animate mid-transition.
	Band image.Rectangle
	// Seed makes the dissolve noise reproducible per segment pair.
	Seed int64
}

// Render writes p.Frames frames into outDir as frame_%05d.png and returns
// the number of frames written.
func Render(prev, next *image.RGBA, p Params, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, err
	}
	if p.Frames < 1 {
		p.Frames = 1
	}

	rect := image.Rect(0, 0, p.Width, p.Height)
	if prev == nil {
		log.Printf("[!] Переход %s: нет последнего кадра предыдущего сегмента, использую черный", p.Kind)
		prev = image.NewRGBA(rect)
	}
	if next == nil {
		log.Printf("[!] Переход %s: нет первого кадра следующего сегмента, использую черный", p.Kind)
		next = image.NewRGBA(rect)
	}

	blend := blendFuncs[p.Kind]
	if blend == nil {
		log.Printf("[!] Неизвестный тип перехода %q, деградация до жесткой склейки", p.Kind)
		blend = blendCut
	}

	st := &state{
		prev: prev, next: next,
		width: p.Width, height: p.Height,
		noise: dissolveNoise(p),
	}

	dst := image.NewRGBA(rect)
	for i := 0; i < p.Frames; i++ {
		progress := 0.0
		if p.Frames > 1 {
			progress = float64(i) / float64(p.Frames-1)
		}

		blend(st, dst, progress)
		pasteBand(dst, next, p.Band)

		path := filepath.Join(outDir, fmt.Sprintf("frame_%05d.png", i))
		if err := savePNG(path, dst); err != nil {
			return i, err
		}
	}
	return p.Frames, nil
}

type state struct {
	prev, next    *image.RGBA
	width, height int
	noise         []float32
	scratch       *image.RGBA
}

type blendFunc func(st *state, dst *image.RGBA, progress float64)

var blendFuncs = map[script.TransitionType]blendFunc{
	script.TransitionCut:        blendCut,
	script.TransitionCrossfade:  blendCrossfade,
	script.TransitionFadeBlack:  blendFadeBlack,
	script.TransitionSlideUp:    slide(0, -1),
	script.TransitionSlideDown:  slide(0, 1),
	script.TransitionSlideLeft:  slide(-1, 0),
	script.TransitionSlideRight: slide(1, 0),
	script.TransitionWipe:       blendWipe,
	script.TransitionWhipPan:    blendWhipPan,
	script.TransitionDissolve:   blendDissolve,
}

func blendCut(st *state, dst *image.RGBA, p float64) {
	if p < 0.5 {
		copy(dst.Pix, st.prev.Pix)
	} else {
		copy(dst.Pix, st.next.Pix)
	}
}

func blendCrossfade(st *state, dst *image.RGBA, p float64) {
	mix(dst, st.prev, st.next, smoothstep(p))
}

// blendFadeBlack fades the tail frame to a solid color, then the color to
// the head frame, each half rescaled and eased on its own.
func blendFadeBlack(st *state, dst *image.RGBA, p float64) {
	if p < 0.5 {
		fadeToBlack(dst, st.prev, smoothstep(p*2))
	} else {
		fadeToBlack(dst, st.next, smoothstep((1-p)*2))
	}
}

// slide composes both images in a window offset by progress × dimension
// along the chosen axis.
func slide(dx, dy int) blendFunc {
	return func(st *state, dst *image.RGBA, p float64) {
		w, h := st.width, st.height
		offX := int(p * float64(w) * float64(dx))
		offY := int(p * float64(h) * float64(dy))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				sx, sy := x-offX, y-offY
				var src *image.RGBA
				if sx >= 0 && sx < w && sy >= 0 && sy < h {
					src = st.prev
				} else {
					src = st.next
					sx = mod(sx, w)
					sy = mod(sy, h)
				}
				copyPixel(dst, src, x, y, sx, sy)
			}
		}
	}
}

// blendWipe uses a diagonal gradient mask with a soft threshold band
// centered on progress.
func blendWipe(st *state, dst *image.RGBA, p float64) {
	const band = 0.15
	w, h := st.width, st.height
	span := float64(w + h)
	t := p*(1+2*band) - band

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := float64(x+y) / span
			wt := (t-g)/band*0.5 + 0.5
			mixPixel(dst, st.prev, st.next, x, y, smoothstep(wt))
		}
	}
}

// blendWhipPan simulates a fast camera whip: increasing then decreasing
// directional blur, cross-blended and pushed through white at the peak.
func blendWhipPan(st *state, dst *image.RGBA, p float64) {
	if st.scratch == nil {
		st.scratch = image.NewRGBA(image.Rect(0, 0, st.width, st.height))
	}

	strength := math.Sin(math.Pi * p)
	radius := int(strength * float64(st.width) / 18)

	if p < 0.45 {
		boxBlurH(dst, st.prev, radius)
	} else if p > 0.55 {
		boxBlurH(dst, st.next, radius)
	} else {
		boxBlurH(dst, st.prev, radius)
		boxBlurH(st.scratch, st.next, radius)
		mix(dst, dst, st.scratch, (p-0.45)/0.1)
	}

	if wf := (strength - 0.7) / 0.3; wf > 0 {
		whiten(dst, wf*0.8)
	}
}

// blendDissolve is a crossfade plus a random per-pixel swap confined to the
// middle portion of progress.
func blendDissolve(st *state, dst *image.RGBA, p float64) {
	mix(dst, st.prev, st.next, smoothstep(p))
	if p <= 0.2 || p >= 0.8 {
		return
	}
	swapP := float32((p - 0.2) / 0.6)
	w, h := st.width, st.height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if st.noise[y*w+x] < swapP {
				copyPixel(dst, st.next, x, y, x, y)
			}
		}
	}
}

func dissolveNoise(p Params) []float32 {
	if p.Kind != script.TransitionDissolve {
		return nil
	}
	r := rand.New(rand.NewSource(p.Seed))
	noise := make([]float32, p.Width*p.Height)
	for i := range noise {
		noise[i] = r.Float32()
	}
	return noise
}

// pasteBand re-pastes the destination caption band over the blended frame
func pasteBand(dst, next *image.RGBA, band image.Rectangle) {
	band = band.Intersect(dst.Bounds()).Intersect(next.Bounds())
	if band.Empty() {
		return
	}
	for y := band.Min.Y; y < band.Max.Y; y++ {
		di := dst.PixOffset(band.Min.X, y)
		si := next.PixOffset(band.Min.X, y)
		copy(dst.Pix[di:di+band.Dx()*4], next.Pix[si:si+band.Dx()*4])
	}
}

func mix(dst, a, b *image.RGBA, w float64) {
	wb := uint32(w*255 + 0.5)
	if wb > 255 {
		wb = 255
	}
	wa := 255 - wb
	for i := range dst.Pix {
		dst.Pix[i] = uint8((uint32(a.Pix[i])*wa + uint32(b.Pix[i])*wb) / 255)
	}
}

func mixPixel(dst, a, b *image.RGBA, x, y int, w float64) {
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	wb := uint32(w*255 + 0.5)
	wa := 255 - wb
	i := dst.PixOffset(x, y)
	for k := 0; k < 4; k++ {
		dst.Pix[i+k] = uint8((uint32(a.Pix[i+k])*wa + uint32(b.Pix[i+k])*wb) / 255)
	}
}

func fadeToBlack(dst, src *image.RGBA, toBlack float64) {
	keep := uint32((1 - toBlack) * 255)
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = uint8(uint32(src.Pix[i]) * keep / 255)
		dst.Pix[i+1] = uint8(uint32(src.Pix[i+1]) * keep / 255)
		dst.Pix[i+2] = uint8(uint32(src.Pix[i+2]) * keep / 255)
		dst.Pix[i+3] = 255
	}
}

func whiten(dst *image.RGBA, w float64) {
	if w > 1 {
		w = 1
	}
	ww := uint32(w * 255)
	keep := 255 - ww
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = uint8((uint32(dst.Pix[i])*keep + 255*ww) / 255)
		dst.Pix[i+1] = uint8((uint32(dst.Pix[i+1])*keep + 255*ww) / 255)
		dst.Pix[i+2] = uint8((uint32(dst.Pix[i+2])*keep + 255*ww) / 255)
	}
}

// boxBlurH applies a horizontal box blur with the given radius
func boxBlurH(dst, src *image.RGBA, radius int) {
	if radius < 1 {
		copy(dst.Pix, src.Pix)
		return
	}
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	win := radius*2 + 1

	for y := 0; y < h; y++ {
		var sumR, sumG, sumB uint32
		row := src.PixOffset(0, y)
		for k := -radius; k <= radius; k++ {
			i := row + clampI(k, 0, w-1)*4
			sumR += uint32(src.Pix[i])
			sumG += uint32(src.Pix[i+1])
			sumB += uint32(src.Pix[i+2])
		}
		for x := 0; x < w; x++ {
			di := dst.PixOffset(x, y)
			dst.Pix[di] = uint8(sumR / uint32(win))
			dst.Pix[di+1] = uint8(sumG / uint32(win))
			dst.Pix[di+2] = uint8(sumB / uint32(win))
			dst.Pix[di+3] = 255

			add := row + clampI(x+radius+1, 0, w-1)*4
			sub := row + clampI(x-radius, 0, w-1)*4
			sumR += uint32(src.Pix[add]) - uint32(src.Pix[sub])
			sumG += uint32(src.Pix[add+1]) - uint32(src.Pix[sub+1])
			sumB += uint32(src.Pix[add+2]) - uint32(src.Pix[sub+2])
		}
	}
}

func copyPixel(dst, src *image.RGBA, dx, dy, sx, sy int) {
	di := dst.PixOffset(dx, dy)
	si := src.PixOffset(sx, sy)
	copy(dst.Pix[di:di+4], src.Pix[si:si+4])
}

func smoothstep(t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

func mod(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
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
