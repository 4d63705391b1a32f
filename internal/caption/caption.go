package caption

import (
	"image"
	"image/color"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/storyreel/internal/script"
)

// bandFraction is the share of the frame height reserved for the caption
// band at the bottom of the frame.
const bandFraction = 0.15

var (
	textColor   = color.RGBA{255, 255, 255, 255}
	shadowColor = color.RGBA{0, 0, 0, 255}
	bandColor   = color.RGBA{14, 14, 18, 255}
	boxColor    = color.RGBA{10, 10, 14, 170}
)

// Renderer composites caption text into the fixed bottom band of a frame.
// It is applied strictly after the geometric transform so captions never
// drift with zoom or pan. Safe for concurrent use: opentype.Face carries
// mutable rasterizer state, so каждый воркер берет свой face из пула.
type Renderer struct {
	width  int
	height int
	ascent int
	lineH  int

	faces sync.Pool
}

func NewRenderer(width, height int) (*Renderer, error) {
	ft, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}

	size := float64(height) * 0.042
	if size < 11 {
		size = 11
	}
	opts := &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}
	face, err := opentype.NewFace(ft, opts)
	if err != nil {
		return nil, err
	}

	m := face.Metrics()
	r := &Renderer{
		width:  width,
		height: height,
		ascent: m.Ascent.Ceil(),
		lineH:  m.Height.Ceil(),
	}
	r.faces.New = func() interface{} {
		f, err := opentype.NewFace(ft, opts)
		if err != nil {
			return nil
		}
		return font.Face(f)
	}
	r.faces.Put(face)
	return r, nil
}

// Band returns the caption band rectangle: the bottom ~15% of the frame.
func (r *Renderer) Band() image.Rectangle {
	top := r.height - int(float64(r.height)*bandFraction)
	return image.Rect(0, top, r.width, r.height)
}

// Apply draws the caption onto dst. In band mode the whole band is filled
// with an opaque strip so the region stays pixel-identical from frame to
// frame regardless of the motion underneath. In overlay mode a rounded
// semi-transparent box is drawn behind the text only.
func (r *Renderer) Apply(dst *image.RGBA, text string, mode script.CaptionMode) {
	if text == "" {
		return
	}
	face, _ := r.faces.Get().(font.Face)
	if face == nil {
		return
	}
	defer r.faces.Put(face)

	band := r.Band()
	lines := r.wrap(face, text, r.width*86/100)

	switch mode {
	case script.CaptionOverlay:
		boxW := 0
		for _, ln := range lines {
			if w := measure(face, ln); w > boxW {
				boxW = w
			}
		}
		padX, padY := r.lineH/2, r.lineH/3
		boxH := len(lines)*r.lineH + 2*padY
		boxX := (r.width - boxW - 2*padX) / 2
		boxY := band.Min.Y + (band.Dy()-boxH)/2
		if boxY < band.Min.Y {
			boxY = band.Min.Y
		}
		box := image.Rect(boxX, boxY, boxX+boxW+2*padX, boxY+boxH)
		fillRoundedRect(dst, box, r.lineH/2, boxColor)
		r.drawLines(dst, face, lines, boxY+padY)
	default: // band
		fillRect(dst, band, bandColor)
		top := band.Min.Y + (band.Dy()-len(lines)*r.lineH)/2
		if top < band.Min.Y {
			top = band.Min.Y
		}
		r.drawLines(dst, face, lines, top)
	}
}

func (r *Renderer) drawLines(dst *image.RGBA, face font.Face, lines []string, top int) {
	for i, ln := range lines {
		w := measure(face, ln)
		x := (r.width - w) / 2
		y := top + i*r.lineH + r.ascent
		drawString(dst, face, ln, x+1, y+1, shadowColor) // 1px drop shadow
		drawString(dst, face, ln, x, y, textColor)
	}
}

func drawString(dst *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// wrap splits text into lines not wider than maxWidth pixels
func (r *Renderer) wrap(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		candidate := current + " " + w
		if measure(face, candidate) > maxWidth {
			lines = append(lines, current)
			current = w
		} else {
			current = candidate
		}
	}
	return append(lines, current)
}

func fillRect(dst *image.RGBA, rect image.Rectangle, c color.RGBA) {
	rect = rect.Intersect(dst.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			blendPixel(dst, x, y, c)
		}
	}
}

func fillRoundedRect(dst *image.RGBA, rect image.Rectangle, radius int, c color.RGBA) {
	rect = rect.Intersect(dst.Bounds())
	if radius > rect.Dx()/2 {
		radius = rect.Dx() / 2
	}
	if radius > rect.Dy()/2 {
		radius = rect.Dy() / 2
	}
	r2 := radius * radius

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dx, dy := 0, 0
			if x < rect.Min.X+radius {
				dx = rect.Min.X + radius - x
			} else if x >= rect.Max.X-radius {
				dx = x - (rect.Max.X - radius - 1)
			}
			if y < rect.Min.Y+radius {
				dy = rect.Min.Y + radius - y
			} else if y >= rect.Max.Y-radius {
				dy = y - (rect.Max.Y - radius - 1)
			}
			if dx*dx+dy*dy > r2 {
				continue
			}
			blendPixel(dst, x, y, c)
		}
	}
}

// blendPixel alpha-blends c over the destination pixel
func blendPixel(dst *image.RGBA, x, y int, c color.RGBA) {
	i := dst.PixOffset(x, y)
	a := uint32(c.A)
	inv := 255 - a
	dst.Pix[i] = uint8((uint32(c.R)*a + uint32(dst.Pix[i])*inv) / 255)
	dst.Pix[i+1] = uint8((uint32(c.G)*a + uint32(dst.Pix[i+1])*inv) / 255)
	dst.Pix[i+2] = uint8((uint32(c.B)*a + uint32(dst.Pix[i+2])*inv) / 255)
	dst.Pix[i+3] = 255
}
