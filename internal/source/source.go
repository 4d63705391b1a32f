package source

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	xdraw "golang.org/x/image/draw"
)

// Loader resolves image handles into render-ready base images at 2x the
// target resolution (supersampled so the motion crop window can be scaled
// down without softness).
type Loader struct {
	Width  int
	Height int
}

// LoadBase loads the handle and prepares it for rendering. An unreadable
// handle never aborts the pipeline: a solid-color placeholder at target
// resolution is substituted and logged.
func (l *Loader) LoadBase(handle string, segIndex int) *image.RGBA {
	img, err := l.load(handle)
	if err != nil {
		log.Printf("[!] Сегмент %d: не удалось прочитать %s (%v), использую заглушку", segIndex+1, handle, err)
		img = Placeholder(l.Width, l.Height, segIndex)
	}
	return PrepareBase(img, l.Width, l.Height)
}

// load decodes a raster file, or renders a PDF page when the handle looks
// like "deck.pdf" or "deck.pdf#3" (1-based page number).
func (l *Loader) load(handle string) (image.Image, error) {
	path, page := splitPDFHandle(handle)
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return renderPDFPage(path, page, l.Height)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

func splitPDFHandle(handle string) (string, int) {
	page := 1
	if i := strings.LastIndex(handle, "#"); i > 0 {
		if n, err := strconv.Atoi(handle[i+1:]); err == nil && n > 0 {
			return handle[:i], n
		}
	}
	return handle, page
}

func renderPDFPage(path string, page, targetHeight int) (image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if page > doc.NumPage() {
		return nil, fmt.Errorf("страница %d вне диапазона (%d стр.)", page, doc.NumPage())
	}

	// DPI подбирается так, чтобы страница покрыла целевую высоту с запасом
	dpi := 144.0
	if bound, err := doc.Bound(page - 1); err == nil && bound.Dy() > 0 {
		dpi = float64(targetHeight*2) / float64(bound.Dy()) * 72.0
	}
	return doc.ImageDPI(page-1, dpi)
}

var placeholderPalette = []color.RGBA{
	{38, 50, 72, 255},
	{62, 40, 66, 255},
	{32, 62, 54, 255},
	{70, 52, 34, 255},
}

// Placeholder returns a solid-color frame used when an image handle cannot
// be read.
func Placeholder(width, height, idx int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	c := placeholderPalette[idx%len(placeholderPalette)]
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// PrepareBase aspect-fills the source into a 2x supersampled base: scaled
// so it covers the target, center-cropped to the exact aspect ratio.
func PrepareBase(img image.Image, width, height int) *image.RGBA {
	bw, bh := 2*width, 2*height
	base := image.NewRGBA(image.Rect(0, 0, bw, bh))

	sw := float64(img.Bounds().Dx())
	sh := float64(img.Bounds().Dy())
	if sw == 0 || sh == 0 {
		return base
	}

	scale := float64(bw) / sw
	if s := float64(bh) / sh; s > scale {
		scale = s
	}
	cw := float64(bw) / scale
	ch := float64(bh) / scale
	cx := (sw - cw) / 2
	cy := (sh - ch) / 2
	window := image.Rect(
		img.Bounds().Min.X+int(cx),
		img.Bounds().Min.Y+int(cy),
		img.Bounds().Min.X+int(cx+cw),
		img.Bounds().Min.Y+int(cy+ch),
	)

	xdraw.CatmullRom.Scale(base, base.Bounds(), img, window, xdraw.Src, nil)
	return base
}

// OutputName builds a timestamped output path from the script name, the
// same way the result file is named from the freshest input.
func OutputName(scriptPath, outDir, timestamp string) string {
	baseName := filepath.Base(scriptPath)
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	return filepath.Join(outDir, fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
}
