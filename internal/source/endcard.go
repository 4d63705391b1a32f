package source

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/skip2/go-qrcode"
)

// EndCard renders the closing call-to-action card: a QR code for the
// script's link centered on a dark background. The caption renderer puts
// the human-readable text in the caption band as for any other segment.
func (l *Loader) EndCard(link string) (*image.RGBA, error) {
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	qr.BackgroundColor = color.RGBA{22, 22, 28, 255}
	qr.ForegroundColor = color.White

	size := l.Width / 2
	if size < 128 {
		size = 128
	}
	qrImg := qr.Image(size)

	card := image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))
	draw.Draw(card, card.Bounds(), image.NewUniform(color.RGBA{22, 22, 28, 255}), image.Point{}, draw.Src)

	// QR чуть выше центра, чтобы не упираться в полосу субтитров
	x := (l.Width - size) / 2
	y := (l.Height-size)/2 - l.Height/12
	if y < 0 {
		y = 0
	}
	draw.Draw(card, image.Rect(x, y, x+size, y+size), qrImg, qrImg.Bounds().Min, draw.Src)
	return card, nil
}
