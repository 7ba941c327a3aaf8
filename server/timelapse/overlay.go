package timelapse

import (
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	overlayFontOnce sync.Once
	overlayFont     *opentype.Font
)

func overlayFace(pixelSize float64) font.Face {
	overlayFontOnce.Do(func() {
		overlayFont, _ = opentype.Parse(goregular.TTF)
	})
	if overlayFont == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(overlayFont, &opentype.FaceOptions{
		Size:    pixelSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// StampTimestamp draws the capture time onto a frame: white text on a
// semi-transparent dark box anchored at the bottom-left corner. Padding and
// font size scale with frame height, and the box never occupies more than
// 10% of the frame's height. Stateless: the same (frame, time) always
// produces the same output.
func StampTimestamp(frame *image.NRGBA, captureTime time.Time) *image.NRGBA {
	h := float64(frame.Bounds().Dy())
	pad := h * 0.015
	fontSize := h * 0.05
	boxH := fontSize + 2*pad // 8% of frame height
	text := captureTime.Format("2006-01-02 15:04:05")

	dc := gg.NewContextForImage(frame)
	dc.SetFontFace(overlayFace(fontSize))
	textW, textH := dc.MeasureString(text)

	x := pad
	y := h - pad - boxH
	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawRectangle(x, y, textW+2*pad, boxH)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	// DrawString positions the text baseline; center the text vertically in the box
	dc.DrawString(text, x+pad, y+(boxH+textH)/2)

	return imaging.Clone(dc.Image())
}
