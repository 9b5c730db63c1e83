package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"sonolise/pkg/letterbox"
)

// Compositor letterboxes captured bitmaps onto fixed-size canvases.
type Compositor struct{}

func NewCompositor() *Compositor {
	return &Compositor{}
}

// Composite places src on a targetW x targetH canvas: solid white fill,
// then the source scaled uniformly (never cropped) and centered. Zero
// target dimensions mean identity pass-through.
func (c *Compositor) Composite(src *image.RGBA, targetW, targetH int) *image.RGBA {
	if targetW <= 0 || targetH <= 0 {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	p := letterbox.Fit(src.Bounds().Dx(), src.Bounds().Dy(), targetW, targetH)
	if p.Scale == 0 {
		return dst
	}

	rect := image.Rect(
		int(p.X+0.5),
		int(p.Y+0.5),
		int(p.X+p.W+0.5),
		int(p.Y+p.H+0.5),
	)
	draw.CatmullRom.Scale(dst, rect, src, src.Bounds(), draw.Over, nil)
	return dst
}

// EncodePNG is the only export encoding; PNG keeps the capture lossless.
func (c *Compositor) EncodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
