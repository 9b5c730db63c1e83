// Package frame turns catalog data plus display options into the visual
// frame bitmap that gets captured and exported.
package frame

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"sonolise/internal/core"
	"sonolise/internal/palette"
)

// Frame bundles everything the renderer needs for one drawing pass.
// Remote images are fetched by the caller; a nil Cover or Code leaves
// that region blank instead of failing the render.
type Frame struct {
	Track   *core.Track
	Album   *core.Album
	Options core.DisplayOptions
	Palette *palette.Palette
	Cover   image.Image
	Code    image.Image
}

// Layout constants, in logical points at scale 1. The measure pass and
// the draw pass share these; any block added to one must be added to the
// other.
const (
	framePad   = 24
	blockGap   = 16
	smallGap   = 12
	coverSmall = 256
	coverMed   = 320

	metaLabelSize = 10
	metaValueSize = 13
	metaRowH      = 34

	swatchSize = 32
	swatchGap  = 8

	dividerH      = 2
	dividerMargin = 24

	trackCols     = 4
	trackRowH     = 18
	trackFontSize = 12

	albumNameSize = 20
	albumNameH    = 26
	artistSize    = 14
	artistLineH   = 18
	badgeH        = 22
	badgeFontSize = 10

	codeWidth = 176 // scannable code box; height is always width/4
)

var (
	colorWhite     = color.RGBA{255, 255, 255, 255}
	colorGrayText  = color.RGBA{107, 114, 128, 255}
	colorDarkText  = color.RGBA{17, 24, 39, 255}
	colorDivider   = color.RGBA{229, 231, 235, 255}
	colorBadgeFill = color.RGBA{229, 231, 235, 255}
)

type faceKey struct {
	style core.FontStyle
	bold  bool
	size  float64
}

// Renderer draws frames at a fixed logical content width. It is pure with
// respect to its Frame input; the only internal state is a face cache.
type Renderer struct {
	contentWidth int
	logger       *zap.Logger

	fonts     map[core.FontStyle]*opentype.Font
	boldFonts map[core.FontStyle]*opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

// NewRenderer parses the embedded typefaces once. The font lookup is a
// typed table: modern renders with Go Regular, classic with Go Italic,
// playful with Go Mono.
func NewRenderer(contentWidth int, logger *zap.Logger) (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	italic, err := opentype.Parse(goitalic.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse italic font: %w", err)
	}
	mono, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse mono font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}

	return &Renderer{
		contentWidth: contentWidth,
		logger:       logger,
		fonts: map[core.FontStyle]*opentype.Font{
			core.FontModern:  regular,
			core.FontClassic: italic,
			core.FontPlayful: mono,
		},
		boldFonts: map[core.FontStyle]*opentype.Font{
			core.FontModern:  bold,
			core.FontClassic: italic,
			core.FontPlayful: mono,
		},
		faces: make(map[faceKey]font.Face),
	}, nil
}

// ContentWidth returns the logical frame width in points.
func (r *Renderer) ContentWidth() int { return r.contentWidth }

// Render draws the frame at the given device-pixel scale and returns the
// bitmap. Every show/hide option is a strict toggle: hidden blocks
// occupy no space. The call is deterministic for a fixed Frame.
func (r *Renderer) Render(f Frame, scale int) (*image.RGBA, error) {
	if f.Track == nil || f.Album == nil {
		return nil, fmt.Errorf("%w: frame missing track or album", core.ErrDataUnavailable)
	}
	if scale < 1 {
		scale = 1
	}

	width := r.contentWidth
	height := r.measureHeight(f)

	img := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	r.paintBackground(img, f)

	d := &drawCtx{r: r, img: img, scale: scale, style: f.Options.FontStyle}
	y := framePad

	y = r.drawCover(d, f, y)
	y = r.drawMetaRow(d, f, y)
	y = r.drawPalette(d, f, y)
	y = r.drawDivider(d, y)
	y = r.drawTrackGrid(d, f, y)
	r.drawFooter(d, f, y)

	return img, nil
}

// measureHeight walks the same blocks as the draw pass and sums their
// logical heights.
func (r *Renderer) measureHeight(f Frame) int {
	y := framePad

	y += r.coverHeight(f) + blockGap

	if f.Options.ShowReleaseDate || f.Options.ShowAlbumLength || f.Options.ShowLabel || f.Options.ShowPopularity {
		y += metaRowH + smallGap
	}
	if rows := r.paletteRows(f); rows > 0 {
		y += rows*(swatchSize+swatchGap) - swatchGap + smallGap
	}
	y += dividerMargin + dividerH + dividerMargin

	if rows := r.trackRows(f); rows > 0 {
		y += rows*trackRowH + smallGap
	}

	y += r.footerHeight(f)
	y += framePad
	return y
}

func (r *Renderer) coverWidth(opts core.DisplayOptions) int {
	// Typed size table; unknown values were already clamped away.
	switch opts.ImageSize {
	case core.ImageSmall:
		return coverSmall
	case core.ImageMedium:
		return coverMed
	default:
		return r.contentWidth - 2*framePad
	}
}

func (r *Renderer) coverHeight(f Frame) int {
	w := r.coverWidth(f.Options)
	if f.Cover == nil {
		return w // blank region keeps the square footprint
	}
	b := f.Cover.Bounds()
	if b.Dx() == 0 {
		return w
	}
	return w * b.Dy() / b.Dx()
}

func (r *Renderer) paletteVisible(f Frame) bool {
	return f.Options.ShowPalette && f.Palette != nil && len(f.Palette.Colors) > 0
}

// swatchesPerRow is how many palette swatches fit inside the content
// width; the palette wraps onto further rows past that.
func (r *Renderer) swatchesPerRow() int {
	n := (r.contentWidth - 2*framePad + swatchGap) / (swatchSize + swatchGap)
	if n < 1 {
		n = 1
	}
	return n
}

func (r *Renderer) paletteRows(f Frame) int {
	if !r.paletteVisible(f) {
		return 0
	}
	perRow := r.swatchesPerRow()
	return (len(f.Palette.Colors) + perRow - 1) / perRow
}

func (r *Renderer) trackRows(f Frame) int {
	if !f.Options.ShowTracks || len(f.Album.Tracks.Items) == 0 {
		return 0
	}
	n := f.Options.NumTracksToShow
	if n > len(f.Album.Tracks.Items) {
		n = len(f.Album.Tracks.Items)
	}
	return (n + trackCols - 1) / trackCols
}

func (r *Renderer) footerHeight(f Frame) int {
	textH := albumNameH
	if f.Options.ShowArtists {
		textH += artistLineH
	}
	if f.Options.ShowExplicitLabel && f.Track.Explicit {
		textH += badgeH + 4
	}

	codeH := 0
	if f.Options.ShowSpotifyCode {
		codeH = codeWidth / 4
	}
	if codeH > textH {
		return codeH
	}
	return textH
}

// paintBackground fills the whole canvas per the background style table:
// plain is solid white, gradient blends the dominant color to black
// toward the bottom-right corner, blur stretches a blurred cover under a
// translucent white wash. animated is reserved and falls back to plain.
func (r *Renderer) paintBackground(img *image.RGBA, f Frame) {
	b := img.Bounds()

	switch f.Options.BackgroundStyle {
	case core.BackgroundGradient:
		if f.Palette == nil {
			fill(img, colorWhite)
			return
		}
		dom := f.Palette.Dominant
		maxSum := float64(b.Dx() - 1 + b.Dy() - 1)
		if maxSum <= 0 {
			maxSum = 1
		}
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				t := float64(x+y) / maxSum
				img.SetRGBA(x, y, color.RGBA{
					R: uint8(float64(dom.R) * (1 - t)),
					G: uint8(float64(dom.G) * (1 - t)),
					B: uint8(float64(dom.B) * (1 - t)),
					A: 255,
				})
			}
		}

	case core.BackgroundBlur:
		if f.Cover == nil {
			fill(img, colorWhite)
			return
		}
		draw.CatmullRom.Scale(img, b, f.Cover, f.Cover.Bounds(), draw.Src, nil)
		boxBlur(img, 10)
		washWhite(img, 0.3)

	default:
		// plain, and animated until it has a rendering implementation
		fill(img, colorWhite)
	}
}

func (r *Renderer) drawCover(d *drawCtx, f Frame, y int) int {
	w := r.coverWidth(f.Options)
	h := r.coverHeight(f)
	x := (r.contentWidth - w) / 2

	if f.Cover != nil {
		dst := scaledRect(x, y, w, h, d.scale)
		draw.CatmullRom.Scale(d.img, dst, f.Cover, f.Cover.Bounds(), draw.Over, nil)
	}
	return y + h + blockGap
}

func (r *Renderer) drawMetaRow(d *drawCtx, f Frame, y int) int {
	type metaItem struct{ label, value string }
	var items []metaItem

	if f.Options.ShowReleaseDate {
		items = append(items, metaItem{"RELEASE DATE", formatReleaseDate(f.Track.Album.ReleaseDate)})
	}
	if f.Options.ShowAlbumLength {
		items = append(items, metaItem{"ALBUM LENGTH", core.FormatDuration(f.Album.TotalDurationMS())})
	}
	if f.Options.ShowLabel {
		items = append(items, metaItem{"LABEL", f.Album.Label})
	}
	if f.Options.ShowPopularity {
		items = append(items, metaItem{"POPULARITY", fmt.Sprintf("%d%%", f.Track.Popularity)})
	}
	if len(items) == 0 {
		return y
	}

	colW := (r.contentWidth - 2*framePad) / trackCols
	for i, item := range items {
		x := framePad + i*colW
		d.text(item.label, x, y, metaLabelSize, colorGrayText, false, colW-8)
		d.text(item.value, x, y+metaLabelSize+6, metaValueSize, colorDarkText, true, colW-8)
	}
	return y + metaRowH + smallGap
}

func (r *Renderer) drawPalette(d *drawCtx, f Frame, y int) int {
	if !r.paletteVisible(f) {
		return y
	}

	perRow := r.swatchesPerRow()
	for i, c := range f.Palette.Colors {
		col := i % perRow
		row := i / perRow
		cx := framePad + col*(swatchSize+swatchGap) + swatchSize/2
		cy := y + row*(swatchSize+swatchGap) + swatchSize/2
		fillCircle(d.img, cx*d.scale, cy*d.scale, (swatchSize/2)*d.scale,
			color.RGBA{c.R, c.G, c.B, 255})
	}
	return y + r.paletteRows(f)*(swatchSize+swatchGap) - swatchGap + smallGap
}

func (r *Renderer) drawDivider(d *drawCtx, y int) int {
	y += dividerMargin
	dst := scaledRect(framePad, y, r.contentWidth-2*framePad, dividerH, d.scale)
	draw.Draw(d.img, dst, &image.Uniform{colorDivider}, image.Point{}, draw.Src)
	return y + dividerH + dividerMargin
}

func (r *Renderer) drawTrackGrid(d *drawCtx, f Frame, y int) int {
	rows := r.trackRows(f)
	if rows == 0 {
		return y
	}

	n := f.Options.NumTracksToShow
	if n > len(f.Album.Tracks.Items) {
		n = len(f.Album.Tracks.Items)
	}

	colW := (r.contentWidth - 2*framePad) / trackCols
	// First n album tracks in original order; no sorting, no filtering
	// by which track is current.
	for i := 0; i < n; i++ {
		col := i % trackCols
		row := i / trackCols
		x := framePad + col*colW
		ty := y + row*trackRowH
		d.text(strings.ToUpper(f.Album.Tracks.Items[i].Name), x, ty, trackFontSize, colorDarkText, false, colW-8)
	}
	return y + rows*trackRowH + smallGap
}

func (r *Renderer) drawFooter(d *drawCtx, f Frame, y int) {
	textW := r.contentWidth - 2*framePad
	if f.Options.ShowSpotifyCode {
		textW -= codeWidth + blockGap
	}

	ty := y
	d.text(f.Album.Name, framePad, ty, albumNameSize, colorDarkText, true, textW)
	ty += albumNameH

	if f.Options.ShowArtists {
		d.text(f.Track.ArtistLine(), framePad, ty, artistSize, colorGrayText, false, textW)
		ty += artistLineH
	}

	if f.Options.ShowExplicitLabel && f.Track.Explicit {
		ty += 4
		badgeW := 70
		dst := scaledRect(framePad, ty, badgeW, badgeH, d.scale)
		draw.Draw(d.img, dst, &image.Uniform{colorBadgeFill}, image.Point{}, draw.Src)
		d.text("EXPLICIT", framePad+8, ty+5, badgeFontSize, colorDarkText, true, badgeW-12)
	}

	if f.Options.ShowSpotifyCode {
		codeH := codeWidth / 4
		x := r.contentWidth - framePad - codeWidth
		cy := y + r.footerHeight(f) - codeH
		if f.Code != nil {
			dst := scaledRect(x, cy, codeWidth, codeH, d.scale)
			draw.CatmullRom.Scale(d.img, dst, f.Code, f.Code.Bounds(), draw.Over, nil)
		}
	}
}

// drawCtx carries the shared draw state so block helpers stay short.
type drawCtx struct {
	r     *Renderer
	img   *image.RGBA
	scale int
	style core.FontStyle
}

// text draws a single truncated line. x, y and size are logical; y is
// the top of the line box. maxW <= 0 disables truncation.
func (d *drawCtx) text(s string, x, y int, size float64, col color.RGBA, bold bool, maxW int) {
	if s == "" {
		return
	}

	face := d.r.face(d.style, bold, size*float64(d.scale))
	drawer := &font.Drawer{
		Dst:  d.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(x * d.scale),
			Y: fixed.I(y*d.scale) + face.Metrics().Ascent,
		},
	}

	if maxW > 0 {
		s = truncate(drawer, s, maxW*d.scale)
	}
	drawer.DrawString(s)
}

func truncate(drawer *font.Drawer, s string, maxW int) string {
	limit := fixed.I(maxW)
	if drawer.MeasureString(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 1 {
		runes = runes[:len(runes)-1]
		if drawer.MeasureString(string(runes)+"…") <= limit {
			return string(runes) + "…"
		}
	}
	return "…"
}

func (r *Renderer) face(style core.FontStyle, bold bool, size float64) font.Face {
	key := faceKey{style: style, bold: bold, size: size}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f
	}

	src, ok := r.fonts[style]
	if !ok {
		src = r.fonts[core.FontModern]
	}
	if bold {
		if b, ok := r.boldFonts[style]; ok {
			src = b
		}
	}

	face, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		// Face creation only fails on corrupt font data, which the
		// embedded Go fonts are not.
		r.logger.Error("face creation failed", zap.Error(err))
		face = basicFallbackFace(r.fonts[core.FontModern], size)
	}
	r.faces[key] = face
	return face
}

func basicFallbackFace(f *opentype.Font, size float64) font.Face {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72})
	if err != nil {
		panic(fmt.Sprintf("embedded font unusable: %v", err))
	}
	return face
}

// formatReleaseDate renders the catalog date (YYYY-MM-DD, YYYY-MM or
// YYYY) in the short US form the original frame shows, e.g. "Mar 20, 2020".
func formatReleaseDate(s string) string {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("Jan 2, 2006")
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return t.Format("Jan 2006")
	}
	return s
}

func fill(img *image.RGBA, c color.RGBA) {
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
}

func fillCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

func scaledRect(x, y, w, h, scale int) image.Rectangle {
	return image.Rect(x*scale, y*scale, (x+w)*scale, (y+h)*scale)
}

// boxBlur runs a separable box blur with the given radius in place.
func boxBlur(img *image.RGBA, radius int) {
	if radius < 1 {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := image.NewRGBA(b)

	// horizontal pass
	for y := 0; y < h; y++ {
		var sr, sg, sb int
		count := 0
		for x := -radius; x < w; x++ {
			if add := x + radius; add < w {
				c := img.RGBAAt(add, y)
				sr += int(c.R)
				sg += int(c.G)
				sb += int(c.B)
				count++
			}
			if rem := x - radius - 1; rem >= 0 {
				c := img.RGBAAt(rem, y)
				sr -= int(c.R)
				sg -= int(c.G)
				sb -= int(c.B)
				count--
			}
			if x >= 0 && count > 0 {
				tmp.SetRGBA(x, y, color.RGBA{uint8(sr / count), uint8(sg / count), uint8(sb / count), 255})
			}
		}
	}

	// vertical pass
	for x := 0; x < w; x++ {
		var sr, sg, sb int
		count := 0
		for y := -radius; y < h; y++ {
			if add := y + radius; add < h {
				c := tmp.RGBAAt(x, add)
				sr += int(c.R)
				sg += int(c.G)
				sb += int(c.B)
				count++
			}
			if rem := y - radius - 1; rem >= 0 {
				c := tmp.RGBAAt(x, rem)
				sr -= int(c.R)
				sg -= int(c.G)
				sb -= int(c.B)
				count--
			}
			if y >= 0 && count > 0 {
				img.SetRGBA(x, y, color.RGBA{uint8(sr / count), uint8(sg / count), uint8(sb / count), 255})
			}
		}
	}
}

// washWhite blends the canvas toward white by the given opacity.
func washWhite(img *image.RGBA, opacity float64) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(float64(c.R)*(1-opacity) + 255*opacity),
				G: uint8(float64(c.G)*(1-opacity) + 255*opacity),
				B: uint8(float64(c.B)*(1-opacity) + 255*opacity),
				A: 255,
			})
		}
	}
}
