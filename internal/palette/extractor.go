// Package palette derives a dominant color and an N-color palette from
// album art via median-cut color quantization.
package palette

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // decoder registration
	_ "image/jpeg" // decoder registration
	_ "image/png"  // decoder registration
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"sonolise/internal/core"
)

// RGB is one palette entry with components in [0,255].
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// CSS renders the color as an rgb() value for page templates.
func (c RGB) CSS() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Palette is the derived color set for one album image. It is recomputed
// whenever the source URL or color count changes and never persisted.
type Palette struct {
	Dominant RGB   `json:"dominant"`
	Colors   []RGB `json:"colors"`
}

// ImageFetcher loads a remote image. Fetches carry no credentials so the
// raster can always be read back.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// HTTPFetcher is the production ImageFetcher.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	// No cookie jar: the request is anonymous by construction.
	return &HTTPFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrImageUnreadable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrImageUnreadable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", core.ErrImageUnreadable, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", core.ErrImageUnreadable, err)
	}
	return img, nil
}

// Extractor computes palettes from album images, memoizing results per
// (url, numColors) for a bounded time.
type Extractor struct {
	fetcher ImageFetcher
	cache   *expirable.LRU[string, Palette]
	logger  *zap.Logger
}

func NewExtractor(fetcher ImageFetcher, cacheSize int, logger *zap.Logger) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		cache:   expirable.NewLRU[string, Palette](cacheSize, nil, 10*time.Minute),
		logger:  logger,
	}
}

// Extract fetches the image and quantizes it into numColors clusters plus
// one dominant color. numColors outside [2,20] is clamped, not rejected.
// On any fetch or decode failure the error wraps core.ErrImageUnreadable
// and the caller should render with no palette.
func (e *Extractor) Extract(ctx context.Context, imageURL string, numColors int) (Palette, error) {
	if numColors < core.MinPaletteColors {
		numColors = core.MinPaletteColors
	}
	if numColors > core.MaxPaletteColors {
		numColors = core.MaxPaletteColors
	}

	key := fmt.Sprintf("%s|%d", imageURL, numColors)
	if p, ok := e.cache.Get(key); ok {
		return p, nil
	}

	img, err := e.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return Palette{}, err
	}

	p, err := quantize(img, numColors)
	if err != nil {
		return Palette{}, err
	}

	e.cache.Add(key, p)
	e.logger.Debug("palette extracted",
		zap.String("url", imageURL),
		zap.Int("colors", numColors),
		zap.String("dominant", p.Dominant.CSS()))
	return p, nil
}

// quantize runs the two sampling passes: a coarse pass for the full
// palette and a denser pass for the dominant color.
func quantize(img image.Image, numColors int) (Palette, error) {
	sampled := samplePixels(img, paletteSampleStep)
	if len(sampled) == 0 {
		// All-white or fully transparent art: fall back to sampling
		// everything before giving up.
		sampled = sampleAll(img)
	}
	if len(sampled) == 0 {
		return Palette{}, fmt.Errorf("%w: no readable pixels", core.ErrImageUnreadable)
	}

	clusters := medianCut(sampled, numColors)
	colors := make([]RGB, 0, numColors)
	for _, c := range clusters {
		colors = append(colors, toRGB(c.color))
	}
	// Low-variety images can produce fewer clusters than requested; the
	// contract is exactly numColors entries, so repeat the tail.
	for len(colors) < numColors {
		colors = append(colors, colors[len(colors)-1])
	}

	dominant := colors[0]
	if dense := samplePixels(img, dominantSampleStep); len(dense) > 0 {
		if dc := medianCut(dense, 5); len(dc) > 0 {
			dominant = toRGB(dc[0].color)
		}
	}

	return Palette{Dominant: dominant, Colors: colors}, nil
}

func sampleAll(img image.Image) []pixel {
	bounds := img.Bounds()
	pixels := make([]pixel, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			pixels = append(pixels, pixel{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
		}
	}
	return pixels
}

func toRGB(c colorful.Color) RGB {
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}
}
