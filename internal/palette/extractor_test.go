package palette

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"go.uber.org/zap"

	"sonolise/internal/core"
)

type fakeFetcher struct {
	img     image.Image
	err     error
	fetches int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (image.Image, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

// stripes builds an image of equally tall horizontal color bands.
func stripes(colors ...color.RGBA) image.Image {
	const w, h = 100, 100
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	band := h / len(colors)
	for y := 0; y < h; y++ {
		c := colors[min(y/band, len(colors)-1)]
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func newTestExtractor(f ImageFetcher) *Extractor {
	return NewExtractor(f, 16, zap.NewNop())
}

func TestExtractPaletteSize(t *testing.T) {
	img := stripes(
		color.RGBA{200, 30, 30, 255},
		color.RGBA{30, 200, 30, 255},
		color.RGBA{30, 30, 200, 255},
		color.RGBA{200, 200, 30, 255},
	)

	for numColors := core.MinPaletteColors; numColors <= core.MaxPaletteColors; numColors++ {
		e := newTestExtractor(&fakeFetcher{img: img})
		p, err := e.Extract(context.Background(), "http://art/cover.jpg", numColors)
		if err != nil {
			t.Fatalf("Extract(%d): %v", numColors, err)
		}
		if len(p.Colors) != numColors {
			t.Errorf("Extract(%d) returned %d colors", numColors, len(p.Colors))
		}
	}
}

func TestExtractClampsNumColors(t *testing.T) {
	img := stripes(color.RGBA{200, 30, 30, 255}, color.RGBA{30, 30, 200, 255})

	cases := []struct {
		in, want int
	}{
		{-3, core.MinPaletteColors},
		{0, core.MinPaletteColors},
		{1, core.MinPaletteColors},
		{21, core.MaxPaletteColors},
		{1000, core.MaxPaletteColors},
	}

	for _, c := range cases {
		e := newTestExtractor(&fakeFetcher{img: img})
		p, err := e.Extract(context.Background(), "http://art/cover.jpg", c.in)
		if err != nil {
			t.Fatalf("Extract(%d): %v", c.in, err)
		}
		if len(p.Colors) != c.want {
			t.Errorf("Extract(%d) returned %d colors, want %d", c.in, len(p.Colors), c.want)
		}
	}
}

func TestExtractDominantIsLargestBand(t *testing.T) {
	// Three quarters red, one quarter blue: dominant must land near red.
	const w, h = 100, 100
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.RGBA{220, 20, 20, 255}
		if y >= 75 {
			c = color.RGBA{20, 20, 220, 255}
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	e := newTestExtractor(&fakeFetcher{img: img})
	p, err := e.Extract(context.Background(), "http://art/cover.jpg", 4)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if p.Dominant.R < 150 || p.Dominant.B > 100 {
		t.Errorf("Dominant = %+v, expected a red", p.Dominant)
	}
}

func TestExtractUnreadableImage(t *testing.T) {
	e := newTestExtractor(&fakeFetcher{err: core.ErrImageUnreadable})

	_, err := e.Extract(context.Background(), "http://art/broken.jpg", 5)
	if !errors.Is(err, core.ErrImageUnreadable) {
		t.Errorf("err = %v, want ErrImageUnreadable", err)
	}
}

func TestExtractMemoizesPerURLAndCount(t *testing.T) {
	img := stripes(color.RGBA{200, 30, 30, 255}, color.RGBA{30, 30, 200, 255})
	f := &fakeFetcher{img: img}
	e := newTestExtractor(f)

	ctx := context.Background()
	if _, err := e.Extract(ctx, "http://art/a.jpg", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Extract(ctx, "http://art/a.jpg", 5); err != nil {
		t.Fatal(err)
	}
	if f.fetches != 1 {
		t.Errorf("fetches = %d, want 1 (second call cached)", f.fetches)
	}

	// A different color count is a distinct computation.
	if _, err := e.Extract(ctx, "http://art/a.jpg", 7); err != nil {
		t.Fatal(err)
	}
	if f.fetches != 2 {
		t.Errorf("fetches = %d, want 2 after numColors change", f.fetches)
	}
}

func TestExtractSolidColorImage(t *testing.T) {
	img := stripes(color.RGBA{90, 120, 180, 255})
	e := newTestExtractor(&fakeFetcher{img: img})

	p, err := e.Extract(context.Background(), "http://art/solid.jpg", 5)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	// A single-color image cannot split further; the contract is still
	// exactly numColors entries.
	if len(p.Colors) != 5 {
		t.Errorf("len(Colors) = %d, want 5", len(p.Colors))
	}
}

func TestExtractAllWhiteImageFallsBack(t *testing.T) {
	img := stripes(color.RGBA{255, 255, 255, 255})
	e := newTestExtractor(&fakeFetcher{img: img})

	// Near-white pixels are excluded from sampling; the fallback pass
	// must still produce a palette rather than fail.
	p, err := e.Extract(context.Background(), "http://art/white.jpg", 3)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(p.Colors) != 3 {
		t.Errorf("len(Colors) = %d, want 3", len(p.Colors))
	}
}
