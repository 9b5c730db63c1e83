// Package export rasterizes frames at capture scale and composites them
// onto fixed-size canvases for the share targets.
package export

import (
	"context"
	"image"

	"go.uber.org/zap"

	"sonolise/internal/frame"
	"sonolise/internal/palette"
	"sonolise/internal/scancode"
)

// CaptureEngine produces the export bitmap for a session. Every capture
// renders fresh: the frame may have changed since the last one, so
// nothing is cached across operations.
type CaptureEngine struct {
	renderer *frame.Renderer
	fetcher  palette.ImageFetcher
	codes    *scancode.Builder
	scale    int
	logger   *zap.Logger
}

// NewCaptureEngine fixes the device-pixel scale for all captures; the
// frame ships at 2x and the scale is not user-configurable.
func NewCaptureEngine(renderer *frame.Renderer, fetcher palette.ImageFetcher, codes *scancode.Builder, scale int, logger *zap.Logger) *CaptureEngine {
	if scale < 1 {
		scale = 2
	}
	return &CaptureEngine{
		renderer: renderer,
		fetcher:  fetcher,
		codes:    codes,
		scale:    scale,
		logger:   logger,
	}
}

// Scale returns the fixed capture scale.
func (e *CaptureEngine) Scale() int { return e.scale }

// Capture renders the session's frame at capture scale. Remote images
// that cannot be fetched leave their region blank rather than aborting:
// the returned degraded flag reports that at least one region is blank,
// mirroring core.ErrCaptureDegraded without failing the operation.
func (e *CaptureEngine) Capture(ctx context.Context, s *frame.Session) (*image.RGBA, bool, error) {
	// Any pending debounced edit commits now so the capture sees the
	// state the user last set.
	s.Options.Flush()
	opts := s.Options.Current()

	degraded := false

	var cover image.Image
	if url := s.Track.CoverURL(); url != "" {
		img, err := e.fetcher.Fetch(ctx, url)
		if err != nil {
			e.logger.Warn("cover not inlined, capturing without it",
				zap.String("url", url), zap.Error(err))
			degraded = true
		} else {
			cover = img
		}
	} else {
		degraded = true
	}

	var code image.Image
	if opts.ShowSpotifyCode && s.Track.URI != "" {
		url := e.codes.URL(s.Track.URI, opts.SpotifyCodeSize)
		img, err := e.fetcher.Fetch(ctx, url)
		if err != nil {
			e.logger.Warn("scannable code not inlined, capturing without it",
				zap.String("url", url), zap.Error(err))
			degraded = true
		} else {
			code = img
		}
	}

	img, err := e.renderer.Render(frame.Frame{
		Track:   s.Track,
		Album:   s.Album,
		Options: opts,
		Palette: s.WaitPalette(ctx),
		Cover:   cover,
		Code:    code,
	}, e.scale)
	if err != nil {
		return nil, degraded, err
	}
	return img, degraded, nil
}
