// Package share routes composited frame bitmaps and page links to their
// destinations: the native share surface, the clipboard, or a plain file
// download. Destinations degrade along a fixed fallback chain based on
// what the platform offers.
package share

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sonolise/internal/core"
	"sonolise/internal/export"
	"sonolise/internal/frame"
	"sonolise/pkg/textnorm"
)

// Target is one export destination with its required canvas.
type Target string

const (
	// TargetNativeShare is the instagram-style portrait share.
	TargetNativeShare Target = "instagram"
	// TargetSocial is the generic landscape social preview.
	TargetSocial Target = "social"
	// TargetDownload keeps the natural captured size.
	TargetDownload Target = "download"
	// TargetCopyLink copies the page URL instead of an image.
	TargetCopyLink Target = "copy"
)

// Canvas dimensions per target. Zero means natural size.
var targetDims = map[Target][2]int{
	TargetNativeShare: {1080, 1920},
	TargetSocial:      {1200, 630},
	TargetDownload:    {0, 0},
}

const (
	shareText        = "Check out this track!"
	copiedIndicator  = 2 * time.Second
	genericShareFail = "there was an error sharing, please try again"
)

// ShareFile is a named PNG handed to a destination sink.
type ShareFile struct {
	Name  string
	Title string
	Text  string
	PNG   []byte
}

// ShareSink is a native share surface. Available reports platform
// capability; Share may still fail after probing true.
type ShareSink interface {
	Available() bool
	Share(ctx context.Context, f ShareFile) error
}

// DownloadSink is the always-present fallback destination.
type DownloadSink interface {
	Download(ctx context.Context, f ShareFile) error
}

// Clipboard writes a text string to a clipboard mechanism.
type Clipboard interface {
	Write(text string) error
}

// Outcome reports how a dispatch ended. OK is false only after every
// fallback for the target was exhausted.
type Outcome struct {
	OK       bool   `json:"ok"`
	Target   Target `json:"target"`
	Filename string `json:"filename,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Dispatcher runs one capture-composite-deliver pipeline per call. A
// shared busy flag guards the UI surface and is cleared on every exit
// path; failed dispatches never leave state behind for the next one.
type Dispatcher struct {
	capture    *export.CaptureEngine
	compositor *export.Compositor
	shareSink  ShareSink
	download   DownloadSink
	clipboards []Clipboard
	logger     *zap.Logger

	mu          sync.Mutex
	busy        bool
	copiedUntil time.Time
}

func NewDispatcher(capture *export.CaptureEngine, compositor *export.Compositor, shareSink ShareSink, download DownloadSink, clipboards []Clipboard, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		capture:    capture,
		compositor: compositor,
		shareSink:  shareSink,
		download:   download,
		clipboards: clipboards,
		logger:     logger,
	}
}

// Busy reports whether a dispatch is in flight.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

// CopiedActive reports whether the transient "copied" indicator should
// still show.
func (d *Dispatcher) CopiedActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Now().Before(d.copiedUntil)
}

// Dispatch routes one share request. Every invocation is independent;
// errors from one attempt never abort the chain, and only a fully
// exhausted chain surfaces the generic failure notice.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, s *frame.Session, pageURL string) Outcome {
	d.mu.Lock()
	d.busy = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.busy = false
		d.mu.Unlock()
	}()

	if target == TargetCopyLink {
		return d.copyLink(pageURL)
	}
	return d.shareImage(ctx, target, s, pageURL)
}

// copyLink walks the clipboard chain: the secure mechanism first, then
// the legacy one. It never returns an error to the caller; total failure
// becomes a generic notice and the indicator stays dark.
func (d *Dispatcher) copyLink(pageURL string) Outcome {
	// Re-arm the indicator on every call so back-to-back copies each
	// get their own 2 seconds.
	d.mu.Lock()
	d.copiedUntil = time.Time{}
	d.mu.Unlock()

	for _, cb := range d.clipboards {
		if cb == nil {
			continue
		}
		if err := cb.Write(pageURL); err != nil {
			d.logger.Warn("clipboard mechanism failed, trying next", zap.Error(err))
			continue
		}
		d.mu.Lock()
		d.copiedUntil = time.Now().Add(copiedIndicator)
		d.mu.Unlock()
		return Outcome{OK: true, Target: TargetCopyLink, Message: "Copied!"}
	}

	d.logger.Error("all clipboard mechanisms failed", zap.Error(core.ErrClipboardFailed))
	return Outcome{OK: false, Target: TargetCopyLink, Message: genericShareFail}
}

func (d *Dispatcher) shareImage(ctx context.Context, target Target, s *frame.Session, pageURL string) Outcome {
	dims, ok := targetDims[target]
	if !ok {
		// Unknown targets get the generic social canvas, matching the
		// original default branch.
		dims = targetDims[TargetSocial]
		target = TargetSocial
	}

	bitmap, degraded, err := d.capture.Capture(ctx, s)
	if err != nil {
		d.logger.Error("capture failed", zap.Error(err))
		return Outcome{OK: false, Target: target, Message: genericShareFail}
	}
	if degraded {
		d.logger.Warn("sharing a degraded capture", zap.String("track", s.Track.ID))
	}

	composited := d.compositor.Composite(bitmap, dims[0], dims[1])
	data, err := d.compositor.EncodePNG(composited)
	if err != nil {
		d.logger.Error("png encode failed", zap.Error(err))
		return Outcome{OK: false, Target: target, Message: genericShareFail}
	}

	file := ShareFile{
		Name:  Filename(s.Track),
		Title: fmt.Sprintf("%s by %s", s.Track.Name, s.Track.ArtistLine()),
		Text:  shareText,
		PNG:   data,
	}

	if d.shareSink != nil && d.shareSink.Available() {
		err := d.shareSink.Share(ctx, file)
		if err == nil {
			return Outcome{OK: true, Target: target, Filename: file.Name}
		}
		d.logger.Warn("native share failed, falling back to download",
			zap.Error(fmt.Errorf("%w: %v", core.ErrShareFailed, err)))
	}

	if d.download != nil {
		err := d.download.Download(ctx, file)
		if err == nil {
			return Outcome{OK: true, Target: target, Filename: file.Name}
		}
		d.logger.Error("download fallback failed", zap.Error(err))
	}

	return Outcome{OK: false, Target: target, Message: genericShareFail}
}

// Filename builds the export name: <TrackName>_<FirstArtist>.png with
// whitespace collapsed to underscores.
func Filename(t *core.Track) string {
	return fmt.Sprintf("%s_%s.png", textnorm.Filename(t.Name), textnorm.Filename(t.FirstArtist()))
}
