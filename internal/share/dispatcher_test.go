package share

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"go.uber.org/zap"

	"sonolise/internal/core"
	"sonolise/internal/export"
	"sonolise/internal/frame"
	"sonolise/internal/palette"
	"sonolise/internal/scancode"
)

type solidFetcher struct {
	calls int
}

func (f *solidFetcher) Fetch(_ context.Context, _ string) (image.Image, error) {
	f.calls++
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 120, G: 40, B: 200, A: 255})
		}
	}
	return img, nil
}

type fakeShareSink struct {
	available bool
	err       error
	files     []ShareFile
}

func (s *fakeShareSink) Available() bool { return s.available }

func (s *fakeShareSink) Share(_ context.Context, f ShareFile) error {
	if s.err != nil {
		return s.err
	}
	s.files = append(s.files, f)
	return nil
}

type fakeDownloadSink struct {
	err   error
	files []ShareFile
}

func (s *fakeDownloadSink) Download(_ context.Context, f ShareFile) error {
	if s.err != nil {
		return s.err
	}
	s.files = append(s.files, f)
	return nil
}

type fakeClipboard struct {
	err    error
	copied []string
}

func (c *fakeClipboard) Write(text string) error {
	if c.err != nil {
		return c.err
	}
	c.copied = append(c.copied, text)
	return nil
}

func shareSession(t *testing.T) *frame.Session {
	t.Helper()

	track := &core.Track{
		ID:      "t1",
		Name:    "Bohemian Rhapsody",
		URI:     "spotify:track:t1",
		Artists: []core.Artist{{Name: "Queen"}},
		Album: core.AlbumRef{
			ID:          "a1",
			Name:        "A Night at the Opera",
			ReleaseDate: "1975-11-21",
			Images:      []core.AlbumImage{{URL: "https://img.example/cover", Width: 640, Height: 640}},
		},
	}
	album := &core.Album{
		Name: "A Night at the Opera",
		Tracks: core.AlbumTracks{Items: []core.AlbumTrack{
			{Name: "Death on Two Legs", DurationMS: 223000},
			{Name: "Bohemian Rhapsody", DurationMS: 354000},
		}},
	}

	opts := frame.NewOptionsStore(5*time.Millisecond, len(album.Tracks.Items))
	extractor := palette.NewExtractor(&solidFetcher{}, 16, zap.NewNop())
	s := frame.NewSession(track, album, opts, extractor, zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func newDispatcher(t *testing.T, shareSink ShareSink, download DownloadSink, clipboards ...Clipboard) *Dispatcher {
	t.Helper()

	r, err := frame.NewRenderer(640, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	engine := export.NewCaptureEngine(r, &solidFetcher{}, scancode.NewBuilder("scannables.scdn.co"), 2, zap.NewNop())
	return NewDispatcher(engine, export.NewCompositor(), shareSink, download, clipboards, zap.NewNop())
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func TestCopyLinkWritesURLAndArmsIndicator(t *testing.T) {
	cb := &fakeClipboard{}
	d := newDispatcher(t, nil, nil, cb)

	out := d.Dispatch(context.Background(), TargetCopyLink, nil, "https://sonolise.example/frame/t1")
	if !out.OK {
		t.Fatalf("copy link failed: %+v", out)
	}
	if len(cb.copied) != 1 || cb.copied[0] != "https://sonolise.example/frame/t1" {
		t.Fatalf("copied = %v", cb.copied)
	}
	if !d.CopiedActive() {
		t.Fatal("copied indicator not armed")
	}
}

func TestCopyLinkFallsBackToLegacyMechanism(t *testing.T) {
	broken := &fakeClipboard{err: errors.New("no display")}
	legacy := &fakeClipboard{}
	d := newDispatcher(t, nil, nil, broken, legacy)

	out := d.Dispatch(context.Background(), TargetCopyLink, nil, "https://sonolise.example/frame/t1")
	if !out.OK {
		t.Fatalf("copy link failed: %+v", out)
	}
	if len(legacy.copied) != 1 {
		t.Fatalf("legacy writes = %d, want 1", len(legacy.copied))
	}
}

func TestCopyLinkExhaustedChainNeverErrors(t *testing.T) {
	broken := &fakeClipboard{err: errors.New("no display")}
	d := newDispatcher(t, nil, nil, broken, broken)

	out := d.Dispatch(context.Background(), TargetCopyLink, nil, "https://sonolise.example/frame/t1")
	if out.OK {
		t.Fatal("expected failed outcome")
	}
	if out.Message != genericShareFail {
		t.Fatalf("message = %q", out.Message)
	}
	if d.CopiedActive() {
		t.Fatal("indicator armed despite total failure")
	}
	if d.Busy() {
		t.Fatal("busy flag left set")
	}
}

func TestCopyLinkIndicatorReArmsPerCall(t *testing.T) {
	cb := &fakeClipboard{}
	d := newDispatcher(t, nil, nil, cb)

	d.Dispatch(context.Background(), TargetCopyLink, nil, "https://a")
	first := d.copiedUntil
	time.Sleep(20 * time.Millisecond)
	d.Dispatch(context.Background(), TargetCopyLink, nil, "https://a")
	if !d.copiedUntil.After(first) {
		t.Fatal("indicator deadline not re-armed on second copy")
	}
}

func TestNativeShareReceivesNamedFile(t *testing.T) {
	sink := &fakeShareSink{available: true}
	dl := &fakeDownloadSink{}
	d := newDispatcher(t, sink, dl)
	s := shareSession(t)

	out := d.Dispatch(context.Background(), TargetNativeShare, s, "")
	if !out.OK {
		t.Fatalf("dispatch failed: %+v", out)
	}
	if len(sink.files) != 1 {
		t.Fatalf("share calls = %d, want 1", len(sink.files))
	}
	f := sink.files[0]
	if f.Name != "Bohemian_Rhapsody_Queen.png" {
		t.Errorf("filename = %q", f.Name)
	}
	if f.Title != "Bohemian Rhapsody by Queen" {
		t.Errorf("title = %q", f.Title)
	}
	if len(dl.files) != 0 {
		t.Error("download sink used despite native success")
	}

	img := decodePNG(t, f.PNG)
	b := img.Bounds()
	if b.Dx() != 1080 || b.Dy() != 1920 {
		t.Errorf("canvas = %dx%d, want 1080x1920", b.Dx(), b.Dy())
	}
}

func TestSocialTargetUsesLandscapeCanvas(t *testing.T) {
	sink := &fakeShareSink{available: true}
	d := newDispatcher(t, sink, &fakeDownloadSink{})
	s := shareSession(t)

	out := d.Dispatch(context.Background(), TargetSocial, s, "")
	if !out.OK {
		t.Fatalf("dispatch failed: %+v", out)
	}
	b := decodePNG(t, sink.files[0].PNG).Bounds()
	if b.Dx() != 1200 || b.Dy() != 630 {
		t.Errorf("canvas = %dx%d, want 1200x630", b.Dx(), b.Dy())
	}
}

func TestUnknownTargetFallsBackToSocial(t *testing.T) {
	sink := &fakeShareSink{available: true}
	d := newDispatcher(t, sink, &fakeDownloadSink{})
	s := shareSession(t)

	out := d.Dispatch(context.Background(), Target("story"), s, "")
	if !out.OK {
		t.Fatalf("dispatch failed: %+v", out)
	}
	if out.Target != TargetSocial {
		t.Errorf("target = %q, want %q", out.Target, TargetSocial)
	}
}

func TestDownloadKeepsNaturalSize(t *testing.T) {
	dl := &fakeDownloadSink{}
	d := newDispatcher(t, &fakeShareSink{available: false}, dl)
	s := shareSession(t)

	out := d.Dispatch(context.Background(), TargetDownload, s, "")
	if !out.OK {
		t.Fatalf("dispatch failed: %+v", out)
	}
	if len(dl.files) != 1 {
		t.Fatalf("download calls = %d, want 1", len(dl.files))
	}
	b := decodePNG(t, dl.files[0].PNG).Bounds()
	if b.Dx() != 1280 {
		t.Errorf("natural width = %d, want 1280", b.Dx())
	}
}

func TestNativeFailureFallsBackToDownload(t *testing.T) {
	sink := &fakeShareSink{available: true, err: errors.New("user dismissed")}
	dl := &fakeDownloadSink{}
	d := newDispatcher(t, sink, dl)
	s := shareSession(t)

	out := d.Dispatch(context.Background(), TargetNativeShare, s, "")
	if !out.OK {
		t.Fatalf("dispatch failed: %+v", out)
	}
	if len(dl.files) != 1 {
		t.Fatalf("download calls = %d, want 1", len(dl.files))
	}
}

func TestExhaustedImageChainReportsGenericFailure(t *testing.T) {
	sink := &fakeShareSink{available: true, err: errors.New("dismissed")}
	dl := &fakeDownloadSink{err: errors.New("disk full")}
	d := newDispatcher(t, sink, dl)
	s := shareSession(t)

	out := d.Dispatch(context.Background(), TargetNativeShare, s, "")
	if out.OK {
		t.Fatal("expected failed outcome")
	}
	if out.Message != genericShareFail {
		t.Fatalf("message = %q", out.Message)
	}
	if d.Busy() {
		t.Fatal("busy flag left set after failure")
	}
}

func TestFilenameCollapsesWhitespace(t *testing.T) {
	track := &core.Track{
		Name:    "Don't Stop  Me Now",
		Artists: []core.Artist{{Name: "Queen"}},
	}
	if got := Filename(track); got != "Don't_Stop_Me_Now_Queen.png" {
		t.Errorf("Filename = %q", got)
	}
}
