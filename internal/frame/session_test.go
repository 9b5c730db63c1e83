package frame

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"sonolise/internal/palette"
)

// gateFetcher blocks each Fetch until the test releases it, in call
// order.
type gateFetcher struct {
	mu    sync.Mutex
	gates []chan struct{}
	img   image.Image
}

func newGateFetcher() *gateFetcher {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{200, 40, 40, 255}
			if y >= 20 {
				c = color.RGBA{40, 40, 200, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return &gateFetcher{img: img}
}

func (g *gateFetcher) Fetch(ctx context.Context, _ string) (image.Image, error) {
	g.mu.Lock()
	gate := make(chan struct{})
	g.gates = append(g.gates, gate)
	g.mu.Unlock()

	select {
	case <-gate:
		return g.img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gateFetcher) release(i int) {
	deadline := time.Now().Add(time.Second)
	for {
		g.mu.Lock()
		ok := len(g.gates) > i
		g.mu.Unlock()
		if ok {
			break
		}
		if time.Now().After(deadline) {
			panic("gateFetcher: fetch never started")
		}
		time.Sleep(time.Millisecond)
	}
	g.mu.Lock()
	close(g.gates[i])
	g.mu.Unlock()
}

func newGatedSession(f palette.ImageFetcher) *Session {
	opts := NewOptionsStore(testDelay, 6)
	extractor := palette.NewExtractor(f, 16, zap.NewNop())
	return NewSession(testTrack(), testAlbum(), opts, extractor, zap.NewNop())
}

func waitPalette(t *testing.T, s *Session) *palette.Palette {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.WaitPalette(ctx)
}

func TestSessionPaletteRefresh(t *testing.T) {
	f := newGateFetcher()
	s := newGatedSession(f)
	defer s.Close()

	s.RefreshPalette(context.Background())
	f.release(0)

	p := waitPalette(t, s)
	if p == nil {
		t.Fatal("palette not extracted")
	}
	if len(p.Colors) != 5 {
		t.Errorf("len(Colors) = %d, want default 5", len(p.Colors))
	}
}

func TestSessionLastRequestWins(t *testing.T) {
	f := newGateFetcher()
	s := newGatedSession(f)
	defer s.Close()

	// First refresh stalls; a second one supersedes it.
	s.RefreshPalette(context.Background())
	s.Options.Update(OptionsPatch{NumColors: intPtr(9)})
	s.Options.Flush()

	// Let the newer request finish first, then the stale one.
	f.release(1)
	p := waitPalette(t, s)
	if p == nil {
		t.Fatal("palette not extracted")
	}
	f.release(0)
	time.Sleep(20 * time.Millisecond)

	p = s.Palette()
	if p == nil {
		t.Fatal("palette vanished")
	}
	// The stale 5-color completion must not overwrite the 9-color one.
	if len(p.Colors) != 9 {
		t.Errorf("len(Colors) = %d, want 9 (stale result overwrote newer)", len(p.Colors))
	}
}

func TestSessionNumColorsCommitTriggersRefresh(t *testing.T) {
	f := newGateFetcher()
	s := newGatedSession(f)
	defer s.Close()

	s.Options.Update(OptionsPatch{NumColors: intPtr(7)})
	s.Options.Flush()
	f.release(0)

	p := waitPalette(t, s)
	if p == nil {
		t.Fatal("commit did not trigger extraction")
	}
	if len(p.Colors) != 7 {
		t.Errorf("len(Colors) = %d, want 7", len(p.Colors))
	}
}

func TestSessionCloseSuppressesLateResult(t *testing.T) {
	f := newGateFetcher()
	s := newGatedSession(f)

	s.RefreshPalette(context.Background())
	s.Close()
	f.release(0)
	time.Sleep(20 * time.Millisecond)

	if s.Palette() != nil {
		t.Error("extraction completed after Close mutated session state")
	}
}

func TestSessionWithoutCoverDoesNothing(t *testing.T) {
	f := newGateFetcher()
	opts := NewOptionsStore(testDelay, 6)
	extractor := palette.NewExtractor(f, 16, zap.NewNop())
	track := testTrack()
	track.Album.Images = nil
	s := NewSession(track, testAlbum(), opts, extractor, zap.NewNop())
	defer s.Close()

	s.RefreshPalette(context.Background())
	if p := waitPalette(t, s); p != nil {
		t.Errorf("palette = %+v for track without cover", p)
	}
}

func TestManagerEvictionClosesSession(t *testing.T) {
	m := NewManager(1, time.Hour)

	a := newGatedSession(newGateFetcher())
	b := newGatedSession(newGateFetcher())

	m.Put("a", a)
	m.Put("b", b) // capacity 1: evicts and closes a

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if !closed {
		t.Error("evicted session was not closed")
	}

	if _, ok := m.Get("a"); ok {
		t.Error("evicted session still retrievable")
	}
	if _, ok := m.Get("b"); !ok {
		t.Error("live session missing")
	}
}

func TestManagerPutReplacesAndCloses(t *testing.T) {
	m := NewManager(4, time.Hour)

	first := newGatedSession(newGateFetcher())
	second := newGatedSession(newGateFetcher())

	m.Put("song", first)
	m.Put("song", second)

	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	if !closed {
		t.Error("replaced session was not closed")
	}

	got, ok := m.Get("song")
	if !ok || got != second {
		t.Error("manager did not return the replacement session")
	}
}
