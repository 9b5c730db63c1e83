package frame

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"sonolise/internal/core"
	"sonolise/internal/palette"
)

// Session owns the state for one viewed song: its immutable track and
// album records, the options store, and the derived palette. It is
// created when the frame page mounts and closed when the viewer
// navigates away; nothing survives it.
type Session struct {
	Track   *core.Track
	Album   *core.Album
	Options *OptionsStore

	extractor *palette.Extractor
	logger    *zap.Logger
	unsub     func()

	mu       sync.Mutex
	palette  *palette.Palette
	gen      uint64
	inflight int
	cancel   context.CancelFunc
	closed   bool
}

// NewSession wires the options store to palette refreshes: a committed
// numColors change restarts extraction for the current cover.
func NewSession(track *core.Track, album *core.Album, opts *OptionsStore, extractor *palette.Extractor, logger *zap.Logger) *Session {
	s := &Session{
		Track:     track,
		Album:     album,
		Options:   opts,
		extractor: extractor,
		logger:    logger,
	}

	last := opts.Current().NumColors
	s.unsub = opts.Subscribe(func(o core.DisplayOptions) {
		if o.NumColors != last {
			last = o.NumColors
			s.RefreshPalette(context.Background())
		}
	})
	return s
}

// Palette returns the most recently extracted palette, or nil while none
// has completed (or the image was unreadable).
func (s *Session) Palette() *palette.Palette {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.palette
}

// RefreshPalette starts an asynchronous extraction for the current cover
// and color count. Extractions follow a last-request-wins policy: each
// call bumps a generation counter and cancels the previous in-flight
// request, and a stale completion never overwrites a newer result.
func (s *Session) RefreshPalette(ctx context.Context) {
	url := s.Track.CoverURL()
	if url == "" {
		return
	}
	numColors := s.Options.Current().NumColors

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.inflight++
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()

		p, err := s.extractor.Extract(ctx, url, numColors)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.inflight--
		if s.closed || gen != s.gen {
			return
		}
		if err != nil {
			// ImageUnreadable recovers locally: the frame renders with
			// no palette and the user never sees it.
			s.logger.Warn("palette extraction failed", zap.String("url", url), zap.Error(err))
			s.palette = nil
			return
		}
		s.palette = &p
	}()
}

// WaitPalette blocks until an extraction outcome for the current
// generation is visible or the context ends. The synchronous render path
// uses it so a first page view does not race the extraction goroutine.
func (s *Session) WaitPalette(ctx context.Context) *palette.Palette {
	for {
		s.mu.Lock()
		p, busy := s.palette, s.inflight > 0
		s.mu.Unlock()
		if p != nil || !busy {
			return p
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close tears the session down: pending extraction is cancelled, the
// options store stops, and late callbacks cannot mutate state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.unsub()
	s.Options.Close()
}

// Manager keeps live sessions keyed by song id with a TTL so abandoned
// page views do not accumulate. Eviction closes the session.
type Manager struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
}

func NewManager(capacity int, ttl time.Duration) *Manager {
	m := &Manager{}
	m.sessions = expirable.NewLRU[string, *Session](capacity, func(_ string, s *Session) {
		s.Close()
	}, ttl)
	return m
}

// Get returns the live session for a song id, if any.
func (m *Manager) Get(songID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Get(songID)
}

// Put registers a session, closing any previous one for the same song.
func (m *Manager) Put(songID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions.Peek(songID); ok && old != s {
		old.Close()
	}
	m.sessions.Add(songID, s)
}

// Remove drops and closes the session for a song id.
func (m *Manager) Remove(songID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Remove(songID)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Len()
}
