package frame

import (
	"sync"
	"time"

	"sonolise/internal/core"
)

// OptionsPatch is a partial DisplayOptions update. Nil fields leave the
// current value untouched; JSON tags match the edit form payload.
type OptionsPatch struct {
	ShowPalette       *bool                 `json:"showPalette,omitempty"`
	NumColors         *int                  `json:"numColors,omitempty"`
	ShowReleaseDate   *bool                 `json:"showReleaseDate,omitempty"`
	ShowAlbumLength   *bool                 `json:"showAlbumLength,omitempty"`
	ShowLabel         *bool                 `json:"showLabel,omitempty"`
	ShowTracks        *bool                 `json:"showTracks,omitempty"`
	NumTracksToShow   *int                  `json:"numTracksToShow,omitempty"`
	ImageSize         *core.ImageSize       `json:"imageSize,omitempty"`
	ShowArtists       *bool                 `json:"showArtists,omitempty"`
	ShowPopularity    *bool                 `json:"showPopularity,omitempty"`
	BackgroundStyle   *core.BackgroundStyle `json:"backgroundStyle,omitempty"`
	FontStyle         *core.FontStyle       `json:"fontStyle,omitempty"`
	ShowSpotifyCode   *bool                 `json:"showSpotifyCode,omitempty"`
	SpotifyCodeSize   *int                  `json:"spotifyCodeSize,omitempty"`
	ShowExplicitLabel *bool                 `json:"showExplicitLabel,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *OptionsPatch) IsEmpty() bool {
	return p.ShowPalette == nil && p.NumColors == nil && p.ShowReleaseDate == nil &&
		p.ShowAlbumLength == nil && p.ShowLabel == nil && p.ShowTracks == nil &&
		p.NumTracksToShow == nil && p.ImageSize == nil && p.ShowArtists == nil &&
		p.ShowPopularity == nil && p.BackgroundStyle == nil && p.FontStyle == nil &&
		p.ShowSpotifyCode == nil && p.SpotifyCodeSize == nil && p.ShowExplicitLabel == nil
}

func (p *OptionsPatch) apply(o *core.DisplayOptions) {
	if p.ShowPalette != nil {
		o.ShowPalette = *p.ShowPalette
	}
	if p.NumColors != nil {
		o.NumColors = *p.NumColors
	}
	if p.ShowReleaseDate != nil {
		o.ShowReleaseDate = *p.ShowReleaseDate
	}
	if p.ShowAlbumLength != nil {
		o.ShowAlbumLength = *p.ShowAlbumLength
	}
	if p.ShowLabel != nil {
		o.ShowLabel = *p.ShowLabel
	}
	if p.ShowTracks != nil {
		o.ShowTracks = *p.ShowTracks
	}
	if p.NumTracksToShow != nil {
		o.NumTracksToShow = *p.NumTracksToShow
	}
	if p.ImageSize != nil {
		o.ImageSize = *p.ImageSize
	}
	if p.ShowArtists != nil {
		o.ShowArtists = *p.ShowArtists
	}
	if p.ShowPopularity != nil {
		o.ShowPopularity = *p.ShowPopularity
	}
	if p.BackgroundStyle != nil {
		o.BackgroundStyle = *p.BackgroundStyle
	}
	if p.FontStyle != nil {
		o.FontStyle = *p.FontStyle
	}
	if p.ShowSpotifyCode != nil {
		o.ShowSpotifyCode = *p.ShowSpotifyCode
	}
	if p.SpotifyCodeSize != nil {
		o.SpotifyCodeSize = *p.SpotifyCodeSize
	}
	if p.ShowExplicitLabel != nil {
		o.ShowExplicitLabel = *p.ShowExplicitLabel
	}
}

// OptionsStore holds the authoritative DisplayOptions for one frame and
// serializes edits through a debounce window: raw updates accumulate, and
// only the merged result commits once the window goes quiet. Clamping
// runs at commit time so the form does not fight the user mid-drag.
//
// The committed state has exactly one writer path (the debounce timer)
// and any number of readers.
type OptionsStore struct {
	mu sync.Mutex

	current     core.DisplayOptions
	pending     core.DisplayOptions
	dirty       bool
	timer       *time.Timer
	timerSeq    uint64
	delay       time.Duration
	albumTracks int
	closed      bool

	subs    map[int]func(core.DisplayOptions)
	nextSub int
}

// NewOptionsStore starts from the page-mount defaults. albumTrackCount
// bounds numTracksToShow during commit clamping.
func NewOptionsStore(delay time.Duration, albumTrackCount int) *OptionsStore {
	opts := core.DefaultDisplayOptions()
	opts.Clamp(albumTrackCount)
	return &OptionsStore{
		current:     opts,
		pending:     opts,
		delay:       delay,
		albumTracks: albumTrackCount,
		subs:        make(map[int]func(core.DisplayOptions)),
	}
}

// Current returns the committed options.
func (s *OptionsStore) Current() core.DisplayOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update buffers a partial edit. An empty patch is a no-op: it neither
// arms the debounce timer nor notifies subscribers.
func (s *OptionsStore) Update(patch OptionsPatch) {
	if patch.IsEmpty() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	patch.apply(&s.pending)
	s.dirty = true

	// Stop is not enough on its own: a timer that already fired is
	// sitting in commitSeq waiting on mu and would publish this merge
	// early. Bumping the sequence makes that callback a no-op.
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerSeq++
	seq := s.timerSeq
	s.timer = time.AfterFunc(s.delay, func() { s.commitSeq(seq) })
}

// Flush commits any pending edit immediately, short-circuiting the
// debounce window. Used by the capture path so an export never races a
// timer.
func (s *OptionsStore) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
	s.commitLocked()
}

// commitSeq is the debounce timer callback. Only the most recently
// armed timer may commit; a stale sequence means an Update or Flush
// superseded this one.
func (s *OptionsStore) commitSeq(seq uint64) {
	s.mu.Lock()
	if seq != s.timerSeq {
		s.mu.Unlock()
		return
	}
	s.commitLocked()
}

// commitLocked expects s.mu held and releases it before notifying
// subscribers.
func (s *OptionsStore) commitLocked() {
	if s.closed || !s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = false

	next := s.pending
	next.Clamp(s.albumTracks)
	s.pending = next

	if next == s.current {
		s.mu.Unlock()
		return
	}
	s.current = next

	subs := make([]func(core.DisplayOptions), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

// Subscribe registers fn to run after every committed change and returns
// an unsubscribe func.
func (s *OptionsStore) Subscribe(fn func(core.DisplayOptions)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close cancels any pending commit. No subscriber runs after Close.
func (s *OptionsStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.subs = make(map[int]func(core.DisplayOptions))
}
