package core

import (
	"testing"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   int
		want string
	}{
		{0, "0:00"},
		{999, "0:00"},
		{1000, "0:01"},
		{59999, "0:59"},
		{60000, "1:00"},
		{61000, "1:01"},
		{450000, "7:30"},
		{4575000, "76:15"},
	}

	for _, c := range cases {
		if got := FormatDuration(c.ms); got != c.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}

func TestFormatDurationSubMinuteIsZeroPadded(t *testing.T) {
	// Every duration under one minute must render as 0:SS.
	for ms := 0; ms < 60000; ms += 1500 {
		got := FormatDuration(ms)
		if len(got) != 4 || got[0] != '0' || got[1] != ':' {
			t.Fatalf("FormatDuration(%d) = %q, want 0:SS form", ms, got)
		}
	}
}

func TestAlbumTotalDuration(t *testing.T) {
	album := Album{
		Tracks: AlbumTracks{Items: []AlbumTrack{
			{Name: "one", DurationMS: 200000},
			{Name: "two", DurationMS: 150000},
			{Name: "three", DurationMS: 100000},
		}},
	}

	if got := album.TotalDurationMS(); got != 450000 {
		t.Errorf("TotalDurationMS() = %d, want 450000", got)
	}
	if got := FormatDuration(album.TotalDurationMS()); got != "7:30" {
		t.Errorf("album length = %q, want 7:30", got)
	}
}

func TestTrackArtistHelpers(t *testing.T) {
	track := Track{Artists: []Artist{{Name: "First"}, {Name: "Second"}}}

	if got := track.FirstArtist(); got != "First" {
		t.Errorf("FirstArtist() = %q", got)
	}
	if got := track.ArtistLine(); got != "First, Second" {
		t.Errorf("ArtistLine() = %q", got)
	}

	empty := Track{}
	if empty.FirstArtist() != "" || empty.ArtistLine() != "" {
		t.Error("empty track should yield empty artist strings")
	}
	if empty.CoverURL() != "" {
		t.Error("empty track should yield empty cover URL")
	}
}

func TestDisplayOptionsClamp(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*DisplayOptions)
		check  func(*testing.T, DisplayOptions)
		tracks int
	}{
		{
			name:   "numColors below range",
			mutate: func(o *DisplayOptions) { o.NumColors = 0 },
			check: func(t *testing.T, o DisplayOptions) {
				if o.NumColors != MinPaletteColors {
					t.Errorf("NumColors = %d, want %d", o.NumColors, MinPaletteColors)
				}
			},
		},
		{
			name:   "numColors above range",
			mutate: func(o *DisplayOptions) { o.NumColors = 99 },
			check: func(t *testing.T, o DisplayOptions) {
				if o.NumColors != MaxPaletteColors {
					t.Errorf("NumColors = %d, want %d", o.NumColors, MaxPaletteColors)
				}
			},
		},
		{
			name:   "code size clamped both ways",
			mutate: func(o *DisplayOptions) { o.SpotifyCodeSize = 5 },
			check: func(t *testing.T, o DisplayOptions) {
				if o.SpotifyCodeSize != MinCodeSize {
					t.Errorf("SpotifyCodeSize = %d, want %d", o.SpotifyCodeSize, MinCodeSize)
				}
			},
		},
		{
			name:   "tracks bounded by album length",
			tracks: 4,
			mutate: func(o *DisplayOptions) { o.NumTracksToShow = 10 },
			check: func(t *testing.T, o DisplayOptions) {
				if o.NumTracksToShow != 4 {
					t.Errorf("NumTracksToShow = %d, want 4", o.NumTracksToShow)
				}
			},
		},
		{
			name:   "tracks capped at twenty for long albums",
			tracks: 35,
			mutate: func(o *DisplayOptions) { o.NumTracksToShow = 30 },
			check: func(t *testing.T, o DisplayOptions) {
				if o.NumTracksToShow != MaxTracksShown {
					t.Errorf("NumTracksToShow = %d, want %d", o.NumTracksToShow, MaxTracksShown)
				}
			},
		},
		{
			name:   "unknown enums reset to defaults",
			mutate: func(o *DisplayOptions) {
				o.ImageSize = "enormous"
				o.BackgroundStyle = "sparkly"
				o.FontStyle = "comic-sans"
			},
			check: func(t *testing.T, o DisplayOptions) {
				if o.ImageSize != ImageLarge {
					t.Errorf("ImageSize = %q", o.ImageSize)
				}
				if o.BackgroundStyle != BackgroundPlain {
					t.Errorf("BackgroundStyle = %q", o.BackgroundStyle)
				}
				if o.FontStyle != FontModern {
					t.Errorf("FontStyle = %q", o.FontStyle)
				}
			},
		},
		{
			name:   "animated survives clamping",
			mutate: func(o *DisplayOptions) { o.BackgroundStyle = BackgroundAnimated },
			check: func(t *testing.T, o DisplayOptions) {
				if o.BackgroundStyle != BackgroundAnimated {
					t.Errorf("BackgroundStyle = %q, want animated", o.BackgroundStyle)
				}
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			opts := DefaultDisplayOptions()
			c.mutate(&opts)
			opts.Clamp(c.tracks)
			c.check(t, opts)
		})
	}
}

func TestDefaultDisplayOptionsAreValid(t *testing.T) {
	opts := DefaultDisplayOptions()
	clamped := opts
	clamped.Clamp(0)

	if opts != clamped {
		t.Errorf("defaults changed under Clamp: %+v vs %+v", opts, clamped)
	}
}
