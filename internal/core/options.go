package core

// ImageSize selects how wide the album cover renders inside the frame.
type ImageSize string

const (
	ImageSmall  ImageSize = "small"
	ImageMedium ImageSize = "medium"
	ImageLarge  ImageSize = "large"
)

// BackgroundStyle selects the fill behind the frame content.
type BackgroundStyle string

const (
	BackgroundPlain    BackgroundStyle = "plain"
	BackgroundGradient BackgroundStyle = "gradient"
	BackgroundBlur     BackgroundStyle = "blur"
	// BackgroundAnimated is accepted from configuration but has no
	// rendering implementation; it falls back to plain.
	BackgroundAnimated BackgroundStyle = "animated"
)

// FontStyle selects the typeface family for frame text.
type FontStyle string

const (
	FontModern  FontStyle = "modern"
	FontClassic FontStyle = "classic"
	FontPlayful FontStyle = "playful"
)

const (
	MinPaletteColors = 2
	MaxPaletteColors = 20
	MinTracksShown   = 1
	MaxTracksShown   = 20
	MinCodeSize      = 100
	MaxCodeSize      = 1000
)

// DisplayOptions is the mutable rendering configuration for one frame.
// It is created with defaults on page mount, mutated only through the
// options-editing surface, and discarded on navigation away.
type DisplayOptions struct {
	ShowPalette       bool            `json:"showPalette"`
	NumColors         int             `json:"numColors"`
	ShowReleaseDate   bool            `json:"showReleaseDate"`
	ShowAlbumLength   bool            `json:"showAlbumLength"`
	ShowLabel         bool            `json:"showLabel"`
	ShowTracks        bool            `json:"showTracks"`
	NumTracksToShow   int             `json:"numTracksToShow"`
	ImageSize         ImageSize       `json:"imageSize"`
	ShowArtists       bool            `json:"showArtists"`
	ShowPopularity    bool            `json:"showPopularity"`
	BackgroundStyle   BackgroundStyle `json:"backgroundStyle"`
	FontStyle         FontStyle       `json:"fontStyle"`
	ShowSpotifyCode   bool            `json:"showSpotifyCode"`
	SpotifyCodeSize   int             `json:"spotifyCodeSize"`
	ShowExplicitLabel bool            `json:"showExplicitLabel"`
}

// DefaultDisplayOptions mirrors the initial state of the frame page.
func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{
		ShowPalette:       true,
		NumColors:         5,
		ShowReleaseDate:   true,
		ShowAlbumLength:   true,
		ShowLabel:         true,
		ShowTracks:        true,
		NumTracksToShow:   6,
		ImageSize:         ImageLarge,
		ShowArtists:       true,
		ShowPopularity:    false,
		BackgroundStyle:   BackgroundPlain,
		FontStyle:         FontModern,
		ShowSpotifyCode:   true,
		SpotifyCodeSize:   300,
		ShowExplicitLabel: true,
	}
}

// Clamp forces every bounded field into its valid range and resets
// unknown enum values to their defaults. Out-of-range numeric input is
// clamped to the nearest bound, never rejected. albumTrackCount bounds
// NumTracksToShow; pass 0 when the album is not loaded yet.
func (o *DisplayOptions) Clamp(albumTrackCount int) {
	o.NumColors = clampInt(o.NumColors, MinPaletteColors, MaxPaletteColors)
	o.SpotifyCodeSize = clampInt(o.SpotifyCodeSize, MinCodeSize, MaxCodeSize)

	maxTracks := MaxTracksShown
	if albumTrackCount > 0 && albumTrackCount < maxTracks {
		maxTracks = albumTrackCount
	}
	o.NumTracksToShow = clampInt(o.NumTracksToShow, MinTracksShown, maxTracks)

	switch o.ImageSize {
	case ImageSmall, ImageMedium, ImageLarge:
	default:
		o.ImageSize = ImageLarge
	}
	switch o.BackgroundStyle {
	case BackgroundPlain, BackgroundGradient, BackgroundBlur, BackgroundAnimated:
	default:
		o.BackgroundStyle = BackgroundPlain
	}
	switch o.FontStyle {
	case FontModern, FontClassic, FontPlayful:
	default:
		o.FontStyle = FontModern
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
