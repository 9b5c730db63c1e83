// Package catalog wraps the upstream music catalog API behind the
// module's own record types. All lookups go through a TTL cache so
// repeat page views of the same song do not hammer the upstream.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"sonolise/internal/core"
	"sonolise/pkg/textnorm"
)

const (
	// searchLimit caps track search results per query.
	searchLimit = 10
	// metaFetchLimit bounds concurrent album metadata lookups when a
	// search result spans many albums.
	metaFetchLimit = 4

	apiBaseURL = "https://api.spotify.com/v1"
)

// spotifyAPI is the slice of the upstream client the catalog uses.
type spotifyAPI interface {
	GetTrack(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullTrack, error)
	GetAlbum(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullAlbum, error)
	Search(ctx context.Context, query string, t spotify.SearchType, opts ...spotify.RequestOption) (*spotify.SearchResult, error)
}

// albumMeta is the slice of the raw album payload the typed upstream
// client does not surface. The label feeds the frame's label row and
// total_tracks is part of the track wire shape.
type albumMeta struct {
	Label       string `json:"label"`
	TotalTracks int    `json:"total_tracks"`
}

// albumMetaAPI fetches albumMeta straight from the album endpoint.
type albumMetaAPI interface {
	AlbumMeta(ctx context.Context, id string) (albumMeta, error)
}

// httpAlbumMeta decodes albumMeta from the raw JSON album resource,
// reusing the authenticated oauth2 transport.
type httpAlbumMeta struct {
	client  *http.Client
	baseURL string
}

func (h *httpAlbumMeta) AlbumMeta(ctx context.Context, id string) (albumMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/albums/"+id, nil)
	if err != nil {
		return albumMeta{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return albumMeta{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return albumMeta{}, fmt.Errorf("album meta %s: unexpected status %d", id, resp.StatusCode)
	}
	var meta albumMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return albumMeta{}, fmt.Errorf("album meta %s: %w", id, err)
	}
	return meta, nil
}

// Client is the catalog gateway. It authenticates with the app-only
// client-credentials flow; the oauth2 transport refreshes the token
// transparently, so a Client never re-authenticates by hand.
type Client struct {
	config *core.CatalogConfig
	logger *zap.Logger
	client spotifyAPI
	meta   albumMetaAPI

	tracks   *expirable.LRU[string, *core.Track]
	albums   *expirable.LRU[string, *core.Album]
	searches *expirable.LRU[string, []core.Track]
	metas    *expirable.LRU[string, albumMeta]
}

func NewClient(config *core.CatalogConfig, logger *zap.Logger) *Client {
	return &Client{
		config:   config,
		logger:   logger,
		tracks:   expirable.NewLRU[string, *core.Track](config.CacheSize, nil, config.CacheTTL),
		albums:   expirable.NewLRU[string, *core.Album](config.CacheSize, nil, config.CacheTTL),
		searches: expirable.NewLRU[string, []core.Track](config.CacheSize, nil, config.CacheTTL),
		metas:    expirable.NewLRU[string, albumMeta](config.CacheSize, nil, config.CacheTTL),
	}
}

// Authenticate exchanges the client credentials for an app token and
// builds the API client around the self-refreshing transport.
func (c *Client) Authenticate(ctx context.Context) error {
	auth := &clientcredentials.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	// Fetch one token eagerly so bad credentials fail at startup
	// instead of on the first page view.
	if _, err := auth.Token(ctx); err != nil {
		return fmt.Errorf("catalog authentication failed: %w", err)
	}

	httpClient := auth.Client(ctx)
	c.client = spotify.New(httpClient)
	c.meta = &httpAlbumMeta{client: httpClient, baseURL: apiBaseURL}
	c.logger.Info("Authenticated with catalog API")
	return nil
}

// GetTrack fetches one track record by id.
func (c *Client) GetTrack(ctx context.Context, id string) (*core.Track, error) {
	if t, ok := c.tracks.Get(id); ok {
		return t, nil
	}

	full, err := c.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		c.logger.Warn("Track lookup failed", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: track %s: %v", core.ErrDataUnavailable, id, err)
	}

	t := mapFullTrack(full)
	t.Album.TotalTracks = c.albumMeta(ctx, t.Album.ID).TotalTracks

	c.tracks.Add(id, t)
	return t, nil
}

// GetAlbum fetches the full album record by id, including its track
// listing.
func (c *Client) GetAlbum(ctx context.Context, id string) (*core.Album, error) {
	if a, ok := c.albums.Get(id); ok {
		return a, nil
	}

	full, err := c.client.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		c.logger.Warn("Album lookup failed", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: album %s: %v", core.ErrDataUnavailable, id, err)
	}

	a := mapFullAlbum(full)
	a.Label = c.albumMeta(ctx, id).Label

	c.albums.Add(id, a)
	return a, nil
}

// SearchTracks runs a normalized track search against the catalog. An
// empty query after normalization returns no results without an
// upstream call.
func (c *Client) SearchTracks(ctx context.Context, query string) ([]core.Track, error) {
	normalized := textnorm.Query(query)
	if normalized == "" {
		return nil, nil
	}
	if tracks, ok := c.searches.Get(normalized); ok {
		return tracks, nil
	}

	result, err := c.client.Search(ctx, normalized, spotify.SearchTypeTrack, spotify.Limit(searchLimit))
	if err != nil {
		c.logger.Warn("Search failed", zap.String("query", normalized), zap.Error(err))
		return nil, fmt.Errorf("%w: search %q: %v", core.ErrDataUnavailable, normalized, err)
	}

	var tracks []core.Track
	if result.Tracks != nil {
		tracks = make([]core.Track, 0, len(result.Tracks.Tracks))
		for i := range result.Tracks.Tracks {
			tracks = append(tracks, *mapFullTrack(&result.Tracks.Tracks[i]))
		}
	}
	c.fillAlbumMeta(ctx, tracks)

	c.searches.Add(normalized, tracks)
	return tracks, nil
}

// albumMeta returns the raw-payload fields for an album, fetching and
// caching on miss. Failures degrade to zero values: a frame without a
// label row beats a failed page view.
func (c *Client) albumMeta(ctx context.Context, id string) albumMeta {
	if id == "" {
		return albumMeta{}
	}
	if m, ok := c.metas.Get(id); ok {
		return m
	}

	m, err := c.meta.AlbumMeta(ctx, id)
	if err != nil {
		c.logger.Warn("Album metadata lookup failed", zap.String("id", id), zap.Error(err))
		return albumMeta{}
	}
	c.metas.Add(id, m)
	return m
}

// fillAlbumMeta completes total_tracks for a batch of search results,
// fetching each distinct album once with bounded concurrency.
func (c *Client) fillAlbumMeta(ctx context.Context, tracks []core.Track) {
	seen := make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metaFetchLimit)

	for _, t := range tracks {
		id := t.Album.ID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		g.Go(func() error {
			c.albumMeta(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	for i := range tracks {
		if m, ok := c.metas.Get(tracks[i].Album.ID); ok {
			tracks[i].Album.TotalTracks = m.TotalTracks
		}
	}
}

func mapFullTrack(t *spotify.FullTrack) *core.Track {
	return &core.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Explicit:   t.Explicit,
		Popularity: int(t.Popularity),
		Artists:    mapArtists(t.Artists),
		Album:      mapAlbumRef(&t.Album),
		DurationMS: int(t.Duration),
		URI:        string(t.URI),
		PreviewURL: t.PreviewURL,
	}
}

func mapArtists(artists []spotify.SimpleArtist) []core.Artist {
	out := make([]core.Artist, 0, len(artists))
	for _, a := range artists {
		out = append(out, core.Artist{Name: a.Name})
	}
	return out
}

func mapAlbumRef(a *spotify.SimpleAlbum) core.AlbumRef {
	return core.AlbumRef{
		ID:          string(a.ID),
		Name:        a.Name,
		Images:      mapImages(a.Images),
		ReleaseDate: a.ReleaseDate,
	}
}

func mapImages(images []spotify.Image) []core.AlbumImage {
	out := make([]core.AlbumImage, 0, len(images))
	for _, img := range images {
		out = append(out, core.AlbumImage{
			URL:    img.URL,
			Width:  int(img.Width),
			Height: int(img.Height),
		})
	}
	return out
}

func mapFullAlbum(a *spotify.FullAlbum) *core.Album {
	items := make([]core.AlbumTrack, 0, len(a.Tracks.Tracks))
	for _, t := range a.Tracks.Tracks {
		items = append(items, core.AlbumTrack{
			Name:       t.Name,
			DurationMS: int(t.Duration),
		})
	}
	return &core.Album{
		Name:   a.Name,
		Tracks: core.AlbumTracks{Items: items},
	}
}
