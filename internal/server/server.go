// Package server is the HTTP surface: the search page, the frame page
// with its live display options, the catalog proxy API, and the export
// endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sonolise/internal/core"
	"sonolise/internal/export"
	"sonolise/internal/frame"
	"sonolise/internal/palette"
	"sonolise/internal/scancode"
	"sonolise/internal/share"
)

// sessionCapacity bounds concurrently live frame sessions.
const sessionCapacity = 256

// Catalog is the slice of the catalog client the server needs.
type Catalog interface {
	GetTrack(ctx context.Context, id string) (*core.Track, error)
	GetAlbum(ctx context.Context, id string) (*core.Album, error)
	SearchTracks(ctx context.Context, query string) ([]core.Track, error)
}

type Server struct {
	config     *core.Config
	logger     *zap.Logger
	catalog    Catalog
	sessions   *frame.Manager
	extractor  *palette.Extractor
	capture    *export.CaptureEngine
	compositor *export.Compositor
	dispatcher *share.Dispatcher
	metrics    *Metrics
	pages      *pages
	registry   *prometheus.Registry
	server     *http.Server
}

func NewServer(config *core.Config, catalog Catalog, logger *zap.Logger) (*Server, error) {
	renderer, err := frame.NewRenderer(config.Frame.ContentWidth, logger.Named("frame"))
	if err != nil {
		return nil, fmt.Errorf("frame renderer: %w", err)
	}

	pages, err := newPages()
	if err != nil {
		return nil, err
	}

	fetcher := palette.NewHTTPFetcher()
	extractor := palette.NewExtractor(fetcher, config.Frame.PaletteCache, logger.Named("palette"))
	codes := scancode.NewBuilder(config.Scancode.Host)
	capture := export.NewCaptureEngine(renderer, fetcher, codes, config.Frame.CaptureScale, logger.Named("export"))
	compositor := export.NewCompositor()
	sessions := frame.NewManager(sessionCapacity, config.Frame.SessionTTL)

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry, func() float64 {
		return float64(sessions.Len())
	})

	dispatcher := share.NewDispatcher(
		capture,
		compositor,
		nil,
		share.FileDownloadSink{Dir: config.Server.ExportDir},
		[]share.Clipboard{share.SystemClipboard{}},
		logger.Named("share"),
	)

	s := &Server{
		config:     config,
		logger:     logger,
		catalog:    catalog,
		sessions:   sessions,
		extractor:  extractor,
		capture:    capture,
		compositor: compositor,
		dispatcher: dispatcher,
		metrics:    metrics,
		pages:      pages,
		registry:   registry,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      s.routes(),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "sonolise"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "service": "sonolise"})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/track/{id}", s.handleTrack)
	mux.HandleFunc("GET /api/album/{id}", s.handleAlbum)

	mux.HandleFunc("GET /frame/{id}", s.handleFramePage)
	mux.HandleFunc("POST /frame/{id}/options", s.handleOptions)
	mux.HandleFunc("GET /frame/{id}/image.png", s.handleFramePNG)
	mux.HandleFunc("GET /frame/{id}/export", s.handleExport)
	mux.HandleFunc("POST /frame/{id}/share", s.handleShare)

	return alice.New(s.recoverPanic, s.requestLogger).Then(mux)
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// session returns the live session for a song, creating one from the
// catalog on the first page view.
func (s *Server) session(ctx context.Context, songID string) (*frame.Session, error) {
	if sess, ok := s.sessions.Get(songID); ok {
		return sess, nil
	}

	track, err := s.catalog.GetTrack(ctx, songID)
	if err != nil {
		return nil, err
	}
	album, err := s.catalog.GetAlbum(ctx, track.Album.ID)
	if err != nil {
		return nil, err
	}

	opts := frame.NewOptionsStore(s.config.Frame.DebounceDelay, len(album.Tracks.Items))
	sess := frame.NewSession(track, album, opts, s.extractor, s.logger.Named("session"))
	// Background, not the request context: the extraction outlives this
	// request and serves every later render of the session.
	sess.RefreshPalette(context.Background())
	s.sessions.Put(songID, sess)
	return sess, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	var results []*core.Track
	if query != "" {
		s.metrics.SearchesTotal.Inc()
		tracks, err := s.catalog.SearchTracks(r.Context(), query)
		if err != nil {
			s.metrics.RecordError("catalog", "search")
			s.logger.Warn("Search failed", zap.String("query", query), zap.Error(err))
		}
		for i := range tracks {
			results = append(results, &tracks[i])
		}
	}

	s.metrics.PageViewsTotal.WithLabelValues("index").Inc()
	if err := s.pages.render(w, "index.html", map[string]any{
		"Query":   query,
		"Results": results,
	}); err != nil {
		s.logger.Error("Template render failed", zap.Error(err))
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	s.metrics.SearchesTotal.Inc()

	tracks, err := s.catalog.SearchTracks(r.Context(), query)
	if err != nil {
		s.metrics.RecordCatalog("search", "error")
		writeError(w, http.StatusBadGateway, "search unavailable")
		return
	}
	s.metrics.RecordCatalog("search", "ok")
	if tracks == nil {
		tracks = []core.Track{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	track, err := s.catalog.GetTrack(r.Context(), r.PathValue("id"))
	if err != nil {
		s.metrics.RecordCatalog("track", "error")
		writeError(w, catalogStatus(err), "track unavailable")
		return
	}
	s.metrics.RecordCatalog("track", "ok")
	writeJSON(w, http.StatusOK, track)
}

func (s *Server) handleAlbum(w http.ResponseWriter, r *http.Request) {
	album, err := s.catalog.GetAlbum(r.Context(), r.PathValue("id"))
	if err != nil {
		s.metrics.RecordCatalog("album", "error")
		writeError(w, catalogStatus(err), "album unavailable")
		return
	}
	s.metrics.RecordCatalog("album", "ok")
	writeJSON(w, http.StatusOK, album)
}

func (s *Server) handleFramePage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), r.PathValue("id"))
	if err != nil {
		s.metrics.RecordError("frame", "session")
		writeError(w, catalogStatus(err), "song unavailable")
		return
	}

	s.metrics.PageViewsTotal.WithLabelValues("frame").Inc()
	if err := s.pages.render(w, "frame.html", map[string]any{
		"Track":   sess.Track,
		"Album":   sess.Album,
		"Options": sess.Options.Current(),
	}); err != nil {
		s.logger.Error("Template render failed", zap.Error(err))
	}
}

// handleOptions accepts a partial options edit, JSON or form encoded.
// The store debounces the commit; the response does not wait for it.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, catalogStatus(err), "song unavailable")
		return
	}

	var patch frame.OptionsPatch
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "malformed options payload")
			return
		}
		sess.Options.Update(patch)
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed options payload")
		return
	}
	sess.Options.Update(formPatch(r))
	http.Redirect(w, r, "/frame/"+r.PathValue("id"), http.StatusSeeOther)
}

func (s *Server) handleFramePNG(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, catalogStatus(err), "song unavailable")
		return
	}

	start := time.Now()
	img, degraded, err := s.capture.Capture(r.Context(), sess)
	if err != nil {
		s.metrics.RecordRender("error", time.Since(start))
		writeError(w, http.StatusInternalServerError, "frame render failed")
		return
	}
	if degraded {
		s.metrics.RecordRender("degraded", time.Since(start))
	} else {
		s.metrics.RecordRender("ok", time.Since(start))
	}

	data, err := s.compositor.EncodePNG(img)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "frame render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("Frame image write failed", zap.Error(err))
	}
}

// handleExport streams the composited frame back as a download. The
// per-request dispatcher runs the normal fallback chain with the
// response stream as its download sink.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, catalogStatus(err), "song unavailable")
		return
	}

	target := share.Target(r.URL.Query().Get("target"))
	if target == "" {
		target = share.TargetDownload
	}

	d := share.NewDispatcher(s.capture, s.compositor, nil, &responseSink{w: w}, nil, s.logger.Named("share"))
	out := d.Dispatch(r.Context(), target, sess, "")
	if !out.OK {
		s.metrics.RecordExport(string(target), "error")
		writeError(w, http.StatusInternalServerError, out.Message)
		return
	}
	s.metrics.RecordExport(string(target), "ok")
}

// handleShare runs the server-side dispatcher: copy targets go through
// the clipboard chain, image targets land in the export directory.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	songID := r.PathValue("id")
	sess, err := s.session(r.Context(), songID)
	if err != nil {
		writeError(w, catalogStatus(err), "song unavailable")
		return
	}

	target := share.Target(r.URL.Query().Get("target"))
	pageURL := s.config.Server.BaseURL + "/frame/" + songID

	out := s.dispatcher.Dispatch(r.Context(), target, sess, pageURL)
	status := "ok"
	if !out.OK {
		status = "error"
	}
	s.metrics.RecordExport(string(out.Target), status)
	writeJSON(w, http.StatusOK, out)
}

// responseSink streams an export file as an HTTP attachment.
type responseSink struct {
	w http.ResponseWriter
}

func (s *responseSink) Download(_ context.Context, f share.ShareFile) error {
	s.w.Header().Set("Content-Type", "image/png")
	s.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	_, err := s.w.Write(f.PNG)
	return err
}

// formPatch maps the frame page's form fields onto an options patch.
// Absent fields stay nil and leave the current value alone. Each toggle
// is a checkbox followed by a hidden false input, so the first submitted
// value carries the checkbox state and an unchecked box still posts.
func formPatch(r *http.Request) frame.OptionsPatch {
	intField := func(name string) *int {
		if v := r.FormValue(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return &n
			}
		}
		return nil
	}
	boolField := func(name string) *bool {
		if v := r.FormValue(name); v != "" {
			b := v == "true"
			return &b
		}
		return nil
	}

	patch := frame.OptionsPatch{
		ShowPalette:       boolField("showPalette"),
		NumColors:         intField("numColors"),
		ShowReleaseDate:   boolField("showReleaseDate"),
		ShowAlbumLength:   boolField("showAlbumLength"),
		ShowLabel:         boolField("showLabel"),
		ShowTracks:        boolField("showTracks"),
		NumTracksToShow:   intField("numTracksToShow"),
		ShowArtists:       boolField("showArtists"),
		ShowPopularity:    boolField("showPopularity"),
		ShowSpotifyCode:   boolField("showSpotifyCode"),
		SpotifyCodeSize:   intField("spotifyCodeSize"),
		ShowExplicitLabel: boolField("showExplicitLabel"),
	}
	if v := r.FormValue("imageSize"); v != "" {
		size := core.ImageSize(v)
		patch.ImageSize = &size
	}
	if v := r.FormValue("backgroundStyle"); v != "" {
		style := core.BackgroundStyle(v)
		patch.BackgroundStyle = &style
	}
	if v := r.FormValue("fontStyle"); v != "" {
		style := core.FontStyle(v)
		patch.FontStyle = &style
	}
	return patch
}

func catalogStatus(err error) int {
	if errors.Is(err, core.ErrDataUnavailable) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
