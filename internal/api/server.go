// Package api exposes jobs and the media library over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/reelforge/internal/api/middleware"
	"github.com/ManuGH/reelforge/internal/health"
	"github.com/ManuGH/reelforge/internal/jobs"
	"github.com/ManuGH/reelforge/internal/library"
	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
	"github.com/ManuGH/reelforge/internal/synth"
)

// Synthesizer renders text into a video file and returns its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, report synth.ProgressFunc) (string, error)
}

// Renditioner builds an HLS ladder next to source and returns the master path.
type Renditioner interface {
	BuildLadder(ctx context.Context, source string) (string, error)
}

// Inspector describes assets and extracts thumbnails.
type Inspector interface {
	Inspect(ctx context.Context, path string) (ffmpeg.Metadata, error)
	GenerateThumbnail(ctx context.Context, path string, at time.Duration) (string, error)
	Forget(ctx context.Context, path string)
}

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Tracker     *jobs.Tracker
	Synth       Synthesizer
	Renditioner Renditioner
	Locator     *library.Locator
	Inspector   Inspector
	Health      *health.Manager
	Logger      zerolog.Logger
}

// Options tune the router.
type Options struct {
	Stack           middleware.StackConfig
	SubmitPerMinute int // 0 disables the per-client submit limit
	MaxTextRunes    int
}

// DefaultMaxTextRunes bounds synthesis input.
const DefaultMaxTextRunes = 20000

// Server serves the HTTP API.
type Server struct {
	deps Deps
	opts Options
}

// NewServer wires deps into a Server.
func NewServer(deps Deps, opts Options) *Server {
	if opts.MaxTextRunes <= 0 {
		opts.MaxTextRunes = DefaultMaxTextRunes
	}
	return &Server{deps: deps, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(s.opts.Stack)

	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.ServeHealth)
		r.Get("/readyz", s.deps.Health.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			if s.opts.SubmitPerMinute > 0 {
				r.With(middleware.SubmitRateLimit(s.opts.SubmitPerMinute)).Post("/", s.handleSubmitJob)
			} else {
				r.Post("/", s.handleSubmitJob)
			}
			r.Get("/{id}", s.handleGetJob)
			r.Delete("/{id}", s.handleCancelJob)
		})

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", s.handleListVideos)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleStreamVideo)
				r.Head("/", s.handleStreamVideo)
				r.Delete("/", s.handleDeleteVideo)
				r.Get("/download", s.handleDownloadVideo)
				r.Get("/metadata", s.handleVideoMetadata)
				r.Get("/thumbnail", s.handleThumbnail)
				r.Post("/hls", s.handleSubmitRendition)
				r.Get("/hls/master.m3u8", s.handleRenditionFile)
				r.Head("/hls/master.m3u8", s.handleRenditionFile)
				r.Get("/hls/{variant}/{file}", s.handleRenditionFile)
				r.Head("/hls/{variant}/{file}", s.handleRenditionFile)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "about:blank", "NOT_FOUND", "", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "about:blank", "METHOD_NOT_ALLOWED", "", nil)
	})
	return r
}
