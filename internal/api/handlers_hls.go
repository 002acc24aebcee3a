package api

import (
	"context"
	"errors"
	"net/http"
	"path"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/reelforge/internal/delivery"
	"github.com/ManuGH/reelforge/internal/hls"
	"github.com/ManuGH/reelforge/internal/jobs"
	"github.com/ManuGH/reelforge/internal/library"
)

func (s *Server) handleSubmitRendition(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.findAsset(w, r)
	if !ok {
		return
	}
	source := asset.AbsPath
	work := func(ctx context.Context, report func(string)) (string, error) {
		report("building rendition ladder")
		master, err := s.deps.Renditioner.BuildLadder(ctx, source)
		if err != nil {
			return "", err
		}
		// relative to the asset's root
		return filepath.ToSlash(filepath.Join(filepath.Base(filepath.Dir(master)), filepath.Base(master))), nil
	}
	job, err := s.deps.Tracker.Submit(r.Context(), jobs.KindRendition, asset.Name, work)
	if err != nil {
		s.writeSubmitError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, submitJobResponse{JobID: job.ID})
}

func (s *Server) handleRenditionFile(w http.ResponseWriter, r *http.Request) {
	rel := hls.MasterName
	if variant := chi.URLParam(r, "variant"); variant != "" {
		rel = path.Join(variant, chi.URLParam(r, "file"))
	}
	p, err := s.deps.Locator.RenditionFile(chi.URLParam(r, "name"), rel)
	if err != nil {
		if errors.Is(err, library.ErrAssetNotFound) {
			writeProblem(w, r, http.StatusNotFound, "hls/not_found", CodeRenditionMissing, "rendition not found", nil)
			return
		}
		s.writeAssetError(w, r, err)
		return
	}
	// a rebuilt ladder reuses playlist and segment names; clients revalidate by ETag
	s.serveFile(w, r, p, delivery.Options{CacheControl: delivery.RevalidateCacheControl})
}
