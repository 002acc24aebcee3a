package api

import (
	"errors"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/reelforge/internal/delivery"
	"github.com/ManuGH/reelforge/internal/library"
	xglog "github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
)

type metadataResponse struct {
	Name            string           `json:"name"`
	Metadata        *ffmpeg.Metadata `json:"metadata"`
	InspectionError string           `json:"inspectionError,omitempty"`
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	assets, err := s.deps.Locator.List()
	if err != nil {
		logger := xglog.WithContext(r.Context(), s.deps.Logger)
		logger.Error().Err(err).Msg("list assets failed")
		writeProblem(w, r, http.StatusInternalServerError, "about:blank", CodeInternal, "", nil)
		return
	}
	if assets == nil {
		assets = []library.Asset{}
	}
	writeJSON(w, r, http.StatusOK, assets)
}

func (s *Server) handleStreamVideo(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, delivery.Options{})
}

func (s *Server) handleDownloadVideo(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, delivery.Options{Attachment: true})
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, opts delivery.Options) {
	asset, ok := s.findAsset(w, r)
	if !ok {
		return
	}
	opts.Filename = asset.Name
	s.serveFile(w, r, asset.AbsPath, opts)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path string, opts delivery.Options) {
	if err := delivery.Serve(w, r, path, opts); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, delivery.ErrNotRegular) {
			writeProblem(w, r, http.StatusNotFound, "videos/not_found", CodeAssetNotFound, "asset not found", nil)
			return
		}
		logger := xglog.WithContext(r.Context(), s.deps.Logger)
		logger.Error().Err(err).Str(xglog.FieldPath, path).Msg("delivery failed")
		writeProblem(w, r, http.StatusInternalServerError, "about:blank", CodeInternal, "", nil)
	}
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	asset, err := s.deps.Locator.Delete(chi.URLParam(r, "name"))
	if err != nil {
		s.writeAssetError(w, r, err)
		return
	}
	if s.deps.Inspector != nil {
		s.deps.Inspector.Forget(r.Context(), asset.AbsPath)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVideoMetadata(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.findAsset(w, r)
	if !ok {
		return
	}
	resp := metadataResponse{Name: asset.Name}
	md, err := s.deps.Inspector.Inspect(r.Context(), asset.AbsPath)
	var failed *library.InspectionFailed
	switch {
	case err == nil:
		resp.Metadata = &md
	case errors.As(err, &failed):
		resp.InspectionError = failed.Err.Error()
	default:
		resp.InspectionError = err.Error()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	at := library.DefaultThumbnailOffset
	if raw := r.URL.Query().Get("at"); raw != "" {
		sec, err := strconv.ParseFloat(raw, 64)
		if err != nil || sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
			writeProblem(w, r, http.StatusBadRequest, "videos/invalid_offset", CodeInvalidInput, "at must be a non-negative number of seconds", nil)
			return
		}
		at = time.Duration(sec * float64(time.Second))
	}

	asset, ok := s.findAsset(w, r)
	if !ok {
		return
	}
	thumb, err := s.deps.Inspector.GenerateThumbnail(r.Context(), asset.AbsPath, at)
	switch {
	case err == nil:
	case errors.Is(err, library.ErrThumbnailOutOfRange):
		writeProblem(w, r, http.StatusBadRequest, "videos/offset_out_of_range", CodeOutOfRange, err.Error(), nil)
		return
	case errors.Is(err, library.ErrAssetNotFound):
		writeProblem(w, r, http.StatusNotFound, "videos/not_found", CodeAssetNotFound, "asset not found", nil)
		return
	default:
		logger := xglog.WithContext(r.Context(), s.deps.Logger)
		logger.Warn().Err(err).Str(xglog.FieldAsset, asset.Name).Msg("thumbnail failed")
		writeProblem(w, r, http.StatusBadGateway, "videos/thumbnail_failed", CodeThumbnailFailed, "thumbnail extraction failed", nil)
		return
	}
	s.serveFile(w, r, thumb, delivery.Options{})
}

// findAsset resolves the {name} URL parameter and writes the problem response on failure.
func (s *Server) findAsset(w http.ResponseWriter, r *http.Request) (library.Asset, bool) {
	asset, err := s.deps.Locator.Find(chi.URLParam(r, "name"))
	if err != nil {
		s.writeAssetError(w, r, err)
		return library.Asset{}, false
	}
	return asset, true
}

func (s *Server) writeAssetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, library.ErrInvalidName):
		writeProblem(w, r, http.StatusBadRequest, "videos/invalid_name", CodeInvalidName, "invalid asset name", nil)
	case errors.Is(err, library.ErrAssetNotFound):
		writeProblem(w, r, http.StatusNotFound, "videos/not_found", CodeAssetNotFound, "asset not found", nil)
	default:
		logger := xglog.WithContext(r.Context(), s.deps.Logger)
		logger.Error().Err(err).Msg("asset operation failed")
		writeProblem(w, r, http.StatusInternalServerError, "about:blank", CodeInternal, "", nil)
	}
}
