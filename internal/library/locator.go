// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/reelforge/internal/fsutil"
	xglog "github.com/ManuGH/reelforge/internal/log"
)

// Locator resolves asset names against an ordered list of storage roots.
// The first root wins. Lookups are not recursive.
type Locator struct {
	mu     sync.RWMutex
	roots  []string
	logger zerolog.Logger
}

// NewLocator returns a Locator searching roots in order.
func NewLocator(roots []string, logger zerolog.Logger) *Locator {
	l := &Locator{logger: logger}
	l.SetRoots(roots)
	return l
}

// SetRoots replaces the search order.
func (l *Locator) SetRoots(roots []string) {
	clean := make([]string, 0, len(roots))
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		r = filepath.Clean(r)
		if seen[r] {
			continue
		}
		seen[r] = true
		clean = append(clean, r)
	}
	l.mu.Lock()
	l.roots = clean
	l.mu.Unlock()
}

// Roots returns a copy of the search order.
func (l *Locator) Roots() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.roots...)
}

// Find returns the first asset called name.
func (l *Locator) Find(name string) (Asset, error) {
	name, err := ValidateName(name)
	if err != nil {
		return Asset{}, err
	}
	for _, root := range l.Roots() {
		asset, err := l.lookup(root, name)
		if err == nil {
			return asset, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "locator.skip").
				Str(xglog.FieldRoot, root).
				Str(xglog.FieldAsset, name).
				Msg("asset candidate rejected")
		}
	}
	return Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
}

func (l *Locator) lookup(root, name string) (Asset, error) {
	path, err := fsutil.ConfineRelPath(root, name)
	if err != nil {
		return Asset{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Asset{}, err
	}
	if !info.Mode().IsRegular() {
		return Asset{}, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}
	return newAsset(root, name, path, info), nil
}

func newAsset(root, name, path string, info fs.FileInfo) Asset {
	return Asset{
		Name:      name,
		Path:      name,
		Root:      root,
		AbsPath:   path,
		Size:      info.Size(),
		CreatedAt: info.ModTime().UTC(),
	}
}

// List returns the media files of every root, sorted by name. A name present
// in several roots is reported once, from the highest-priority root.
func (l *Locator) List() ([]Asset, error) {
	seen := make(map[string]bool)
	var assets []Asset
	for _, root := range l.Roots() {
		entries, err := os.ReadDir(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read root %s: %w", root, err)
		}
		for _, e := range entries {
			name := e.Name()
			if seen[name] || strings.HasPrefix(name, ".") || !MediaExtensions[strings.ToLower(filepath.Ext(name))] {
				continue
			}
			asset, err := l.lookup(root, name)
			if err != nil {
				continue
			}
			seen[name] = true
			assets = append(assets, asset)
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

// Delete removes the asset and its derived files (rendition ladder, thumbnails).
func (l *Locator) Delete(name string) (Asset, error) {
	asset, err := l.Find(name)
	if err != nil {
		return Asset{}, err
	}
	if err := os.Remove(asset.AbsPath); err != nil {
		return Asset{}, fmt.Errorf("delete %s: %w", asset.Name, err)
	}
	derived := []string{filepath.Join(asset.Root, RenditionDir(asset.Name))}
	thumbs, _ := filepath.Glob(filepath.Join(asset.Root, thumbDir, thumbPrefix(asset.Name)+"*.jpg"))
	for _, t := range thumbs {
		if isThumbOf(asset.Name, filepath.Base(t)) {
			derived = append(derived, t)
		}
	}
	for _, p := range derived {
		if err := os.RemoveAll(p); err != nil {
			l.logger.Warn().Err(err).Str(xglog.FieldPath, p).Msg("failed to remove derived file")
		}
	}
	l.logger.Info().
		Str(xglog.FieldEvent, "asset.deleted").
		Str(xglog.FieldAsset, asset.Name).
		Str(xglog.FieldRoot, asset.Root).
		Msg("asset deleted")
	return asset, nil
}

// RenditionFile resolves rel inside the ladder directory of the named asset.
func (l *Locator) RenditionFile(name, rel string) (string, error) {
	asset, err := l.Find(name)
	if err != nil {
		return "", err
	}
	path, err := fsutil.ConfineRelPath(filepath.Join(asset.Root, RenditionDir(asset.Name)), rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s/%s", ErrAssetNotFound, name, rel)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s/%s", ErrAssetNotFound, name, rel)
	}
	return path, nil
}

// isThumbOf matches <base>_<ms>.jpg exactly, so "clip_x.mp4" keeps its own thumbnails
// when "clip.mp4" is deleted.
func isThumbOf(assetName, file string) bool {
	ms := strings.TrimSuffix(strings.TrimPrefix(file, thumbPrefix(assetName)), ".jpg")
	if ms == "" || ms == file {
		return false
	}
	for _, r := range ms {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
