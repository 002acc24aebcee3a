// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestLocator_FindHonorsPriority(t *testing.T) {
	primary, secondary := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(primary, "both.mp4"), "primary")
	writeFile(t, filepath.Join(secondary, "both.mp4"), "secondary!")
	writeFile(t, filepath.Join(secondary, "only.mp4"), "x")

	l := NewLocator([]string{primary, secondary}, zerolog.Nop())

	a, err := l.Find("both.mp4")
	require.NoError(t, err)
	assert.Equal(t, primary, a.Root)
	assert.Equal(t, int64(len("primary")), a.Size)
	assert.Equal(t, "both.mp4", a.Path)

	a, err = l.Find("only.mp4")
	require.NoError(t, err)
	assert.Equal(t, secondary, a.Root)

	l.SetRoots([]string{secondary, primary})
	a, err = l.Find("both.mp4")
	require.NoError(t, err)
	assert.Equal(t, secondary, a.Root, "reordered roots change precedence")
}

func TestLocator_FindErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "nested", "deep.mp4"), "x")
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.mp4"), 0o755))

	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.mp4"), "x")
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.mp4"), filepath.Join(root, "escape.mp4")))

	l := NewLocator([]string{root, filepath.Join(root, "missing-root")}, zerolog.Nop())

	_, err := l.Find("missing.mp4")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = l.Find("deep.mp4")
	assert.ErrorIs(t, err, ErrAssetNotFound, "search is not recursive")

	_, err = l.Find("dir.mp4")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = l.Find("escape.mp4")
	assert.ErrorIs(t, err, ErrAssetNotFound, "symlinks out of the root are not served")

	_, err = l.Find("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestLocator_List(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(a, "z.mp4"), "1")
	writeFile(t, filepath.Join(a, "shared.webm"), "22")
	writeFile(t, filepath.Join(b, "shared.webm"), "333")
	writeFile(t, filepath.Join(b, "a.mov"), "4444")
	writeFile(t, filepath.Join(b, "notes.txt"), "skip")
	writeFile(t, filepath.Join(b, ".demo.mp4.partial"), "skip")
	writeFile(t, filepath.Join(b, "a_hls", "master.m3u8"), "skip")

	l := NewLocator([]string{a, b, filepath.Join(b, "gone")}, zerolog.Nop())
	assets, err := l.List()
	require.NoError(t, err)

	var names []string
	for _, x := range assets {
		names = append(names, x.Name)
	}
	assert.Equal(t, []string{"a.mov", "shared.webm", "z.mp4"}, names)
	assert.Equal(t, int64(2), assets[1].Size, "first root wins on duplicates")
	assert.False(t, assets[0].CreatedAt.IsZero())
}

func TestLocator_DeleteRemovesDerived(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.mp4"), "x")
	writeFile(t, filepath.Join(root, "clip_hls", "master.m3u8"), "#EXTM3U")
	writeFile(t, filepath.Join(root, "thumbs", "clip_1000.jpg"), "jpg")
	writeFile(t, filepath.Join(root, "thumbs", "other_1000.jpg"), "jpg")

	l := NewLocator([]string{root}, zerolog.Nop())
	_, err := l.Delete("clip.mp4")
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(root, "clip.mp4"))
	assert.NoDirExists(t, filepath.Join(root, "clip_hls"))
	assert.NoFileExists(t, filepath.Join(root, "thumbs", "clip_1000.jpg"))
	assert.FileExists(t, filepath.Join(root, "thumbs", "other_1000.jpg"))

	_, err = l.Delete("clip.mp4")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestLocator_RenditionFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.mp4"), "x")
	writeFile(t, filepath.Join(root, "clip_hls", "720p", "seg_00000.ts"), "ts")

	l := NewLocator([]string{root}, zerolog.Nop())

	p, err := l.RenditionFile("clip.mp4", "720p/seg_00000.ts")
	require.NoError(t, err)
	assert.Equal(t, "seg_00000.ts", filepath.Base(p))

	_, err = l.RenditionFile("clip.mp4", "720p/seg_00001.ts")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = l.RenditionFile("clip.mp4", "../clip.mp4")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = l.RenditionFile("other.mp4", "master.m3u8")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestIsThumbOf(t *testing.T) {
	assert.True(t, isThumbOf("clip.mp4", "clip_1000.jpg"))
	assert.False(t, isThumbOf("clip.mp4", "clip_x_1000.jpg"))
	assert.False(t, isThumbOf("clip.mp4", "clip_.jpg"))
	assert.False(t, isThumbOf("clip.mp4", "other_1000.jpg"))
}
