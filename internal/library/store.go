// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	xglog "github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
	"github.com/ManuGH/reelforge/internal/persistence/sqlite"
)

// MetadataStore persists probe results in SQLite so they survive restarts.
type MetadataStore struct {
	db *sql.DB
}

// OpenMetadataStore opens (or creates) the database at dbPath. The store
// is a cache: a database failing its integrity check is moved aside and
// recreated empty.
func OpenMetadataStore(dbPath string) (*MetadataStore, error) {
	if err := quarantineIfCorrupt(dbPath); err != nil {
		return nil, err
	}

	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &MetadataStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func quarantineIfCorrupt(dbPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	issues, err := sqlite.VerifyIntegrity(ctx, dbPath, false)
	if err != nil {
		return fmt.Errorf("verify %s: %w", dbPath, err)
	}
	if len(issues) == 0 {
		return nil
	}
	aside := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
	logger := xglog.WithComponent("library")
	logger.Warn().
		Str(xglog.FieldEvent, "metadata_store.quarantined").
		Str(xglog.FieldPath, aside).
		Strs("issues", issues).
		Msg("metadata cache failed integrity check, starting empty")
	if err := os.Rename(dbPath, aside); err != nil {
		return fmt.Errorf("quarantine %s: %w", dbPath, err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(dbPath + suffix)
	}
	return nil
}

// Close closes the database connection.
func (s *MetadataStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *MetadataStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MetadataStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_metadata (
		cache_key TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		duration_seconds REAL NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		bitrate INTEGER NOT NULL DEFAULT 0,
		format TEXT NOT NULL DEFAULT '',
		video_codec TEXT NOT NULL DEFAULT '',
		audio_codec TEXT NOT NULL DEFAULT '',
		probed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_media_metadata_path ON media_metadata(path);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the stored metadata for key.
func (s *MetadataStore) Get(ctx context.Context, key string) (ffmpeg.Metadata, bool, error) {
	query := `
	SELECT duration_seconds, width, height, bitrate, format, video_codec, audio_codec
	FROM media_metadata
	WHERE cache_key = ?
	`
	var md ffmpeg.Metadata
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&md.Duration, &md.Width, &md.Height, &md.Bitrate, &md.Format, &md.VideoCodec, &md.AudioCodec,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ffmpeg.Metadata{}, false, nil
	}
	if err != nil {
		return ffmpeg.Metadata{}, false, err
	}
	return md, true, nil
}

// Put stores md under key. Older entries for the same path are replaced.
func (s *MetadataStore) Put(ctx context.Context, key, path string, md ffmpeg.Metadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_metadata WHERE path = ? AND cache_key != ?`, path, key); err != nil {
		return err
	}
	query := `
	INSERT INTO media_metadata (cache_key, path, duration_seconds, width, height, bitrate, format, video_codec, audio_codec, probed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(cache_key) DO UPDATE SET
		duration_seconds = excluded.duration_seconds,
		width = excluded.width,
		height = excluded.height,
		bitrate = excluded.bitrate,
		format = excluded.format,
		video_codec = excluded.video_codec,
		audio_codec = excluded.audio_codec,
		probed_at = excluded.probed_at
	`
	if _, err := tx.ExecContext(ctx, query,
		key, path, md.Duration, md.Width, md.Height, md.Bitrate, md.Format, md.VideoCodec, md.AudioCodec,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePath drops every entry for path.
func (s *MetadataStore) DeletePath(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM media_metadata WHERE path = ?`, path)
	return err
}
