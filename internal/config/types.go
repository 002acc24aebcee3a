// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads, validates and hot-reloads the daemon configuration.
package config

import (
	"path/filepath"
	"time"
)

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	DataDir   string          `yaml:"data_dir"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Library   LibraryConfig   `yaml:"library"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RateLimitRPS is the per-client request budget for the whole API; 0 disables it.
	RateLimitRPS int `yaml:"rate_limit_rps"`
	// SubmitPerMinute is the per-client budget for POST /jobs; 0 disables it.
	SubmitPerMinute int `yaml:"submit_per_minute"`
}

// StorageConfig lists extra asset roots searched after the output directory.
type StorageConfig struct {
	Roots []string `yaml:"roots"`
}

// FFmpegConfig configures the encoder toolkit.
type FFmpegConfig struct {
	Bin          string        `yaml:"bin"`
	FFprobeBin   string        `yaml:"ffprobe_bin"`
	Timeout      time.Duration `yaml:"timeout"`
	KillGrace    time.Duration `yaml:"kill_grace"`
	StallTimeout time.Duration `yaml:"stall_timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// JobsConfig configures the job tracker and its store.
type JobsConfig struct {
	Workers     int     `yaml:"workers"`
	QueueSize   int     `yaml:"queue_size"`
	SubmitRate  float64 `yaml:"submit_rate"`
	SubmitBurst int     `yaml:"submit_burst"`
	// Backend is memory, badger or redis.
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig is used when Jobs.Backend is redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LibraryConfig configures metadata inspection.
type LibraryConfig struct {
	InspectTTL time.Duration `yaml:"inspect_ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
	Environment string  `yaml:"environment"`
}

// Paths derived from DataDir.

func (c AppConfig) TmpDir() string      { return filepath.Join(c.DataDir, "tmp") }
func (c AppConfig) OutputDir() string   { return filepath.Join(c.DataDir, "output", "videos") }
func (c AppConfig) LibraryDB() string   { return filepath.Join(c.DataDir, "library.db") }
func (c AppConfig) JobStoreDir() string { return filepath.Join(c.DataDir, "jobs") }
func (c AppConfig) LockFile() string    { return filepath.Join(c.DataDir, ".reelforge.lock") }

// AssetRoots is the output directory followed by the configured extra roots.
func (c AppConfig) AssetRoots() []string {
	return append([]string{c.OutputDir()}, c.Storage.Roots...)
}
