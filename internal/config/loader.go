// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path is the watched configuration file, if any.
func (l *Loader) Path() string { return l.configPath }

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)
	cfg.FFmpeg.FFprobeBin = ResolveFFprobeBin(cfg.FFmpeg.FFprobeBin, cfg.FFmpeg.Bin)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	for i, root := range cfg.Storage.Roots {
		if abs, err := filepath.Abs(root); err == nil {
			cfg.Storage.Roots[i] = abs
		}
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with strict parsing. Unknown fields
// are an error.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	p := EnvPrefix
	cfg.DataDir = ParseString(p+"DATA_DIR", cfg.DataDir)

	cfg.Server.Listen = ParseString(p+"LISTEN", cfg.Server.Listen)
	cfg.Server.ReadTimeout = ParseDuration(p+"READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.ShutdownTimeout = ParseDuration(p+"SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RateLimitRPS = ParseInt(p+"RATE_LIMIT_RPS", cfg.Server.RateLimitRPS)
	cfg.Server.SubmitPerMinute = ParseInt(p+"SUBMIT_PER_MINUTE", cfg.Server.SubmitPerMinute)

	cfg.Storage.Roots = ParseList(p+"STORAGE_ROOTS", cfg.Storage.Roots)

	cfg.FFmpeg.Bin = ParseString(p+"FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = ParseString(p+"FFPROBE_BIN", cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.Timeout = ParseDuration(p+"FFMPEG_TIMEOUT", cfg.FFmpeg.Timeout)
	cfg.FFmpeg.KillGrace = ParseDuration(p+"FFMPEG_KILL_GRACE", cfg.FFmpeg.KillGrace)
	cfg.FFmpeg.StallTimeout = ParseDuration(p+"FFMPEG_STALL_TIMEOUT", cfg.FFmpeg.StallTimeout)

	cfg.Jobs.Workers = ParseInt(p+"JOBS_WORKERS", cfg.Jobs.Workers)
	cfg.Jobs.QueueSize = ParseInt(p+"JOBS_QUEUE_SIZE", cfg.Jobs.QueueSize)
	cfg.Jobs.SubmitRate = ParseFloat(p+"JOBS_SUBMIT_RATE", cfg.Jobs.SubmitRate)
	cfg.Jobs.Backend = ParseString(p+"JOBS_BACKEND", cfg.Jobs.Backend)
	cfg.Jobs.Redis.Addr = ParseString(p+"REDIS_ADDR", cfg.Jobs.Redis.Addr)
	cfg.Jobs.Redis.Password = ParseString(p+"REDIS_PASSWORD", cfg.Jobs.Redis.Password)
	cfg.Jobs.Redis.DB = ParseInt(p+"REDIS_DB", cfg.Jobs.Redis.DB)

	cfg.Library.InspectTTL = ParseDuration(p+"INSPECT_TTL", cfg.Library.InspectTTL)

	cfg.Log.Level = ParseString(p+"LOG_LEVEL", cfg.Log.Level)

	cfg.Telemetry.Enabled = ParseBool(p+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(p+"OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(p+"OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SampleRate = ParseFloat(p+"OTEL_SAMPLE_RATE", cfg.Telemetry.SampleRate)
}

// Dump renders cfg as YAML with secrets redacted.
func Dump(cfg AppConfig) ([]byte, error) {
	if cfg.Jobs.Redis.Password != "" {
		cfg.Jobs.Redis.Password = "***redacted***"
	}
	return yaml.Marshal(cfg)
}

// ResolveFFprobeBin returns an effective ffprobe binary path.
//
// Resolution order:
// 1) Explicit ffprobeBin
// 2) Derive from ffmpegBin (.../ffmpeg -> .../ffprobe) if the derived binary exists
// 3) "ffprobe" from PATH
func ResolveFFprobeBin(ffprobeBin, ffmpegBin string) string {
	return resolveFFprobeBinWithStat(ffprobeBin, ffmpegBin, os.Stat)
}

func resolveFFprobeBinWithStat(ffprobeBin, ffmpegBin string, stat func(string) (os.FileInfo, error)) string {
	if ffprobeBin = strings.TrimSpace(ffprobeBin); ffprobeBin != "" {
		return ffprobeBin
	}
	ffmpegBin = strings.TrimSpace(ffmpegBin)
	if strings.ContainsRune(ffmpegBin, filepath.Separator) && filepath.Base(ffmpegBin) == "ffmpeg" {
		candidate := filepath.Join(filepath.Dir(ffmpegBin), "ffprobe")
		if fi, err := stat(candidate); err == nil && !fi.IsDir() {
			return candidate
		}
	}
	return "ffprobe"
}
