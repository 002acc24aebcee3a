// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/reelforge/internal/validate"
)

// Validate checks the merged configuration.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Path("data_dir", cfg.DataDir)
	for _, root := range cfg.Storage.Roots {
		v.Path("storage.roots", root)
	}

	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.Duration("server.shutdown_timeout", cfg.Server.ShutdownTimeout, time.Second, 10*time.Minute)
	v.NonNegative("server.rate_limit_rps", cfg.Server.RateLimitRPS)
	v.NonNegative("server.submit_per_minute", cfg.Server.SubmitPerMinute)

	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.Duration("ffmpeg.timeout", cfg.FFmpeg.Timeout, time.Second, 24*time.Hour)
	v.Duration("ffmpeg.kill_grace", cfg.FFmpeg.KillGrace, 100*time.Millisecond, time.Minute)
	if cfg.FFmpeg.StallTimeout != 0 {
		v.Duration("ffmpeg.stall_timeout", cfg.FFmpeg.StallTimeout, time.Second, 24*time.Hour)
	}

	v.Range("jobs.workers", cfg.Jobs.Workers, 1, 64)
	v.NonNegative("jobs.queue_size", cfg.Jobs.QueueSize)
	if cfg.Jobs.SubmitRate < 0 {
		v.AddError("jobs.submit_rate", "must not be negative", cfg.Jobs.SubmitRate)
	}
	v.OneOf("jobs.backend", cfg.Jobs.Backend, []string{BackendMemory, BackendBadger, BackendRedis})
	if cfg.Jobs.Backend == BackendRedis {
		v.NotEmpty("jobs.redis.addr", cfg.Jobs.Redis.Addr)
		v.NonNegative("jobs.redis.db", cfg.Jobs.Redis.DB)
	}

	v.OneOf("log.level", cfg.Log.Level, []string{"trace", "debug", "info", "warn", "error"})

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.Endpoint("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.Fraction("telemetry.sample_rate", cfg.Telemetry.SampleRate)
	}

	return v.Err()
}
