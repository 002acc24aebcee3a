// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "./data",
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    50,
			SubmitPerMinute: 30,
		},
		FFmpeg: FFmpegConfig{
			Bin:          "ffmpeg",
			Timeout:      10 * time.Minute,
			KillGrace:    5 * time.Second,
			StallTimeout: 2 * time.Minute,
			ProbeTimeout: 15 * time.Second,
		},
		Jobs: JobsConfig{
			Workers:     1,
			QueueSize:   16,
			SubmitBurst: 1,
			Backend:     BackendMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "reelforge:",
			},
		},
		Library: LibraryConfig{
			InspectTTL: 10 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			Exporter:    "grpc",
			Endpoint:    "localhost:4317",
			SampleRate:  1.0,
			Environment: "production",
		},
	}
}

// Job store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)
