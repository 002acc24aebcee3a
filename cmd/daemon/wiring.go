package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ManuGH/reelforge/internal/api"
	"github.com/ManuGH/reelforge/internal/api/middleware"
	"github.com/ManuGH/reelforge/internal/config"
	"github.com/ManuGH/reelforge/internal/daemon"
	"github.com/ManuGH/reelforge/internal/health"
	"github.com/ManuGH/reelforge/internal/hls"
	"github.com/ManuGH/reelforge/internal/jobs"
	"github.com/ManuGH/reelforge/internal/library"
	xglog "github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
	"github.com/ManuGH/reelforge/internal/synth"
	"github.com/ManuGH/reelforge/internal/telemetry"
)

const serviceName = "reelforge"

type closer struct {
	name string
	fn   daemon.ShutdownHook
}

// components is the wired graph of a running daemon.
type components struct {
	handler http.Handler
	locator *library.Locator
	closers []closer // registration order; the manager runs them LIFO
}

func (rt *components) reloaders() []daemon.ReloadFunc {
	return []daemon.ReloadFunc{
		func(cfg config.AppConfig) {
			if !xglog.SetLevel(cfg.Log.Level) {
				logger := xglog.WithComponent("daemon")
				logger.Warn().Str("level", cfg.Log.Level).Msg("ignoring invalid log level")
			}
		},
		func(cfg config.AppConfig) {
			rt.locator.SetRoots(cfg.AssetRoots())
		},
	}
}

func (rt *components) onClose(name string, fn daemon.ShutdownHook) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// closeAll runs the closers registered so far, newest first. Used when
// wiring fails half way.
func (rt *components) closeAll() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].fn(context.Background())
	}
}

func buildComponents(ctx context.Context, cfg config.AppConfig, version string) (_ *components, err error) {
	rt := &components{}
	defer func() {
		if err != nil {
			rt.closeAll()
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.onClose("telemetry", tp.Shutdown)

	store, err := openJobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.onClose("job_store", func(context.Context) error { return store.Close() })

	mdStore, err := library.OpenMetadataStore(cfg.LibraryDB())
	if err != nil {
		return nil, fmt.Errorf("metadata store: %w", err)
	}
	rt.onClose("metadata_store", func(context.Context) error { return mdStore.Close() })

	ffCfg := ffmpeg.DefaultConfig()
	ffCfg.Binary = cfg.FFmpeg.Bin
	ffCfg.Timeout = cfg.FFmpeg.Timeout
	ffCfg.KillGrace = cfg.FFmpeg.KillGrace
	ffCfg.StallTimeout = cfg.FFmpeg.StallTimeout
	executor := ffmpeg.NewExecutor(ffCfg, xglog.WithComponent("ffmpeg"))
	prober := ffmpeg.NewProber(cfg.FFmpeg.FFprobeBin, cfg.FFmpeg.ProbeTimeout)

	rt.locator = library.NewLocator(cfg.AssetRoots(), xglog.WithComponent("locator"))
	inspector := library.NewInspector(prober, executor, mdStore, cfg.Library.InspectTTL, xglog.WithComponent("inspector"))
	rt.onClose("inspector", func(context.Context) error { inspector.Close(); return nil })

	synthesizer := synth.New(executor, synth.NewLayout(cfg.DataDir), xglog.WithComponent("synth"))
	renditioner := hls.NewRenditioner(executor, prober, xglog.WithComponent("hls"))

	tracker := jobs.NewTracker(store, jobs.Config{
		Workers:     cfg.Jobs.Workers,
		QueueSize:   cfg.Jobs.QueueSize,
		SubmitRate:  cfg.Jobs.SubmitRate,
		SubmitBurst: cfg.Jobs.SubmitBurst,
	}, xglog.WithComponent("jobs"))
	if _, err := tracker.RecoverInterrupted(ctx); err != nil {
		return nil, fmt.Errorf("recover jobs: %w", err)
	}
	// Registered last so in-flight jobs are cancelled and recorded before the stores close.
	rt.onClose("tracker", tracker.Close)

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin))
	hm.RegisterChecker(health.NewBinaryChecker("ffprobe", cfg.FFmpeg.FFprobeBin))
	hm.RegisterChecker(health.NewDirChecker("storage_roots", rt.locator.Roots))
	hm.RegisterChecker(health.NewPingChecker("library_db", mdStore.Ping))

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = serviceName
	}
	srv := api.NewServer(api.Deps{
		Tracker:     tracker,
		Synth:       synthesizer,
		Renditioner: renditioner,
		Locator:     rt.locator,
		Inspector:   inspector,
		Health:      hm,
		Logger:      xglog.WithComponent("api"),
	}, api.Options{
		Stack: middleware.StackConfig{
			EnableMetrics:  true,
			TracingService: tracing,
			EnableLogging:  true,
			RateLimitRPS:   cfg.Server.RateLimitRPS,
		},
		SubmitPerMinute: cfg.Server.SubmitPerMinute,
	})
	rt.handler = srv.Handler()
	return rt, nil
}

func openJobStore(ctx context.Context, cfg config.AppConfig) (jobs.Store, error) {
	switch cfg.Jobs.Backend {
	case config.BackendBadger:
		s, err := jobs.OpenBadgerStore(cfg.JobStoreDir())
		if err != nil {
			return nil, fmt.Errorf("open badger job store: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		s, err := jobs.NewRedisStore(ctx, jobs.RedisOptions{
			Addr:     cfg.Jobs.Redis.Addr,
			Password: cfg.Jobs.Redis.Password,
			DB:       cfg.Jobs.Redis.DB,
			Prefix:   cfg.Jobs.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis job store: %w", err)
		}
		return s, nil
	case config.BackendMemory, "":
		return jobs.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown jobs backend %q", cfg.Jobs.Backend)
	}
}
