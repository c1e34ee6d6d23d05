package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/registry"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/logger"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/observability"
)

const (
	sourceName = "linkedin_ads"
	sinkName   = "singer"
)

// runOptions are the flags shared by sync and schedule. Non-empty values
// override the configuration file.
type runOptions struct {
	configFile  string
	statePath   string
	outputPath  string
	metricsAddr string
	logLevel    string
	trace       bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.statePath, "state", "", "state location (path, s3://bucket/key or gs://bucket/key)")
	f.StringVarP(&o.outputPath, "output", "o", "", "write messages to this file instead of stdout")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	f.StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.BoolVar(&o.trace, "trace", false, "export trace spans to stderr")
}

func (o *runOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.statePath != "" {
		cfg.State.URI = o.statePath
	}
	if o.outputPath != "" {
		cfg.Output.Path = o.outputPath
	}
	if o.metricsAddr != "" {
		cfg.Observability.EnableMetrics = true
		cfg.Observability.MetricsAddr = o.metricsAddr
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}
	if o.trace {
		cfg.Observability.EnableTracing = true
	}
	return cfg, nil
}

func newSyncCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync of the selected streams",
		Long: `Run one sync of the selected streams, resuming from the saved state.

Example:
  linkedin-ads sync --config linkedin-ads.yaml --state state.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			return runSync(ctx, cfg)
		},
	}
	opts.bind(cmd)
	return cmd
}

func newScheduleCmd(opts *runOptions) *cobra.Command {
	var spec string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run a sync on a cron schedule until interrupted",
		Long: `Run a sync on a cron schedule until interrupted. Runs do not overlap;
a tick that fires while a sync is still running is skipped.

Example:
  linkedin-ads schedule --config linkedin-ads.yaml --cron "0 */6 * * *"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			return schedule(ctx, cfg, spec)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&spec, "cron", "@daily", "cron expression (standard five fields or a descriptor such as @hourly)")
	return cmd
}

// setup initialises logging, tracing and the metrics server. The returned
// function flushes and stops them.
func setup(ctx context.Context, cfg *config.Config) (func(), error) {
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return nil, err
	}
	log := logger.Get().With(zap.String("component", "cli"))

	if err := observability.Initialize(ctx, observability.TracingConfigFromConfig(cfg.Observability, version)); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	var server *observability.Server
	if cfg.Observability.EnableMetrics {
		s, err := observability.NewServer(cfg.Observability.MetricsAddr, log)
		if err != nil {
			_ = observability.Shutdown(ctx)
			return nil, err
		}
		s.Start()
		server = s
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if server != nil {
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}
		if err := observability.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
		_ = logger.Sync()
	}, nil
}

// runSync performs one sync under a fresh run ID.
func runSync(ctx context.Context, cfg *config.Config) error {
	ctx = logger.WithRunID(ctx, uuid.NewString())
	log := logger.WithContext(ctx).With(zap.String("component", "cli"))

	sink, err := registry.CreateSink(sinkName, cfg)
	if err != nil {
		return err
	}
	src, err := registry.CreateSource(ctx, sourceName, cfg, sink)
	if err != nil {
		_ = sink.Close(ctx)
		return err
	}

	start := time.Now()
	log.Info("sync started", zap.Strings("streams", cfg.SelectedStreams()))
	syncErr := src.Sync(ctx)

	if err := src.Close(ctx); err != nil && syncErr == nil {
		syncErr = err
	}
	if err := sink.Close(ctx); err != nil && syncErr == nil {
		syncErr = err
	}

	if syncErr != nil {
		log.Error("sync failed", zap.Duration("duration", time.Since(start)), zap.Error(syncErr))
		return syncErr
	}
	log.Info("sync completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// schedule runs runSync on every tick of spec until ctx is done. Failed
// runs are logged and the schedule continues.
func schedule(ctx context.Context, cfg *config.Config, spec string) error {
	log := logger.Get().With(zap.String("component", "scheduler"))
	cronLog := cronLogger{log.Sugar()}

	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(spec, func() {
		_ = runSync(ctx, cfg)
	}); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	c.Start()
	log.Info("scheduler started", zap.String("cron", spec))

	<-ctx.Done()
	log.Info("stopping scheduler, waiting for the running sync")
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
