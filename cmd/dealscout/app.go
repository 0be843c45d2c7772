package main

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/config"
	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/enrich"
	"github.com/fyrsmithlabs/dealscout/internal/feedback"
	"github.com/fyrsmithlabs/dealscout/internal/learning"
	"github.com/fyrsmithlabs/dealscout/internal/logging"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
	"github.com/fyrsmithlabs/dealscout/internal/telemetry"
)

// app holds every wired component of a running process.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	telemetry  *telemetry.Telemetry
	registry   *persona.Registry
	store      *memory.Store
	learner    *learning.Learner
	dispatcher *dispatch.Dispatcher

	closers []func(context.Context) error
}

// appOptions tune wiring for the command being run.
type appOptions struct {
	// stdio routes logs to stderr because stdout carries a protocol.
	stdio bool
	// quiet drops logs below warn for one-shot commands.
	quiet bool
}

// loadConfig reads the config file named by --config, or the default one.
func loadConfig() (*config.Config, error) {
	return config.LoadWithFile(configPath)
}

// newApp wires config, logging, telemetry, persona registry, memory store,
// learner, collaborators and dispatcher, in that order.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{cfg: cfg}

	logger, err := a.newLogger(opts, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	zl := logger.Underlying()

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version), telemetry.WithLogger(zl))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.telemetry = tel
	a.closers = append(a.closers, tel.Shutdown)
	if lp := tel.LoggerProvider(); lp != nil {
		if l, err := a.newLogger(opts, lp); err == nil {
			a.logger = l
			zl = l.Underlying()
		}
	}

	recipes, err := config.ExpandHome(cfg.Recipes.File)
	if err != nil {
		return nil, err
	}
	a.registry, err = persona.NewRegistryWithPack(recipes)
	if err != nil {
		return nil, fmt.Errorf("failed to load persona recipes: %w", err)
	}

	persister, err := newPersister(ctx, cfg.Memory)
	if err != nil {
		return nil, err
	}
	if c, ok := persister.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}

	a.store = memory.NewStore(
		memory.WithPersonas(a.registry),
		memory.WithPersister(persister),
		memory.WithDebounce(cfg.Memory.Debounce.Duration()),
		memory.WithLogger(zl.Named("memory")),
		memory.WithMetrics(memory.NewMetrics()),
	)
	if err := a.store.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load persona memory: %w", err)
	}
	// Flush runs before the persister closes.
	a.closers = append([]func(context.Context) error{a.store.Flush}, a.closers...)

	a.learner = learning.NewLearner(a.registry, a.store,
		learning.WithLogger(zl.Named("learning")),
		learning.WithMaxExamples(cfg.Memory.MaxExamples),
		learning.WithRewardHistoryCap(cfg.Memory.RewardHistoryCap),
	)

	deps := dispatch.Deps{
		Registry: a.registry,
		Store:    a.store,
		Learner:  a.learner,
	}
	if cfg.Enrichment.BaseURL != "" {
		client, err := enrich.NewClient(cfg.Enrichment, enrich.WithLogger(zl.Named("enrich")))
		if err != nil {
			return nil, fmt.Errorf("failed to create enrichment client: %w", err)
		}
		deps.Enricher = client
		deps.Searcher = client
	}
	if cfg.Feedback.NATSURL != "" {
		sink, err := feedback.Connect(ctx, cfg.Feedback.NATSURL, cfg.Feedback.Subject, feedback.WithLogger(zl.Named("feedback")))
		if err != nil {
			return nil, err
		}
		deps.Feedback = sink
		a.closers = append(a.closers, func(context.Context) error { return sink.Close() })
	} else {
		deps.Feedback = feedback.NewLogSink(zl)
	}

	mode, err := dispatch.ParseQueueMode(cfg.Dispatch.QueueMode)
	if err != nil {
		return nil, err
	}
	a.dispatcher, err = dispatch.New(deps,
		dispatch.WithLogger(zl.Named("dispatch")),
		dispatch.WithQueueMode(mode),
		dispatch.WithMaxQueue(cfg.Dispatch.MaxQueue),
		dispatch.WithResultRetention(cfg.Dispatch.ResultRetention),
		dispatch.WithThresholds(cfg.AutoProcess.LikeThreshold, cfg.AutoProcess.DislikeThreshold),
		dispatch.WithMetrics(dispatch.NewMetrics()),
		dispatch.WithTracer(tel.Tracer("github.com/fyrsmithlabs/dealscout/internal/dispatch")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	zl.Info("dealscout initialized",
		zap.Strings("personas", a.registry.IDs()),
		zap.String("memory_backend", cfg.Memory.Backend),
		zap.Bool("enrichment", deps.Enricher != nil),
		zap.Bool("nats_feedback", cfg.Feedback.NATSURL != ""),
		zap.Bool("telemetry", tel.IsEnabled()))
	return a, nil
}

// newLogger builds the process logger. lp may be nil; when set, records
// are also bridged to OpenTelemetry.
func (a *app) newLogger(opts appOptions, lp log.LoggerProvider) (*logging.Logger, error) {
	lc, err := logging.FromSettings(a.cfg.Logging.Level, a.cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	if opts.stdio {
		lc.Output.Stdout = false
		lc.Output.Stderr = true
	}
	if opts.quiet {
		lc.Level = zap.WarnLevel
		lc.Output.Stdout = false
		lc.Output.Stderr = true
	}
	lc.Output.OTEL = lp != nil
	return logging.NewLogger(lc, lp)
}

// newPersister picks the memory backend named in config.
func newPersister(ctx context.Context, cfg config.MemoryConfig) (memory.Persister, error) {
	path, err := config.ExpandHome(cfg.Path)
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendSQLite:
		p, err := memory.NewSQLitePersister(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite memory store: %w", err)
		}
		return p, nil
	case config.BackendFile, "":
		return memory.NewFilePersister(path), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}

// close flushes memory and releases resources in order. All closers run.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logger != nil {
		// Sync on a terminal stderr returns EINVAL on Linux.
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
