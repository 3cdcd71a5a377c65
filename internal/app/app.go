package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"autotag/internal/config"
	"autotag/internal/frames"
	"autotag/internal/inference"
	"autotag/internal/library"
	"autotag/internal/logging"
	"autotag/internal/media/ffprobe"
	"autotag/internal/models"
	"autotag/internal/queue"
	"autotag/internal/resolver"
	"autotag/internal/review"
	"autotag/internal/tagger"
	"autotag/internal/vision"
	"autotag/internal/workflow"
)

// App holds every long-lived component. Tier 1 models are not loaded until
// InitTier1, so commands that only touch the queue stay cheap.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *queue.Store
	Library  *library.Store
	Sampler  *frames.Sampler
	Assets   *models.Assets
	Runtime  *inference.Runtime
	Tagger   *tagger.Tagger
	Vision   *vision.Analyzer
	Resolver *resolver.Resolver
	Workflow *workflow.Manager
	Reviews  *review.Service
}

// Open builds the component graph around the configured database.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	lib := library.New(store.DB())

	assets := models.NewAssets(cfg)
	runtime := inference.NewRuntime(cfg.Tier1.RuntimeLibrary, cfg.Tier1.IntraOpThreads)
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Library:  lib,
		Sampler:  frames.NewSampler(cfg, logger),
		Assets:   assets,
		Runtime:  runtime,
		Tagger:   tagger.New(cfg, assets, runtime, logger),
		Vision:   vision.New(cfg, logger),
		Resolver: resolver.New(cfg, lib, logger),
	}
	a.Workflow = workflow.NewManager(cfg, store, lib, logger)
	a.Workflow.ConfigureStages(workflow.StageSet{
		Sampler: a.Sampler,
		Tier1:   a.Tagger,
		Tier2:   a.Vision,
		Tier3:   a.Resolver,
		Prober:  durationProber(cfg.Frames.FFprobeBinary),
	})
	a.Reviews = review.NewService(store, lib, a.Resolver, logger)
	return a, nil
}

// InitTier1 loads the local models. The error is also reported through the
// tier1 stage health.
func (a *App) InitTier1() error {
	if err := a.Tagger.Init(); err != nil {
		logging.WarnWithContext(a.Logger, "tier 1 unavailable", "tier1_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check models_dir and onnxruntime_library, then run autotag deps"),
			logging.String(logging.FieldImpact, "the worker cannot start until tier 1 loads"),
		)
		return err
	}
	return nil
}

// Capabilities reports which tiers can run.
type Capabilities struct {
	Tier1 bool `json:"tier1"`
	Tier2 bool `json:"tier2"`
}

// Capabilities returns the current tier availability.
func (a *App) Capabilities() Capabilities {
	return Capabilities{Tier1: a.Tagger.Available(), Tier2: a.Vision.Enabled()}
}

// Close stops the worker and releases native and database resources.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Workflow != nil {
		a.Workflow.Stop()
		a.Workflow.Wait()
	}
	var errs []error
	if a.Runtime != nil {
		if err := a.Runtime.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close inference runtime: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func durationProber(binary string) workflow.DurationProber {
	return func(ctx context.Context, path string) (float64, error) {
		result, err := ffprobe.Inspect(ctx, binary, path)
		if err != nil {
			return 0, err
		}
		return result.DurationSeconds(), nil
	}
}
