package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofrs/flock"

	"autotag/internal/api"
	"autotag/internal/config"
	"autotag/internal/deps"
	"autotag/internal/logging"
	"autotag/internal/preflight"
)

// ErrAlreadyRunning is returned when another process holds the run lock.
var ErrAlreadyRunning = errors.New("another autotag run loop is already active")

// visionCheck is the only preflight check that downgrades to a warning.
const visionCheck = "Vision API"

// RunOptions configures the foreground run loop.
type RunOptions struct {
	// Concurrency overrides workflow.concurrency when positive.
	Concurrency   int
	SkipPreflight bool
}

// Run processes the queue until ctx is cancelled or the process receives
// SIGINT or SIGTERM. When the API is enabled it is served for the same
// lifetime, and stays up even if the worker cannot start.
func Run(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger, opts RunOptions) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	if !opts.SkipPreflight {
		if err := gatePreflight(signalCtx, cfg, logger); err != nil {
			return err
		}
	}

	a, err := Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown incomplete", logging.Error(err))
		}
	}()

	logDependencySnapshot(logger, cfg)
	tier1Err := a.InitTier1()

	concurrency := cfg.Workflow.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	startErr := tier1Err
	if startErr == nil {
		startErr = a.Workflow.Start(signalCtx, concurrency)
	}

	var apiErr chan error
	if cfg.API.Enabled {
		srv, err := api.NewServer(api.Options{
			Bind:       cfg.API.Bind,
			Token:      cfg.API.Token,
			Workflow:   a.Workflow,
			Queue:      a.Store,
			Reviews:    a.Reviews,
			Logger:     logger,
			RunContext: signalCtx,
		})
		if err != nil {
			return fmt.Errorf("create api server: %w", err)
		}
		apiErr = make(chan error, 1)
		go func() {
			apiErr <- srv.Serve(signalCtx)
		}()
	}

	if startErr != nil {
		if apiErr == nil {
			return fmt.Errorf("start workflow: %w", startErr)
		}
		logging.WarnWithContext(logger, "worker not started", "workflow_start_failed",
			logging.Error(startErr),
			logging.String(logging.FieldErrorHint, "fix the reported problem, then POST /api/worker/start"),
			logging.String(logging.FieldImpact, "queue items are not processed; review endpoints remain available"),
		)
	}

	select {
	case <-signalCtx.Done():
	case err := <-apiErr:
		if err != nil {
			logger.Error("api server stopped", logging.Error(err))
		}
		return err
	}

	logger.Info("autotag shutting down", logging.String(logging.FieldEventType, "shutdown"))
	if apiErr != nil {
		return <-apiErr
	}
	return nil
}

// gatePreflight fails on any required check or missing required binary. A
// failing vision check only warns because items still complete with Tier 1
// output.
func gatePreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var blocking []string
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		if result.Name == visionCheck {
			logging.WarnWithContext(logger, "preflight check failed", "preflight_warning",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldImpact, "items complete without tier 2 enrichment"),
			)
			continue
		}
		blocking = append(blocking, result.Name+": "+result.Detail)
	}
	for _, name := range deps.MissingRequired(preflight.CheckSystemDeps(cfg)) {
		blocking = append(blocking, name+": not found")
	}
	if len(blocking) > 0 {
		return fmt.Errorf("preflight failed: %s", strings.Join(blocking, "; "))
	}
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.Frames.FFmpegBinary)),
		logging.String("ffmpeg_binary", cfg.Frames.FFmpegBinary),
		logging.Bool("ffprobe_available", binaryAvailable(cfg.Frames.FFprobeBinary)),
		logging.String("ffprobe_binary", cfg.Frames.FFprobeBinary),
		logging.String("onnxruntime_library", cfg.Tier1.RuntimeLibrary),
		logging.Bool("tier2_enabled", cfg.Tier2.Enabled),
		logging.Bool("tier2_key_present", strings.TrimSpace(cfg.Tier2.APIKey) != ""),
		logging.String("tier2_model", cfg.Tier2.Model),
		logging.Bool("api_enabled", cfg.API.Enabled),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
