package tagger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"autotag/internal/config"
	"autotag/internal/inference"
	"autotag/internal/logging"
	"autotag/internal/models"
	"autotag/internal/services"
	"autotag/internal/stage"
	"autotag/internal/tagging"
)

// ModelLoader creates inference sessions. *inference.Runtime satisfies it.
type ModelLoader interface {
	Load(modelPath string) (inference.Runner, error)
}

// Tagger is the Tier 1 service. Scorers are built once by Init and reused
// for every item.
type Tagger struct {
	cfg    config.Tier1
	th     Thresholds
	assets *models.Assets
	loader ModelLoader
	logger *slog.Logger

	mu       sync.Mutex
	scorers  []Scorer
	initDone bool
	initErr  error
}

// New builds a Tagger that loads its models on Init.
func New(cfg *config.Config, assets *models.Assets, loader ModelLoader, logger *slog.Logger) *Tagger {
	return &Tagger{
		cfg:    cfg.Tier1,
		th:     ThresholdsFromConfig(cfg),
		assets: assets,
		loader: loader,
		logger: logging.NewComponentLogger(logger, "tier1"),
	}
}

// NewWithScorers builds an already-initialized Tagger around the given scorers.
func NewWithScorers(th Thresholds, logger *slog.Logger, scorers ...Scorer) *Tagger {
	t := &Tagger{th: th, logger: logging.NewComponentLogger(logger, "tier1"), scorers: scorers, initDone: true}
	if len(scorers) == 0 {
		t.initErr = services.Wrap(services.ErrUnavailable, "tier1", "init", "no scorers", nil)
	}
	return t
}

// Init loads every scorer whose model files are present. A missing file
// skips that scorer; a file that fails to load fails Init, as does ending
// up with no scorers at all. The outcome is cached.
func (t *Tagger) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initDone {
		return t.initErr
	}
	t.initDone = true
	t.scorers, t.initErr = t.build()
	if t.initErr == nil && len(t.scorers) == 0 {
		t.initErr = services.Wrap(services.ErrUnavailable, "tier1", "init", "no model files found in models directory", nil)
	}
	if t.initErr != nil {
		t.scorers = nil
		return t.initErr
	}
	sources := make([]string, len(t.scorers))
	for i, s := range t.scorers {
		sources[i] = string(s.Source())
	}
	t.logger.Info("tier1 ready", logging.Any("scorers", sources))
	return nil
}

func (t *Tagger) build() ([]Scorer, error) {
	if t.assets == nil || t.loader == nil {
		return nil, services.Wrap(services.ErrConfiguration, "tier1", "init", "model assets not configured", nil)
	}
	var scorers []Scorer

	load := func(name models.Name) (inference.Runner, bool, error) {
		path, ok := t.assets.PathFor(name)
		if !ok {
			t.logger.Info("tier1 scorer skipped", logging.String("model", string(name)), logging.String("path", path))
			return nil, false, nil
		}
		runner, err := t.loader.Load(path)
		if err != nil {
			return nil, false, services.Wrap(services.ErrConfiguration, "tier1", "load model", string(name), err)
		}
		return runner, true, nil
	}

	if runner, ok, err := load(models.NSFW); err != nil {
		return nil, err
	} else if ok {
		scorers = append(scorers, NewNSFWScorer(runner))
	}

	if _, labelsOK := t.assets.PathFor(models.TaggerLabels); labelsOK {
		runner, ok, err := load(models.Tagger)
		if err != nil {
			return nil, err
		}
		if ok {
			labels, err := t.assets.TagVocabulary()
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "tier1", "load labels", "", err)
			}
			scorers = append(scorers, NewDescriptiveScorer(runner, labels, t.cfg.TaggerThreshold))
		}
	} else {
		t.logger.Info("tier1 scorer skipped", logging.String("model", string(models.Tagger)), logging.String("reason", "label file missing"))
	}

	if runner, ok, err := load(models.Detector); err != nil {
		return nil, err
	} else if ok {
		scorers = append(scorers, NewDetectorScorer(runner, t.cfg.DetectorThreshold))
	}

	if _, promptsOK := t.assets.PathFor(models.ZeroShotPrompts); promptsOK {
		runner, ok, err := load(models.ZeroShot)
		if err != nil {
			return nil, err
		}
		if ok {
			bank, err := t.assets.PromptBank()
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "tier1", "load prompts", "", err)
			}
			scorers = append(scorers, NewZeroShotScorer(runner, bank, t.cfg.ZeroShotThreshold, t.cfg.ZeroShotTopK))
		}
	} else {
		t.logger.Info("tier1 scorer skipped", logging.String("model", string(models.ZeroShot)), logging.String("reason", "prompt bank missing"))
	}
	return scorers, nil
}

// Available reports whether Init succeeded.
func (t *Tagger) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initDone && t.initErr == nil && len(t.scorers) > 0
}

// Sources lists the loaded scorers.
func (t *Tagger) Sources() []tagging.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]tagging.Source, len(t.scorers))
	for i, s := range t.scorers {
		out[i] = s.Source()
	}
	return out
}

// Analyze scores every frame and aggregates the results. Frames that fail
// to decode are skipped; a scorer failure fails the call.
func (t *Tagger) Analyze(ctx context.Context, framePaths []string) (Result, error) {
	t.mu.Lock()
	scorers := t.scorers
	ready := t.initDone && t.initErr == nil
	t.mu.Unlock()
	if !ready || len(scorers) == 0 {
		return Result{}, services.Wrap(services.ErrUnavailable, "tier1", "analyze", "tagger not initialized", nil)
	}

	logger := logging.WithContext(ctx, t.logger)
	results := make([]FrameResult, 0, len(framePaths))
	for _, path := range framePaths {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		img, err := inference.LoadImage(path)
		if err != nil {
			logging.WarnWithContext(logger, "frame skipped", "tier1_frame_decode_failed",
				logging.String("frame", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "frame may be corrupt"),
				logging.String(logging.FieldImpact, "item scored on fewer frames"),
			)
			continue
		}
		var frame FrameResult
		for _, s := range scorers {
			out, err := s.Score(ctx, img)
			if err != nil {
				return Result{}, services.Wrap(services.ErrExternalTool, "tier1", string(s.Source()), "inference failed", err)
			}
			if out.NSFW != nil {
				frame.NSFW = out.NSFW
			}
			frame.Labels = append(frame.Labels, out.Labels...)
		}
		results = append(results, frame)
	}
	if len(results) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "tier1", "analyze", fmt.Sprintf("none of %d frames could be decoded", len(framePaths)), nil)
	}

	result := Aggregate(results, t.th)
	logger.Debug("tier1 aggregated",
		logging.Int("frames", result.Frames),
		logging.String("nsfw_category", string(result.NSFWCategory)),
		logging.Float64("nsfw_confidence", result.NSFWConfidence),
		logging.String("content_type", string(result.ContentType)),
		logging.Int("tags", len(result.Tags)),
	)
	return result, nil
}

// HealthCheck reports whether Tier 1 has usable scorers.
func (t *Tagger) HealthCheck(context.Context) stage.Health {
	t.mu.Lock()
	initDone, initErr, count := t.initDone, t.initErr, len(t.scorers)
	t.mu.Unlock()
	switch {
	case !initDone:
		return stage.Unhealthy("tier1", "not initialized")
	case initErr != nil:
		return stage.Unhealthy("tier1", initErr.Error())
	case count == 0:
		return stage.Unhealthy("tier1", "no scorers loaded")
	}
	return stage.Health{Name: "tier1", Ready: true, Detail: fmt.Sprintf("%d scorers loaded", count)}
}
