package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"autotag/internal/config"
	"autotag/internal/frames"
	"autotag/internal/library"
	"autotag/internal/logging"
	"autotag/internal/queue"
	"autotag/internal/resolver"
	"autotag/internal/tagger"
	"autotag/internal/tagging"
	"autotag/internal/vision"
)

// FrameSampler produces stills for one media file.
type FrameSampler interface {
	Sample(ctx context.Context, path string, mediaType tagging.MediaType, duration float64) (*frames.Set, error)
}

// Tier1Stage is the local inference tagger.
type Tier1Stage interface {
	Available() bool
	Analyze(ctx context.Context, framePaths []string) (tagger.Result, error)
}

// Tier2Stage is the optional remote vision analyzer.
type Tier2Stage interface {
	Enabled() bool
	Analyze(ctx context.Context, req vision.Request) (vision.Result, error)
}

// Tier3Stage resolves proposals against the vocabulary.
type Tier3Stage interface {
	Resolve(ctx context.Context, proposals []tagging.Proposal) (resolver.Resolution, error)
}

// DurationProber returns the duration of a media file in seconds.
type DurationProber func(ctx context.Context, path string) (float64, error)

// StageSet bundles the stage implementations the manager orchestrates.
// Tier2 and Prober are optional.
type StageSet struct {
	Sampler FrameSampler
	Tier1   Tier1Stage
	Tier2   Tier2Stage
	Tier3   Tier3Stage
	Prober  DurationProber
}

// Manager coordinates queue processing.
type Manager struct {
	cfg           *config.Config
	store         *queue.Store
	lib           *library.Store
	logger        *slog.Logger
	pollInterval  time.Duration
	retryInterval time.Duration
	tier2Conf     float64

	stages StageSet

	mu       sync.RWMutex
	running  bool
	paused   bool
	stopping context.CancelFunc
	done     chan struct{}
	lastErr  error
	lastItem *queue.Item
	current  *queue.Item

	wake chan struct{}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, lib *library.Store, logger *slog.Logger) *Manager {
	poll := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = time.Second
	}
	retry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = poll
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		lib:           lib,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		pollInterval:  poll,
		retryInterval: retry,
		tier2Conf:     cfg.Tier2.TagConfidence,
		wake:          make(chan struct{}, 1),
	}
}

// ConfigureStages registers the stage implementations. It must be called
// before Start.
func (m *Manager) ConfigureStages(set StageSet) {
	m.mu.Lock()
	m.stages = set
	m.mu.Unlock()
}

// notify wakes the worker if it is idle.
func (m *Manager) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
