package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"autotag/internal/frames"
	"autotag/internal/library"
	"autotag/internal/logging"
	"autotag/internal/metrics"
	"autotag/internal/queue"
	"autotag/internal/services"
	"autotag/internal/tagger"
	"autotag/internal/tagging"
	"autotag/internal/vision"
)

const (
	stageFrames  = "frames"
	stageTier1   = "tier1"
	stageTier2   = "tier2"
	stageTier3   = "tier3"
	stagePersist = "persist"
)

// stageError records which stage produced a failure.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

func failAt(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

// processItem runs one item through the pipeline. It returns an error only
// when the item could not be claimed, so the caller can back off.
func (m *Manager) processItem(ctx context.Context, item *queue.Item) error {
	ctx = withItemContext(ctx, item, uuid.NewString())
	logger := logging.WithContext(ctx, m.logger)

	if err := m.store.MarkProcessing(ctx, item.ID); err != nil {
		if errors.Is(err, queue.ErrStatusConflict) {
			logger.Debug("queue item no longer pending; skipping")
			return nil
		}
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to transition item to processing", "queue_transition_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return err
	}
	item.Status = queue.StatusProcessing
	m.setCurrent(item)
	defer m.setCurrent(nil)

	started := time.Now()
	logger.Info("item started", logging.String(logging.FieldEventType, "item_start"))

	result, err := m.runPipeline(ctx, logger, item)
	if err == nil {
		stageStart := time.Now()
		err = m.store.CompleteWithResult(ctx, item.ID, result)
		metrics.ObserveStage(stagePersist, stageStart)
		if err != nil {
			err = failAt(stagePersist, err)
		}
	}
	if err != nil {
		m.handleItemFailure(ctx, logger, item, err)
		return nil
	}

	item.Status = queue.StatusCompleted
	m.setLastItem(item)
	metrics.ItemsProcessed.WithLabelValues(string(queue.StatusCompleted)).Inc()
	logger.Info("item completed",
		logging.String(logging.FieldEventType, "item_complete"),
		logging.String("nsfw_category", string(result.NSFWCategory)),
		logging.String("content_type", string(result.ContentType)),
		logging.Int("tier1_tags", len(result.Tier1Tags)),
		logging.Int("matched_tags", len(result.MatchedTags)),
		logging.Int("suggestions", len(result.Suggestions)),
		logging.Bool("tier2", result.Tier2 != nil),
		logging.Duration("item_duration", time.Since(started)),
	)
	return nil
}

// runPipeline executes every stage for one item and returns the result to
// persist.
func (m *Manager) runPipeline(ctx context.Context, logger *slog.Logger, item *queue.Item) (queue.Result, error) {
	media, err := m.lib.MediaByID(ctx, item.MediaID)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			err = services.Wrap(services.ErrNotFound, stageFrames, "load media", fmt.Sprintf("media %d is not in the library", item.MediaID), err)
		}
		return queue.Result{}, failAt(stageFrames, err)
	}

	set, err := m.sampleFrames(ctx, logger, media)
	if err != nil {
		return queue.Result{}, failAt(stageFrames, err)
	}
	defer func() {
		if cerr := set.Cleanup(); cerr != nil {
			logging.WarnWithContext(logger, "frame scratch cleanup failed", "frames_cleanup_failed",
				logging.String("dir", set.Dir),
				logging.Error(cerr),
				logging.String(logging.FieldErrorHint, "remove the directory under frames_dir manually"),
				logging.String(logging.FieldImpact, "disk space is not reclaimed"),
			)
		}
	}()

	tier1Ctx := services.WithStage(ctx, stageTier1)
	stageStart := time.Now()
	t1, err := m.stages.Tier1.Analyze(tier1Ctx, set.Paths())
	metrics.ObserveStage(stageTier1, stageStart)
	if err != nil {
		return queue.Result{}, failAt(stageTier1, err)
	}
	tier2Needed := m.tier2Enabled()
	if err := m.store.MarkTier1Done(ctx, item.ID, tier2Needed); err != nil {
		return queue.Result{}, failAt(stageTier1, err)
	}
	item.Tier1Done, item.Tier2Needed = true, tier2Needed

	var t2 *vision.Result
	if tier2Needed {
		t2 = m.runTier2(ctx, logger, item, media, set, t1)
	}

	proposals := t1.Proposals()
	if t2 != nil {
		for _, tag := range t2.AdditionalTags {
			proposals = append(proposals, tagging.Proposal{Label: tag, Confidence: m.tier2Conf, Source: tagging.SourceRemote})
		}
	}
	tier3Ctx := services.WithStage(ctx, stageTier3)
	stageStart = time.Now()
	resolution, err := m.stages.Tier3.Resolve(tier3Ctx, proposals)
	metrics.ObserveStage(stageTier3, stageStart)
	if err != nil {
		return queue.Result{}, failAt(stageTier3, err)
	}
	metrics.RecordResolution(resolution.Matched, len(resolution.Suggestions))

	return buildResult(item.MediaID, t1, t2, resolution.Matched, resolution.Suggestions), nil
}

func (m *Manager) sampleFrames(ctx context.Context, logger *slog.Logger, media *library.Media) (*frames.Set, error) {
	ctx = services.WithStage(ctx, stageFrames)
	mediaType := media.Type()
	if mediaType == "" {
		return nil, services.Wrap(services.ErrValidation, stageFrames, "sample", fmt.Sprintf("unknown media type %q", media.MediaType), nil)
	}
	duration := media.Duration()
	if duration <= 0 && mediaType != tagging.MediaImage && m.stages.Prober != nil {
		probed, err := m.stages.Prober(ctx, media.Path)
		switch {
		case err != nil:
			logging.WarnWithContext(logger, "duration probe failed", "duration_probe_failed",
				logging.String("path", media.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify ffprobe is installed"),
				logging.String(logging.FieldImpact, "frames sampled without duration"),
			)
		case probed > 0:
			duration = probed
			if err := m.lib.UpdateDuration(ctx, media.ID, probed); err != nil {
				logger.Debug("failed to store probed duration", logging.Error(err))
			}
		}
	}

	stageStart := time.Now()
	set, err := m.stages.Sampler.Sample(ctx, media.Path, mediaType, duration)
	metrics.ObserveStage(stageFrames, stageStart)
	if err != nil {
		return nil, err
	}
	logger.Debug("frames ready", logging.Int("frames", len(set.Frames)), logging.Float64("duration", duration))
	return set, nil
}

// runTier2 never fails the item; any error is logged and counted and the
// item continues with Tier 1 output only.
func (m *Manager) runTier2(ctx context.Context, logger *slog.Logger, item *queue.Item, media *library.Media, set *frames.Set, t1 tagger.Result) *vision.Result {
	ctx = services.WithStage(ctx, stageTier2)
	existing := make([]string, 0, len(t1.Tags))
	for _, tag := range t1.Tags {
		existing = append(existing, tag.Label)
	}
	if linked, err := m.lib.TagsForMedia(ctx, media.ID); err == nil {
		for _, tag := range linked {
			existing = append(existing, tag.Name)
		}
	}

	stageStart := time.Now()
	res, err := m.stages.Tier2.Analyze(ctx, vision.Request{
		Frames:       set.Paths(),
		MediaType:    media.Type(),
		Filename:     media.Path,
		ExistingTags: existing,
	})
	metrics.ObserveStage(stageTier2, stageStart)
	if err != nil {
		kind := vision.ErrorKind(err)
		metrics.Tier2Failures.WithLabelValues(kind).Inc()
		logging.WarnWithContext(logger, "tier2 analysis failed; continuing with tier1 results", "tier2_failed",
			logging.String(logging.FieldErrorKind, kind),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, tier2Hint(kind)),
			logging.String(logging.FieldImpact, "no title, description or extra tags for this item"),
		)
		return nil
	}
	if err := m.store.MarkTier2Done(ctx, item.ID); err != nil {
		logger.Debug("failed to record tier2 progress", logging.Error(err))
	} else {
		item.Tier2Done = true
	}
	return &res
}

func tier2Hint(kind string) string {
	switch kind {
	case "rate_limited":
		return "the remote model is rate limiting; lower the queue rate or upgrade the plan"
	case "invalid_credentials":
		return "check tier2.api_key"
	default:
		return "check tier2.base_url and tier2.model"
	}
}

func buildResult(mediaID int64, t1 tagger.Result, t2 *vision.Result, matched []tagging.MatchedTag, suggestions []tagging.Suggestion) queue.Result {
	result := queue.Result{
		MediaID:        mediaID,
		NSFWCategory:   t1.NSFWCategory,
		NSFWConfidence: t1.NSFWConfidence,
		ContentType:    t1.ContentType,
		Tier1Tags:      t1.Labels(),
		MatchedTags:    matched,
		Suggestions:    suggestions,
		ReviewStatus:   queue.ReviewPending,
	}
	if t2 != nil {
		result.Tier2 = &queue.Tier2Data{
			Title:       t2.Title,
			Description: t2.Description,
			Tags:        t2.AdditionalTags,
			Attributes:  t2.Attributes,
		}
	}
	return result
}
