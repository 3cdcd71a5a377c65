package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"autotag/internal/library"
	"autotag/internal/logging"
	"autotag/internal/metrics"
	"autotag/internal/queue"
	"autotag/internal/services"
)

// LinkSource marks media_tags rows created by an approved analysis.
const LinkSource = "ai"

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// TagCreator adds approved suggestions to the vocabulary.
type TagCreator interface {
	CreateNewTags(ctx context.Context, names []string) ([]int64, error)
}

// Service coordinates review decisions across the queue and library stores.
type Service struct {
	store  *queue.Store
	lib    *library.Store
	tags   TagCreator
	logger *slog.Logger
}

// NewService constructs a review service.
func NewService(store *queue.Store, lib *library.Store, tags TagCreator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:  store,
		lib:    lib,
		tags:   tags,
		logger: logging.NewComponentLogger(logger, "review"),
	}
}

// Page is one page of review entries.
type Page struct {
	Entries  []queue.ReviewEntry
	Total    int
	Page     int
	PageSize int
}

// Edits overrides what an approval applies. A nil TagIDs keeps the matched
// tags; a nil Title keeps the default title behaviour and a pointer to an
// empty string applies no title.
type Edits struct {
	TagIDs  []int64
	NewTags []string
	Title   *string
}

// Outcome describes what an approval changed. Suggestions counts the
// NewTags entries that resolved to a vocabulary id.
type Outcome struct {
	MediaID      int64   `json:"mediaId"`
	TagIDs       []int64 `json:"tagIds"`
	Suggestions  int     `json:"suggestions"`
	LinksCreated int     `json:"linksCreated"`
	Title        string  `json:"title,omitempty"`
}

// BulkFailure is one media id a bulk operation could not process.
type BulkFailure struct {
	MediaID int64  `json:"mediaId"`
	Error   string `json:"error"`
}

// BulkResult summarises a bulk approve or reject.
type BulkResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    []BulkFailure `json:"failed,omitempty"`
}

// Stats aggregates queue and review counters.
type Stats struct {
	Queue      queue.Stats       `json:"queue"`
	Review     queue.ReviewStats `json:"review"`
	AITagLinks int               `json:"aiTagLinks"`
}

// List returns a page of results of every review status, newest first.
func (s *Service) List(ctx context.Context, page, pageSize int) (Page, error) {
	return s.ListByStatus(ctx, "", page, pageSize)
}

// ListByStatus returns a page of results with the given review status. An
// empty status lists every result.
func (s *Service) ListByStatus(ctx context.Context, status queue.ReviewStatus, page, pageSize int) (Page, error) {
	if err := s.ready(); err != nil {
		return Page{}, err
	}
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}

	purged, err := s.store.PurgeOrphanResults(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "orphan result purge failed", "review_purge_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "results for deleted media stay in the table until the next listing"),
		)
	} else if purged > 0 {
		s.logger.Info("purged orphan results", logging.Int64("count", purged))
	}

	entries, total, err := s.store.ListReviews(ctx, queue.ReviewFilter{Status: status, Page: page, PageSize: pageSize})
	if err != nil {
		return Page{}, services.Wrap(services.ErrTransient, "review", "list", "Failed to list review entries", err)
	}
	return Page{Entries: entries, Total: total, Page: page, PageSize: pageSize}, nil
}

// Approve applies the matched tags of a pending result. The remote title is
// applied only when the media has no title yet.
func (s *Service) Approve(ctx context.Context, mediaID int64) (Outcome, error) {
	return s.ApproveWithEdits(ctx, mediaID, Edits{})
}

// ApproveWithEdits applies a reviewer-adjusted tag set, creating NewTags in
// the vocabulary first, and records the approval.
func (s *Service) ApproveWithEdits(ctx context.Context, mediaID int64, edits Edits) (Outcome, error) {
	if err := s.ready(); err != nil {
		return Outcome{}, err
	}
	result, err := s.pendingResult(ctx, mediaID)
	if err != nil {
		return Outcome{}, err
	}
	media, err := s.lib.MediaByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return Outcome{}, fmt.Errorf("media %d: %w", mediaID, queue.ErrNotFound)
		}
		return Outcome{}, services.Wrap(services.ErrTransient, "review", "load media", "Failed to load media", err)
	}

	tagIDs := edits.TagIDs
	if tagIDs == nil {
		tagIDs = make([]int64, 0, len(result.MatchedTags))
		for _, matched := range result.MatchedTags {
			tagIDs = append(tagIDs, matched.ID)
		}
	}

	outcome := Outcome{MediaID: mediaID}
	if len(edits.NewTags) > 0 {
		if s.tags == nil {
			return Outcome{}, services.Wrap(services.ErrConfiguration, "review", "create tags", "No tag creator configured", nil)
		}
		created, err := s.tags.CreateNewTags(ctx, edits.NewTags)
		if err != nil {
			return Outcome{}, err
		}
		outcome.Suggestions = len(created)
		tagIDs = append(tagIDs, created...)
	}
	outcome.TagIDs = uniqueIDs(tagIDs)

	links, err := s.lib.LinkTags(ctx, mediaID, outcome.TagIDs, LinkSource)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrTransient, "review", "link tags", "Failed to link approved tags", err)
	}
	outcome.LinksCreated = links

	title := approvedTitle(result, media, edits.Title)
	if title != "" {
		if err := s.lib.SetTitle(ctx, mediaID, title); err != nil {
			return Outcome{}, services.Wrap(services.ErrTransient, "review", "set title", "Failed to apply title", err)
		}
		outcome.Title = title
	}

	if err := s.store.SetReviewOutcome(ctx, mediaID, queue.ReviewApproved, outcome.TagIDs, title); err != nil {
		return Outcome{}, err
	}
	metrics.ReviewOutcomes.WithLabelValues(string(queue.ReviewApproved)).Inc()
	s.logger.Info("result approved",
		logging.Int64(logging.FieldMediaID, mediaID),
		logging.Int("tags", len(outcome.TagIDs)),
		logging.Int("links_created", links),
		logging.Int("suggestions_accepted", outcome.Suggestions),
		logging.Bool("title_applied", title != ""),
	)
	return outcome, nil
}

// Reject marks a pending result rejected without touching the library.
func (s *Service) Reject(ctx context.Context, mediaID int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.store.SetReviewOutcome(ctx, mediaID, queue.ReviewRejected, nil, ""); err != nil {
		return err
	}
	metrics.ReviewOutcomes.WithLabelValues(string(queue.ReviewRejected)).Inc()
	s.logger.Info("result rejected", logging.Int64(logging.FieldMediaID, mediaID))
	return nil
}

// ApproveMany approves each media id independently.
func (s *Service) ApproveMany(ctx context.Context, mediaIDs []int64) BulkResult {
	return s.bulk(ctx, mediaIDs, func(id int64) error {
		_, err := s.Approve(ctx, id)
		return err
	})
}

// RejectMany rejects each media id independently.
func (s *Service) RejectMany(ctx context.Context, mediaIDs []int64) BulkResult {
	return s.bulk(ctx, mediaIDs, func(id int64) error {
		return s.Reject(ctx, id)
	})
}

func (s *Service) bulk(ctx context.Context, mediaIDs []int64, apply func(int64) error) BulkResult {
	var out BulkResult
	for _, id := range uniqueIDs(mediaIDs) {
		if err := ctx.Err(); err != nil {
			out.Failed = append(out.Failed, BulkFailure{MediaID: id, Error: err.Error()})
			continue
		}
		if err := apply(id); err != nil {
			out.Failed = append(out.Failed, BulkFailure{MediaID: id, Error: err.Error()})
			continue
		}
		out.Succeeded++
	}
	return out
}

// Stats returns queue counts, review counts and the number of tag links
// created by approvals.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := s.ready(); err != nil {
		return Stats{}, err
	}
	queueStats, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, services.Wrap(services.ErrTransient, "review", "stats", "Failed to read queue stats", err)
	}
	reviewStats, err := s.store.ReviewStats(ctx)
	if err != nil {
		return Stats{}, services.Wrap(services.ErrTransient, "review", "stats", "Failed to read review stats", err)
	}
	links, err := s.lib.CountLinks(ctx, LinkSource)
	if err != nil {
		return Stats{}, services.Wrap(services.ErrTransient, "review", "stats", "Failed to count tag links", err)
	}
	metrics.SetQueueDepth(queueStats)
	return Stats{Queue: queueStats, Review: reviewStats, AITagLinks: links}, nil
}

func (s *Service) pendingResult(ctx context.Context, mediaID int64) (*queue.Result, error) {
	result, err := s.store.GetResult(ctx, mediaID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "review", "load result", "Failed to load analysis result", err)
	}
	if result == nil {
		return nil, fmt.Errorf("result for media %d: %w", mediaID, queue.ErrNotFound)
	}
	if result.ReviewStatus != queue.ReviewPending {
		return nil, fmt.Errorf("result for media %d is %s: %w", mediaID, result.ReviewStatus, queue.ErrNotPending)
	}
	return result, nil
}

func (s *Service) ready() error {
	if s == nil || s.store == nil || s.lib == nil {
		return queue.ErrNotInitialized
	}
	return nil
}

func approvedTitle(result *queue.Result, media *library.Media, override *string) string {
	if override != nil {
		return strings.TrimSpace(*override)
	}
	if result.Tier2 == nil || strings.TrimSpace(media.Title.String) != "" {
		return ""
	}
	return strings.TrimSpace(result.Tier2.Title)
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
