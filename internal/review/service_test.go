package review_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotag/internal/library"
	"autotag/internal/logging"
	"autotag/internal/queue"
	"autotag/internal/resolver"
	"autotag/internal/review"
	"autotag/internal/tagging"
	"autotag/internal/testsupport"
)

type fixture struct {
	store *queue.Store
	lib   *library.Store
	svc   *review.Service
	tags  map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustOpenLibrary(t, store)
	tags := testsupport.MustAddTags(t, lib, "beach", "sunset", "outdoor")
	res := resolver.New(cfg, lib, logging.NewNop())
	return &fixture{
		store: store,
		lib:   lib,
		svc:   review.NewService(store, lib, res, logging.NewNop()),
		tags:  tags,
	}
}

func (f *fixture) addResult(t *testing.T, name string, tier2 *queue.Tier2Data) int64 {
	t.Helper()
	mediaID := testsupport.MustAddMedia(t, f.lib, "/library/"+name, tagging.MediaVideo, 30)
	err := f.store.UpsertResult(context.Background(), queue.Result{
		MediaID:        mediaID,
		NSFWCategory:   tagging.CategoryNormal,
		NSFWConfidence: 0.9,
		ContentType:    tagging.ContentReal,
		MatchedTags: []tagging.MatchedTag{
			{ID: f.tags["beach"], Name: "beach", Confidence: 0.9, MatchType: tagging.MatchExact},
			{ID: f.tags["sunset"], Name: "sunset", Confidence: 0.8, MatchType: tagging.MatchExact},
		},
		Suggestions: []tagging.Suggestion{
			{Name: "sand castle", Confidence: 0.7, Reason: "no existing tag matches"},
		},
		Tier2:        tier2,
		ReviewStatus: queue.ReviewPending,
	})
	require.NoError(t, err)
	return mediaID
}

func linkedNames(t *testing.T, lib *library.Store, mediaID int64) []string {
	t.Helper()
	tags, err := lib.TagsForMedia(context.Background(), mediaID)
	require.NoError(t, err)
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}

func TestApproveLinksMatchedTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mediaID := f.addResult(t, "clip.mp4", &queue.Tier2Data{Title: "Evening At The Shore"})

	outcome, err := f.svc.Approve(ctx, mediaID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.tags["beach"], f.tags["sunset"]}, outcome.TagIDs)
	assert.Equal(t, 2, outcome.LinksCreated)
	assert.Zero(t, outcome.Suggestions)
	assert.Equal(t, "Evening At The Shore", outcome.Title)

	assert.ElementsMatch(t, []string{"beach", "sunset"}, linkedNames(t, f.lib, mediaID))

	media, err := f.lib.MediaByID(ctx, mediaID)
	require.NoError(t, err)
	assert.Equal(t, "Evening At The Shore", media.Title.String)

	result, err := f.store.GetResult(ctx, mediaID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, queue.ReviewApproved, result.ReviewStatus)
	assert.Equal(t, []int64{f.tags["beach"], f.tags["sunset"]}, result.ApprovedTagIDs)
	assert.Equal(t, "Evening At The Shore", result.ApprovedTitle)

	links, err := f.lib.CountLinks(ctx, review.LinkSource)
	require.NoError(t, err)
	assert.Equal(t, 2, links)
}

func TestApproveKeepsExistingTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mediaID := f.addResult(t, "titled.mp4", &queue.Tier2Data{Title: "Generated"})
	require.NoError(t, f.lib.SetTitle(ctx, mediaID, "Curated"))

	outcome, err := f.svc.Approve(ctx, mediaID)
	require.NoError(t, err)
	assert.Empty(t, outcome.Title)

	media, err := f.lib.MediaByID(ctx, mediaID)
	require.NoError(t, err)
	assert.Equal(t, "Curated", media.Title.String)
}

func TestApproveWithEditsCreatesSuggestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mediaID := f.addResult(t, "edited.mp4", nil)
	title := "  Castles  "

	outcome, err := f.svc.ApproveWithEdits(ctx, mediaID, review.Edits{
		TagIDs:  []int64{f.tags["outdoor"], f.tags["outdoor"]},
		NewTags: []string{"sand castle", "Beach"},
		Title:   &title,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Suggestions)
	assert.Equal(t, "Castles", outcome.Title)
	assert.Len(t, outcome.TagIDs, 3)
	assert.ElementsMatch(t, []string{"outdoor", "sand castle", "beach"}, linkedNames(t, f.lib, mediaID))

	created, err := f.lib.FindTagByName(ctx, "sand castle")
	require.NoError(t, err)
	require.NotNil(t, created)
}

func TestApproveWithEmptyTitleOverrideSkipsTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mediaID := f.addResult(t, "untitled.mp4", &queue.Tier2Data{Title: "Generated"})
	empty := ""

	outcome, err := f.svc.ApproveWithEdits(ctx, mediaID, review.Edits{Title: &empty})
	require.NoError(t, err)
	assert.Empty(t, outcome.Title)

	media, err := f.lib.MediaByID(ctx, mediaID)
	require.NoError(t, err)
	assert.False(t, media.Title.Valid && media.Title.String != "")
}

func TestRejectLeavesLibraryUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mediaID := f.addResult(t, "reject.mp4", nil)

	require.NoError(t, f.svc.Reject(ctx, mediaID))
	assert.Empty(t, linkedNames(t, f.lib, mediaID))

	result, err := f.store.GetResult(ctx, mediaID)
	require.NoError(t, err)
	assert.Equal(t, queue.ReviewRejected, result.ReviewStatus)
}

func TestDecisionsRequirePendingResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mediaID := f.addResult(t, "twice.mp4", nil)

	require.NoError(t, f.svc.Reject(ctx, mediaID))

	_, err := f.svc.Approve(ctx, mediaID)
	assert.ErrorIs(t, err, queue.ErrNotPending)
	assert.ErrorIs(t, f.svc.Reject(ctx, mediaID), queue.ErrNotPending)

	_, err = f.svc.Approve(ctx, 9999)
	assert.ErrorIs(t, err, queue.ErrNotFound)
	assert.ErrorIs(t, f.svc.Reject(ctx, 9999), queue.ErrNotFound)
}

func TestBulkDecisionsReportFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.addResult(t, "a.mp4", nil)
	second := f.addResult(t, "b.mp4", nil)
	third := f.addResult(t, "c.mp4", nil)

	approved := f.svc.ApproveMany(ctx, []int64{first, second, second, 9999})
	assert.Equal(t, 2, approved.Succeeded)
	require.Len(t, approved.Failed, 1)
	assert.Equal(t, int64(9999), approved.Failed[0].MediaID)

	rejected := f.svc.RejectMany(ctx, []int64{first, third})
	assert.Equal(t, 1, rejected.Succeeded)
	require.Len(t, rejected.Failed, 1)
	assert.Equal(t, first, rejected.Failed[0].MediaID)
}

func TestListPurgesOrphansAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []int64
	for _, name := range []string{"one.mp4", "two.mp4", "three.mp4"} {
		ids = append(ids, f.addResult(t, name, nil))
	}
	require.NoError(t, f.lib.DeleteMedia(ctx, ids[0]))
	require.NoError(t, f.svc.Reject(ctx, ids[1]))

	page, err := f.svc.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Entries, 1)
	assert.Equal(t, 1, page.PageSize)

	pending, err := f.svc.ListByStatus(ctx, queue.ReviewPending, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Total)
	require.Len(t, pending.Entries, 1)
	assert.Equal(t, ids[2], pending.Entries[0].MediaID)
	assert.Equal(t, "/library/three.mp4", pending.Entries[0].MediaPath)

	orphan, err := f.store.GetResult(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, orphan)
}

func TestStatsCountsApprovedLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.addResult(t, "a.mp4", nil)
	second := f.addResult(t, "b.mp4", nil)
	_, err := f.store.Enqueue(ctx, []int64{first, second}, 0)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, first)
	require.NoError(t, err)
	require.NoError(t, f.svc.Reject(ctx, second))

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Queue.Pending)
	assert.Equal(t, 1, stats.Review.Approved)
	assert.Equal(t, 1, stats.Review.Rejected)
	assert.Equal(t, 2, stats.Review.NSFW[string(tagging.CategoryNormal)])
	assert.Equal(t, 2, stats.AITagLinks)
}

func TestNilServiceReturnsNotInitialized(t *testing.T) {
	svc := review.NewService(nil, nil, nil, nil)
	_, err := svc.List(context.Background(), 1, 10)
	assert.ErrorIs(t, err, queue.ErrNotInitialized)
	_, err = svc.Stats(context.Background())
	assert.ErrorIs(t, err, queue.ErrNotInitialized)
}
