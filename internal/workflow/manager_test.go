package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"autotag/internal/logging"
	"autotag/internal/queue"
	"autotag/internal/services"
	"autotag/internal/tagging"
	"autotag/internal/testsupport"
	"autotag/internal/vision"
	"autotag/internal/workflow"
)

func TestManagerProcessesItemsInPriorityOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	low := h.addMedia(t, "low.mp4")
	first := h.addMedia(t, "first.mp4")
	second := h.addMedia(t, "second.mp4")
	if _, err := h.mgr.QueueSpecific(ctx, []int64{low}, 0); err != nil {
		t.Fatalf("QueueSpecific failed: %v", err)
	}
	if _, err := h.mgr.QueueSpecific(ctx, []int64{first, second}, 5); err != nil {
		t.Fatalf("QueueSpecific failed: %v", err)
	}

	h.start(t)
	waitForStatus(t, h.store, low, queue.StatusCompleted)

	calls := h.sampler.Calls()
	want := []string{"/library/first.mp4", "/library/second.mp4", "/library/low.mp4"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("processing order = %v, want %v", calls, want)
	}

	result, err := h.store.GetResult(ctx, first)
	if err != nil || result == nil {
		t.Fatalf("GetResult: %v (nil=%v)", err, result == nil)
	}
	if result.NSFWCategory != tagging.CategoryPorn || result.ContentType != tagging.ContentReal {
		t.Fatalf("unexpected verdict: %+v", result)
	}
	if result.ReviewStatus != queue.ReviewPending {
		t.Fatalf("expected pending review, got %s", result.ReviewStatus)
	}
	if result.Tier2 != nil {
		t.Fatalf("tier2 should be absent when disabled")
	}
	if len(result.MatchedTags) != 2 {
		t.Fatalf("expected 2 matched tags, got %+v", result.MatchedTags)
	}
	if result.MatchedTags[1].Name != "blowjob" || result.MatchedTags[1].MatchType != tagging.MatchSynonym {
		t.Fatalf("unexpected synonym match: %+v", result.MatchedTags[1])
	}
	if len(result.Suggestions) != 1 || result.Suggestions[0].Name != "sand castle" {
		t.Fatalf("unexpected suggestions: %+v", result.Suggestions)
	}

	for _, set := range h.sampler.Sets() {
		if _, err := os.Stat(set.Dir); !os.IsNotExist(err) {
			t.Fatalf("frame dir %s not cleaned up (err=%v)", set.Dir, err)
		}
	}

	item := waitForStatus(t, h.store, first, queue.StatusCompleted)
	if !item.Tier1Done || item.Tier2Needed || item.CompletedAt.IsZero() {
		t.Fatalf("unexpected progress flags: %+v", item)
	}
}

func TestManagerTier2FailureDoesNotFailItem(t *testing.T) {
	h := newHarness(t)
	tier2 := &fakeTier2{err: vision.ErrRateLimited}
	h.withTier2(tier2)
	mediaID := h.addMedia(t, "clip.mp4")
	if _, err := h.mgr.QueueSpecific(context.Background(), []int64{mediaID}, 0); err != nil {
		t.Fatalf("QueueSpecific failed: %v", err)
	}

	h.start(t)
	item := waitForStatus(t, h.store, mediaID, queue.StatusCompleted)
	if !item.Tier2Needed || item.Tier2Done {
		t.Fatalf("expected tier2 needed but not done, got %+v", item)
	}
	result, err := h.store.GetResult(context.Background(), mediaID)
	if err != nil || result == nil {
		t.Fatalf("GetResult: %v", err)
	}
	if result.Tier2 != nil {
		t.Fatalf("tier2 data should be absent after failure: %+v", result.Tier2)
	}
	if len(result.MatchedTags) == 0 {
		t.Fatal("tier1 results should still be resolved")
	}
}

func TestManagerTier2TagsAreResolved(t *testing.T) {
	h := newHarness(t)
	tier2 := &fakeTier2{result: vision.Result{
		Title:          "Beach day",
		Description:    "Two people at sunset.",
		AdditionalTags: []string{"sunset"},
	}}
	h.withTier2(tier2)
	mediaID := h.addMedia(t, "a3f9c2d1e8b7.mp4")
	if _, err := h.mgr.QueueAll(context.Background(), 0); err != nil {
		t.Fatalf("QueueAll failed: %v", err)
	}

	h.start(t)
	item := waitForStatus(t, h.store, mediaID, queue.StatusCompleted)
	if !item.Tier2Done {
		t.Fatalf("expected tier2 done, got %+v", item)
	}
	result, err := h.store.GetResult(context.Background(), mediaID)
	if err != nil || result == nil {
		t.Fatalf("GetResult: %v", err)
	}
	if result.Tier2 == nil || result.Tier2.Title != "Beach day" {
		t.Fatalf("unexpected tier2 data: %+v", result.Tier2)
	}
	found := false
	for _, m := range result.MatchedTags {
		if m.Name == "sunset" {
			found = true
			if m.Confidence != h.cfg.Tier2.TagConfidence {
				t.Fatalf("tier2 tag confidence = %v", m.Confidence)
			}
		}
	}
	if !found {
		t.Fatalf("tier2 tag not matched: %+v", result.MatchedTags)
	}

	tier2.mu.Lock()
	defer tier2.mu.Unlock()
	if len(tier2.requests) != 1 {
		t.Fatalf("expected one tier2 request, got %d", len(tier2.requests))
	}
	req := tier2.requests[0]
	if req.Filename != "/library/a3f9c2d1e8b7.mp4" || len(req.ExistingTags) != 3 {
		t.Fatalf("unexpected tier2 request: %+v", req)
	}
}

func TestManagerTier1FailureMarksItemFailed(t *testing.T) {
	h := newHarness(t)
	h.tier1.err = services.Wrap(services.ErrExternalTool, "tier1", "nsfw", "inference failed", errBoom)
	mediaID := h.addMedia(t, "broken.mp4")
	if _, err := h.mgr.QueueSpecific(context.Background(), []int64{mediaID}, 0); err != nil {
		t.Fatalf("QueueSpecific failed: %v", err)
	}

	h.start(t)
	item := waitForStatus(t, h.store, mediaID, queue.StatusFailed)
	if !strings.HasPrefix(item.Error, "tier1: ") || !strings.Contains(item.Error, "boom") {
		t.Fatalf("unexpected error message %q", item.Error)
	}
	if result, _ := h.store.GetResult(context.Background(), mediaID); result != nil {
		t.Fatal("failed item must not produce a result")
	}

	status := h.mgr.Status(context.Background())
	if status.Queue.Failed != 1 || status.LastError == "" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestManagerMissingMediaFailsItem(t *testing.T) {
	h := newHarness(t)
	mediaID := h.addMedia(t, "gone.mp4")
	if _, err := h.mgr.QueueSpecific(context.Background(), []int64{mediaID}, 0); err != nil {
		t.Fatalf("QueueSpecific failed: %v", err)
	}
	if err := h.lib.DeleteMedia(context.Background(), mediaID); err != nil {
		t.Fatalf("DeleteMedia failed: %v", err)
	}

	h.start(t)
	item := waitForStatus(t, h.store, mediaID, queue.StatusFailed)
	if !strings.HasPrefix(item.Error, "frames: ") {
		t.Fatalf("unexpected error %q", item.Error)
	}
}

func TestManagerRefusesStartWithoutTier1(t *testing.T) {
	h := newHarness(t)
	h.tier1.available = false
	err := h.mgr.Start(context.Background(), 1)
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if h.mgr.IsRunning() {
		t.Fatal("manager should not be running")
	}
}

type lineCounter struct {
	mu    sync.Mutex
	match []byte
	hits  int
}

func (c *lineCounter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits += bytes.Count(p, c.match)
	return len(p), nil
}

func (c *lineCounter) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

func TestManagerBacksOffWhenClaimFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.cfg.Workflow.ErrorRetryInterval = 1

	if _, err := h.store.DB().ExecContext(ctx, `CREATE TRIGGER refuse_claim BEFORE UPDATE OF status ON ai_tag_queue
		WHEN NEW.status = 'processing'
		BEGIN SELECT RAISE(ABORT, 'claim refused'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	counter := &lineCounter{match: []byte("failed to transition item to processing")}
	mgr := workflow.NewManager(h.cfg, h.store, h.lib, slog.New(slog.NewTextHandler(counter, nil)))
	mgr.ConfigureStages(workflow.StageSet{
		Sampler: h.sampler,
		Tier1:   h.tier1,
		Tier3:   h.resolver,
	})

	id := h.addMedia(t, "stuck.mp4")
	if _, err := mgr.QueueSpecific(ctx, []int64{id}, 0); err != nil {
		t.Fatalf("QueueSpecific failed: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := mgr.Start(runCtx, 1); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	mgr.Stop()
	mgr.Wait()

	hits := counter.Hits()
	if hits < 1 || hits > 3 {
		t.Fatalf("expected a bounded number of claim attempts within the retry interval, got %d", hits)
	}
	if status := mgr.Status(ctx); !strings.Contains(status.LastError, "claim refused") {
		t.Fatalf("expected last error to record the failure, got %q", status.LastError)
	}
	if len(h.sampler.Calls()) != 0 {
		t.Fatalf("item should not have been sampled: %v", h.sampler.Calls())
	}
}

func TestManagerStartTwice(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	if err := h.mgr.Start(context.Background(), 1); !errors.Is(err, workflow.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestManagerPauseAndResume(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.mgr.Pause()
	if !h.mgr.IsPaused() {
		t.Fatal("expected paused")
	}
	time.Sleep(50 * time.Millisecond)

	mediaID := h.addMedia(t, "paused.mp4")
	if _, err := h.mgr.QueueSpecific(context.Background(), []int64{mediaID}, 0); err != nil {
		t.Fatalf("QueueSpecific failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	item, err := h.store.GetByMediaID(context.Background(), mediaID)
	if err != nil || item == nil {
		t.Fatalf("GetByMediaID: %v", err)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("paused worker picked up an item: %s", item.Status)
	}

	h.mgr.Resume()
	waitForStatus(t, h.store, mediaID, queue.StatusCompleted)
}

func TestManagerStopFinishesCurrentItem(t *testing.T) {
	h := newHarness(t)
	h.tier1.block = make(chan struct{})
	firstID := h.addMedia(t, "first.mp4")
	secondID := h.addMedia(t, "second.mp4")
	if _, err := h.mgr.QueueSpecific(context.Background(), []int64{firstID, secondID}, 0); err != nil {
		t.Fatalf("QueueSpecific failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.mgr.Start(ctx, 1); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForStatus(t, h.store, firstID, queue.StatusProcessing)
	h.mgr.Stop()
	close(h.tier1.block)
	h.mgr.Wait()

	waitForStatus(t, h.store, firstID, queue.StatusCompleted)
	second, err := h.store.GetByMediaID(context.Background(), secondID)
	if err != nil || second == nil {
		t.Fatalf("GetByMediaID: %v", err)
	}
	if second.Status != queue.StatusPending {
		t.Fatalf("second item should not start after stop, got %s", second.Status)
	}
	if h.mgr.IsRunning() {
		t.Fatal("manager still running after Wait")
	}
}

func TestQueueOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tagged := h.addMedia(t, "tagged.mp4")
	untagged := h.addMedia(t, "untagged.mp4")
	tags := testsupport.MustAddTags(t, h.lib, "existing")
	if _, err := h.lib.LinkTags(ctx, tagged, []int64{tags["existing"]}, "manual"); err != nil {
		t.Fatalf("LinkTags failed: %v", err)
	}

	added, err := h.mgr.QueueUntagged(ctx, 0)
	if err != nil || added != 1 {
		t.Fatalf("QueueUntagged = %d, %v", added, err)
	}
	if item, _ := h.store.GetByMediaID(ctx, untagged); item == nil {
		t.Fatal("untagged media not queued")
	}

	added, err = h.mgr.QueueSpecific(ctx, []int64{untagged, tagged, 9999}, 0)
	if err != nil || added != 1 {
		t.Fatalf("QueueSpecific = %d, %v", added, err)
	}

	added, err = h.mgr.QueueAll(ctx, 0)
	if err != nil || added != 0 {
		t.Fatalf("QueueAll = %d, %v (expected idempotent no-op)", added, err)
	}

	removed, err := h.mgr.Dequeue(ctx, []int64{tagged})
	if err != nil || removed != 1 {
		t.Fatalf("Dequeue = %d, %v", removed, err)
	}
	stats, err := h.store.Stats(ctx)
	if err != nil || stats.Pending != 1 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
}

func TestRetryAndClearFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mediaID := h.addMedia(t, "retry.mp4")
	if _, err := h.mgr.QueueSpecific(ctx, []int64{mediaID}, 0); err != nil {
		t.Fatalf("QueueSpecific failed: %v", err)
	}
	item, _ := h.store.GetByMediaID(ctx, mediaID)
	if err := h.store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if err := h.store.MarkFailed(ctx, item.ID, "tier1: boom"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	n, err := h.mgr.RetryFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RetryFailed = %d, %v", n, err)
	}
	item, _ = h.store.GetByMediaID(ctx, mediaID)
	if item.Status != queue.StatusPending || item.Error != "" {
		t.Fatalf("unexpected item after retry: %+v", item)
	}

	_ = h.store.MarkProcessing(ctx, item.ID)
	_ = h.store.MarkFailed(ctx, item.ID, "again")
	n, err = h.mgr.ClearFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ClearFailed = %d, %v", n, err)
	}
	if item, _ := h.store.GetByMediaID(ctx, mediaID); item != nil {
		t.Fatal("failed item should be deleted")
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	h := newHarness(t)
	status := h.mgr.Status(context.Background())
	if status.Running || status.Paused {
		t.Fatalf("unexpected flags: %+v", status)
	}
	if len(status.StageHealth) != 1 || status.StageHealth[0].Name != "tier3" || !status.StageHealth[0].Ready {
		t.Fatalf("unexpected stage health: %+v", status.StageHealth)
	}
}

func TestQueueOperationsRequireStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr := workflow.NewManager(cfg, nil, nil, logging.NewNop())
	if _, err := mgr.QueueAll(context.Background(), 0); !errors.Is(err, queue.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := mgr.Start(context.Background(), 1); !errors.Is(err, queue.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
