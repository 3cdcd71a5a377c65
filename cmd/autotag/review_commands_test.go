package main

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"autotag/internal/api"
	"autotag/internal/queue"
	"autotag/internal/tagging"
	"autotag/internal/testsupport"
)

func addPendingResult(t *testing.T, env *cliTestEnv, path string, tagID int64) int64 {
	t.Helper()
	id := testsupport.MustAddMedia(t, env.lib, path, tagging.MediaImage, 0)
	err := env.store.UpsertResult(context.Background(), queue.Result{
		MediaID:        id,
		NSFWCategory:   tagging.CategoryNormal,
		NSFWConfidence: 0.9,
		MatchedTags: []tagging.MatchedTag{
			{ID: tagID, Name: "beach", Confidence: 0.8, MatchType: tagging.MatchExact},
		},
		Suggestions:  []tagging.Suggestion{{Name: "driftwood", Confidence: 0.7, Reason: "tier2"}},
		Tier2:        &queue.Tier2Data{Title: "Quiet Shore"},
		ReviewStatus: queue.ReviewPending,
	})
	if err != nil {
		t.Fatalf("upsert result: %v", err)
	}
	return id
}

func TestReviewListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	tags := testsupport.MustAddTags(t, env.lib, "beach")
	id := addPendingResult(t, env, "/library/shore.jpg", tags["beach"])

	out, err := runCLI(t, []string{"review", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	requireContains(t, out, "shore.jpg")
	requireContains(t, out, "driftwood")
	requireContains(t, out, "Quiet Shore")

	out, err = runCLI(t, []string{"review", "show", strconv.FormatInt(id, 10)}, env.configPath)
	if err != nil {
		t.Fatalf("review show: %v", err)
	}
	var entry api.ReviewEntry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.MediaPath != "/library/shore.jpg" || len(entry.MatchedTags) != 1 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	if _, err := runCLI(t, []string{"review", "list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestReviewApproveWithEdits(t *testing.T) {
	env := setupCLITestEnv(t)
	tags := testsupport.MustAddTags(t, env.lib, "beach")
	id := addPendingResult(t, env, "/library/shore.jpg", tags["beach"])

	out, err := runCLI(t, []string{"review", "approve", strconv.FormatInt(id, 10), "--new-tag", "driftwood", "--title", "Low Tide"}, env.configPath)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	requireContains(t, out, "Approved media")
	requireContains(t, out, `title "Low Tide"`)

	linked, err := env.lib.TagsForMedia(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 2 {
		t.Fatalf("expected beach and driftwood linked, got %+v", linked)
	}

	if _, err := runCLI(t, []string{"review", "approve", strconv.FormatInt(id, 10)}, env.configPath); err == nil {
		t.Fatal("expected second approval to fail")
	}
}

func TestReviewBulkRejectReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	tags := testsupport.MustAddTags(t, env.lib, "beach")
	first := addPendingResult(t, env, "/library/a.jpg", tags["beach"])
	second := addPendingResult(t, env, "/library/b.jpg", tags["beach"])

	out, err := runCLI(t, []string{"review", "reject", strconv.FormatInt(first, 10), strconv.FormatInt(second, 10), "9999"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for the unknown media id")
	}
	requireContains(t, out, "Rejected 2 media items")
	requireContains(t, out, "Media 9999")

	if _, err := runCLI(t, []string{"review", "approve", "1", "2", "--title", "x"}, env.configPath); err == nil {
		t.Fatal("expected edits with several ids to be refused")
	}
}

func TestStatsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	tags := testsupport.MustAddTags(t, env.lib, "beach")
	id := addPendingResult(t, env, "/library/a.jpg", tags["beach"])

	if _, err := runCLI(t, []string{"review", "approve", strconv.FormatInt(id, 10)}, env.configPath); err != nil {
		t.Fatalf("approve: %v", err)
	}
	out, err := runCLI(t, []string{"stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "Approved")
	requireContains(t, out, "Normal")
	requireContains(t, out, "Tag links created by approvals: 1")
}
