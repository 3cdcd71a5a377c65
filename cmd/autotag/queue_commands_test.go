package main

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/gofrs/flock"

	"autotag/internal/api"
	"autotag/internal/queue"
	"autotag/internal/tagging"
	"autotag/internal/testsupport"
)

func TestEnqueueAndQueueStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	first := testsupport.MustAddMedia(t, env.lib, "/library/a.jpg", tagging.MediaImage, 0)
	testsupport.MustAddMedia(t, env.lib, "/library/b.mp4", tagging.MediaVideo, 12)

	out, err := runCLI(t, []string{"enqueue", strconv.FormatInt(first, 10), "--priority", "3"}, env.configPath)
	if err != nil {
		t.Fatalf("enqueue ids: %v", err)
	}
	requireContains(t, out, "Queued 1 media items")

	out, err = runCLI(t, []string{"enqueue", "--untagged"}, env.configPath)
	if err != nil {
		t.Fatalf("enqueue untagged: %v", err)
	}
	requireContains(t, out, "Queued 1 media items")

	out, err = runCLI(t, []string{"queue", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Pending")

	out, err = runCLI(t, []string{"queue", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var items []api.QueueItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(items) != 2 || items[0].MediaID != first || items[0].Priority != 3 {
		t.Fatalf("unexpected queue order: %+v", items)
	}
}

func TestEnqueueRequiresOneMode(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, []string{"enqueue"}, env.configPath); err == nil {
		t.Fatal("expected error without ids or flags")
	}
	if _, err := runCLI(t, []string{"enqueue", "--all", "--untagged"}, env.configPath); err == nil {
		t.Fatal("expected error for conflicting flags")
	}
	if _, err := runCLI(t, []string{"enqueue", "abc"}, env.configPath); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestQueueRetryClearAndRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	id := testsupport.MustAddMedia(t, env.lib, "/library/a.jpg", tagging.MediaImage, 0)
	if _, err := env.store.Enqueue(ctx, []int64{id}, 0); err != nil {
		t.Fatal(err)
	}
	item, err := env.store.NextPending(ctx)
	if err != nil || item == nil {
		t.Fatalf("next pending: %v", err)
	}
	if err := env.store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.store.MarkFailed(ctx, item.ID, "boom"); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, []string{"queue", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed items")

	out, err = runCLI(t, []string{"queue", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 0 failed items")

	out, err = runCLI(t, []string{"queue", "remove", strconv.FormatInt(id, 10)}, env.configPath)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed 1 queue items")

	out, err = runCLI(t, []string{"queue", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueResetStuck(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	id := testsupport.MustAddMedia(t, env.lib, "/library/a.jpg", tagging.MediaImage, 0)
	if _, err := env.store.Enqueue(ctx, []int64{id}, 0); err != nil {
		t.Fatal(err)
	}
	item, err := env.store.NextPending(ctx)
	if err != nil || item == nil {
		t.Fatalf("next pending: %v", err)
	}
	if err := env.store.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatal(err)
	}

	held := flock.New(env.cfg.LockPath())
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	if _, err := runCLI(t, []string{"queue", "reset-stuck"}, env.configPath); err == nil {
		t.Fatal("expected refusal while the run lock is held")
	}
	_ = held.Unlock()

	out, err := runCLI(t, []string{"queue", "reset-stuck"}, env.configPath)
	if err != nil {
		t.Fatalf("reset-stuck: %v", err)
	}
	requireContains(t, out, "Reset 1 stuck items")

	updated, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != queue.StatusPending {
		t.Fatalf("expected pending after reset, got %s", updated.Status)
	}
}
