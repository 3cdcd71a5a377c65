package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"autotag/internal/config"
	"autotag/internal/frames"
	"autotag/internal/library"
	"autotag/internal/logging"
	"autotag/internal/queue"
	"autotag/internal/resolver"
	"autotag/internal/tagger"
	"autotag/internal/tagging"
	"autotag/internal/testsupport"
	"autotag/internal/vision"
	"autotag/internal/workflow"
)

type fakeSampler struct {
	mu    sync.Mutex
	root  string
	calls []string
	sets  []*frames.Set
	err   error
}

func (s *fakeSampler) Sample(_ context.Context, path string, _ tagging.MediaType, _ float64) (*frames.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, path)
	if s.err != nil {
		return nil, s.err
	}
	dir := filepath.Join(s.root, "set-"+strconv.Itoa(len(s.calls)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	frame := filepath.Join(dir, "frame_00.jpg")
	if err := os.WriteFile(frame, make([]byte, 2048), 0o644); err != nil {
		return nil, err
	}
	set := &frames.Set{Dir: dir, Frames: []frames.Frame{{Path: frame}}}
	s.sets = append(s.sets, set)
	return set, nil
}

func (s *fakeSampler) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSampler) Sets() []*frames.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*frames.Set(nil), s.sets...)
}

type fakeTier1 struct {
	available bool
	result    tagger.Result
	err       error
	block     chan struct{}
}

func (f *fakeTier1) Available() bool { return f.available }

func (f *fakeTier1) Analyze(ctx context.Context, _ []string) (tagger.Result, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return tagger.Result{}, ctx.Err()
		}
	}
	return f.result, f.err
}

type fakeTier2 struct {
	mu       sync.Mutex
	result   vision.Result
	err      error
	requests []vision.Request
}

func (f *fakeTier2) Enabled() bool { return true }

func (f *fakeTier2) Analyze(_ context.Context, req vision.Request) (vision.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	lib      *library.Store
	sampler  *fakeSampler
	tier1    *fakeTier1
	resolver *resolver.Resolver
	mgr      *workflow.Manager
}

func defaultTier1Result() tagger.Result {
	return tagger.Result{
		NSFWCategory:   tagging.CategoryPorn,
		NSFWConfidence: 0.95,
		ContentType:    tagging.ContentReal,
		Tags: []tagger.Tag{
			{Label: "beach", Confidence: 0.9, Source: tagging.SourceTagger},
			{Label: "bj", Confidence: 0.8, Source: tagging.SourceTagger},
			{Label: "sand castle", Confidence: 0.7, Source: tagging.SourceZeroShot},
		},
		Frames: 1,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustOpenLibrary(t, store)
	testsupport.MustAddTags(t, lib, "beach", "blowjob", "sunset")

	h := &harness{
		cfg:     cfg,
		store:   store,
		lib:     lib,
		sampler: &fakeSampler{root: t.TempDir()},
		tier1:   &fakeTier1{available: true, result: defaultTier1Result()},
	}
	h.resolver = resolver.New(cfg, lib, logging.NewNop())
	h.mgr = workflow.NewManager(cfg, store, lib, logging.NewNop())
	h.mgr.ConfigureStages(workflow.StageSet{
		Sampler: h.sampler,
		Tier1:   h.tier1,
		Tier3:   h.resolver,
	})
	return h
}

func (h *harness) withTier2(t2 *fakeTier2) {
	h.mgr.ConfigureStages(workflow.StageSet{
		Sampler: h.sampler,
		Tier1:   h.tier1,
		Tier2:   t2,
		Tier3:   h.resolver,
	})
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.mgr.Start(ctx, 1); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		h.mgr.Stop()
		h.mgr.Wait()
		cancel()
	})
}

func (h *harness) addMedia(t *testing.T, name string) int64 {
	t.Helper()
	return testsupport.MustAddMedia(t, h.lib, "/library/"+name, tagging.MediaVideo, 40)
}

func waitForStatus(t *testing.T, store *queue.Store, mediaID int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		item, err := store.GetByMediaID(context.Background(), mediaID)
		if err != nil {
			t.Fatalf("GetByMediaID failed: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for media %d to reach %s", mediaID, want)
	return nil
}

var errBoom = errors.New("boom")
