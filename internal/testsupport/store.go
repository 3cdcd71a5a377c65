package testsupport

import (
	"context"
	"testing"

	"autotag/internal/config"
	"autotag/internal/library"
	"autotag/internal/queue"
	"autotag/internal/tagging"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustOpenLibrary wraps the store's database in a library.Store.
func MustOpenLibrary(t testing.TB, store *queue.Store) *library.Store {
	t.Helper()
	if store == nil || store.DB() == nil {
		t.Fatal("MustOpenLibrary: store not open")
	}
	return library.New(store.DB())
}

// MustAddMedia registers a media row and returns its id.
func MustAddMedia(t testing.TB, lib *library.Store, path string, mediaType tagging.MediaType, duration float64) int64 {
	t.Helper()
	id, err := lib.AddMedia(context.Background(), path, mediaType, duration)
	if err != nil {
		t.Fatalf("AddMedia(%s): %v", path, err)
	}
	return id
}

// MustAddTags inserts vocabulary entries and returns their ids by name.
func MustAddTags(t testing.TB, lib *library.Store, names ...string) map[string]int64 {
	t.Helper()
	ids := make(map[string]int64, len(names))
	for _, name := range names {
		id, err := lib.InsertTag(context.Background(), name)
		if err != nil {
			t.Fatalf("InsertTag(%s): %v", name, err)
		}
		ids[name] = id
	}
	return ids
}
