package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autotag/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 MiB minimum, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, 1<<40); result.Passed {
		t.Fatalf("expected failure with an exabyte minimum, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckModels(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ModelsDir = t.TempDir()

	if result := CheckModels(&cfg); result.Passed {
		t.Fatalf("expected failure with empty models dir, got: %s", result.Detail)
	}

	if err := os.WriteFile(cfg.ModelPath(cfg.Tier1.NSFWModel), []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckModels(&cfg)
	if !result.Passed {
		t.Fatalf("expected pass with nsfw model present, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "loaded: nsfw") || !strings.Contains(result.Detail, "missing: tagger") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckSystemDeps_RuntimeLibrary(t *testing.T) {
	cfg := config.Default()
	cfg.Tier1.RuntimeLibrary = filepath.Join(t.TempDir(), "libonnxruntime.so")

	statuses := CheckSystemDeps(&cfg)
	var found bool
	for _, s := range statuses {
		if s.Name == "onnxruntime" {
			found = true
			if s.Available {
				t.Fatal("expected missing runtime library to be unavailable")
			}
		}
		if s.Name == "FFprobe" && !s.Optional {
			t.Fatal("expected ffprobe to be optional")
		}
	}
	if !found {
		t.Fatal("expected onnxruntime requirement")
	}
}

func TestCheckLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	tier2 := config.Tier2{APIKey: "good-key", BaseURL: srv.URL, Model: "vision"}
	if result := CheckLLM(context.Background(), "Vision API", tier2); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	tier2.APIKey = "bad-key"
	if result := CheckLLM(context.Background(), "Vision API", tier2); result.Passed {
		t.Fatal("expected failure for bad key")
	}

	tier2.APIKey = ""
	if result := CheckLLM(context.Background(), "Vision API", tier2); result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result for missing key: %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_SkipsVisionWhenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.FramesDir = t.TempDir()
	cfg.Paths.ModelsDir = t.TempDir()
	cfg.Frames.MinFreeMiB = 0
	cfg.Tier2.Enabled = false

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Tier 1 models" {
		t.Fatalf("expected only the model check to fail, got %+v", failed)
	}
}
