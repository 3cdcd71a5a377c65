package preflight

import (
	"context"

	"autotag/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The vision API check only runs when Tier 2 is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Frames directory", cfg.Paths.FramesDir),
		CheckFreeSpace("Frames free space", cfg.Paths.FramesDir, cfg.Frames.MinFreeMiB),
		CheckModels(cfg),
	}

	if cfg.Tier2.Enabled {
		results = append(results, CheckLLM(ctx, "Vision API", cfg.Tier2))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
