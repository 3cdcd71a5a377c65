package stage

import (
	"context"
	"testing"
)

type fixedChecker Health

func (f fixedChecker) HealthCheck(context.Context) Health { return Health(f) }

func TestCollectSortsAndSkipsNil(t *testing.T) {
	var missing Checker
	got := Collect(context.Background(),
		fixedChecker(Healthy("tier3")),
		missing,
		fixedChecker(Unhealthy("frames", "ffmpeg not found")),
	)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Name != "frames" || got[1].Name != "tier3" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if AllReady(got) {
		t.Fatal("expected AllReady to be false")
	}
	if !AllReady(got[1:]) {
		t.Fatal("expected tier3 alone to be ready")
	}
}
