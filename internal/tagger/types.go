package tagger

import (
	"autotag/internal/config"
	"autotag/internal/tagging"
)

// NSFWScore is the categorizer verdict for one frame.
type NSFWScore struct {
	Category   tagging.NSFWCategory
	Confidence float64
}

// ScoredLabel is one label emitted by a scorer for one frame.
type ScoredLabel struct {
	Label      string
	Confidence float64
	Source     tagging.Source
}

// FrameResult is everything the scorers produced for one frame.
type FrameResult struct {
	NSFW   *NSFWScore
	Labels []ScoredLabel
}

// Tag is a surviving label after aggregation.
type Tag struct {
	Label      string
	Confidence float64
	Source     tagging.Source
}

// Result is the Tier 1 output for one media item.
type Result struct {
	NSFWCategory   tagging.NSFWCategory
	NSFWConfidence float64
	ContentType    tagging.ContentType
	Tags           []Tag
	Frames         int
}

// Labels returns the tags in the persisted {label, confidence} form.
func (r Result) Labels() []tagging.Label {
	out := make([]tagging.Label, len(r.Tags))
	for i, t := range r.Tags {
		out[i] = tagging.Label{Label: t.Label, Confidence: t.Confidence}
	}
	return out
}

// Proposals returns the tags as resolver input.
func (r Result) Proposals() []tagging.Proposal {
	out := make([]tagging.Proposal, len(r.Tags))
	for i, t := range r.Tags {
		out[i] = tagging.Proposal{Label: t.Label, Confidence: t.Confidence, Source: t.Source}
	}
	return out
}

// Thresholds drives every aggregation gate.
type Thresholds struct {
	MinConfidence         float64
	RealMinConfidence     float64
	MinFrequency          float64
	HighConfidence        float64
	ContentTypeConfidence float64
	NSFWTagConfidence     float64
	RealBoost             float64
	MaxTags               int
}

// DefaultThresholds returns the stock aggregation gates.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence:         0.35,
		RealMinConfidence:     0.25,
		MinFrequency:          0.30,
		HighConfidence:        0.8,
		ContentTypeConfidence: 0.6,
		NSFWTagConfidence:     0.5,
		RealBoost:             1.15,
		MaxTags:               60,
	}
}

// ThresholdsFromConfig copies the aggregation gates out of configuration.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	t := cfg.Tier1
	return Thresholds{
		MinConfidence:         t.MinConfidence,
		RealMinConfidence:     t.RealMinConfidence,
		MinFrequency:          t.MinFrequency,
		HighConfidence:        t.HighConfidence,
		ContentTypeConfidence: t.ContentTypeConfidence,
		NSFWTagConfidence:     t.NSFWTagConfidence,
		RealBoost:             t.RealBoost,
		MaxTags:               t.MaxTags,
	}
}
