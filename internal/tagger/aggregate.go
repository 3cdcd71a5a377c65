package tagger

import (
	"math"
	"sort"
	"strings"

	"autotag/internal/tagging"
	"autotag/internal/textutil"
)

type labelStats struct {
	label  string
	source tagging.Source
	sum    float64
	count  int
	max    float64
}

// Aggregate fuses per-frame scorer output into the item-level result.
func Aggregate(frames []FrameResult, th Thresholds) Result {
	result := Result{Frames: len(frames), ContentType: tagging.ContentUnknown}
	if len(frames) == 0 {
		return result
	}

	stats, order := accumulate(frames)

	// The single strongest frame decides the category.
	for _, f := range frames {
		if f.NSFW != nil && f.NSFW.Confidence > result.NSFWConfidence {
			result.NSFWCategory = f.NSFW.Category
			result.NSFWConfidence = f.NSFW.Confidence
		}
	}
	result.ContentType = ContentTypeFor(result.NSFWCategory, result.NSFWConfidence, th.ContentTypeConfidence)
	isReal := result.ContentType == tagging.ContentReal

	total := float64(len(frames))
	tags := make([]Tag, 0, len(order))
	for _, key := range order {
		s := stats[key]
		avg := s.sum / float64(s.count)
		freq := float64(s.count) / total
		allowed := isReal && inSet(realContentAllow, key)

		minConf := th.MinConfidence
		if allowed {
			minConf = th.RealMinConfidence
		}
		if !(freq >= th.MinFrequency || s.max >= th.HighConfidence) || avg < minConf {
			continue
		}
		if isReal && inSet(realContentDeny, key) {
			continue
		}
		conf := avg
		if allowed {
			conf = math.Min(1.0, avg*th.RealBoost)
		}
		tags = append(tags, Tag{Label: s.label, Confidence: conf, Source: s.source})
	}

	tags = appendUnique(tags, categoryTags(tags, result)...)
	if result.NSFWConfidence > th.NSFWTagConfidence {
		linked := nsfwLinkedTags[result.NSFWCategory]
		extra := make([]Tag, 0, len(linked))
		for _, label := range linked {
			extra = append(extra, Tag{Label: label, Confidence: result.NSFWConfidence, Source: tagging.SourceNSFWLinked})
		}
		tags = appendUnique(tags, extra...)
	}

	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].Confidence != tags[j].Confidence {
			return tags[i].Confidence > tags[j].Confidence
		}
		return tags[i].Label < tags[j].Label
	})
	if th.MaxTags > 0 && len(tags) > th.MaxTags {
		tags = tags[:th.MaxTags]
	}
	result.Tags = tags
	return result
}

// ContentTypeFor maps the winning NSFW category to a content type. Below the
// confidence gate the verdict is unknown.
func ContentTypeFor(category tagging.NSFWCategory, confidence, gate float64) tagging.ContentType {
	if confidence < gate {
		return tagging.ContentUnknown
	}
	switch category {
	case tagging.CategoryHentai, tagging.CategoryDrawings:
		return tagging.ContentAnime
	case tagging.CategoryPorn, tagging.CategorySexy:
		return tagging.ContentReal
	default:
		return tagging.ContentUnknown
	}
}

// accumulate collects per-label statistics. A label seen by more than one
// scorer on the same frame counts once for that frame, at its highest score,
// and keeps the first scorer that reported it.
func accumulate(frames []FrameResult) (map[string]*labelStats, []string) {
	stats := make(map[string]*labelStats)
	var order []string
	for _, f := range frames {
		perFrame := make(map[string]ScoredLabel, len(f.Labels))
		var frameOrder []string
		for _, l := range f.Labels {
			key := textutil.NormalizeLabel(l.Label)
			if key == "" {
				continue
			}
			prev, seen := perFrame[key]
			if !seen {
				frameOrder = append(frameOrder, key)
				perFrame[key] = l
				continue
			}
			if l.Confidence > prev.Confidence {
				prev.Confidence = l.Confidence
				perFrame[key] = prev
			}
		}
		for _, key := range frameOrder {
			l := perFrame[key]
			s, ok := stats[key]
			if !ok {
				s = &labelStats{label: key, source: l.Source}
				stats[key] = s
				order = append(order, key)
			}
			s.sum += l.Confidence
			s.count++
			if l.Confidence > s.max {
				s.max = l.Confidence
			}
		}
	}
	return stats, order
}

func categoryTags(tags []Tag, result Result) []Tag {
	var out []Tag
	for _, rule := range categoryRules {
		best := 0.0
		for _, t := range tags {
			if inSet(rule.triggers, t.Label) && t.Confidence > best {
				best = t.Confidence
			}
		}
		if best > 0 {
			out = append(out, Tag{Label: rule.tag, Confidence: best, Source: tagging.SourceCategory})
		}
	}
	if tier, ok := ratingTierTags[result.NSFWCategory]; ok && result.NSFWConfidence > 0 {
		out = append(out, Tag{Label: tier, Confidence: result.NSFWConfidence, Source: tagging.SourceCategory})
	}
	if tag, ok := contentTypeTags[result.ContentType]; ok {
		out = append(out, Tag{Label: tag, Confidence: result.NSFWConfidence, Source: tagging.SourceCategory})
	}
	return out
}

// appendUnique adds tags whose label is not already present, compared
// case-insensitively.
func appendUnique(tags []Tag, extra ...Tag) []Tag {
	seen := make(map[string]struct{}, len(tags)+len(extra))
	for _, t := range tags {
		seen[strings.ToLower(t.Label)] = struct{}{}
	}
	for _, t := range extra {
		key := strings.ToLower(t.Label)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}
