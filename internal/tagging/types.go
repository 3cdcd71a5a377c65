package tagging

import "strings"

// MediaType classifies a library file for frame sampling.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaGIF   MediaType = "gif"
	MediaVideo MediaType = "video"
)

// ParseMediaType normalizes a media type string; ok is false for unknown values.
func ParseMediaType(value string) (MediaType, bool) {
	switch MediaType(strings.ToLower(strings.TrimSpace(value))) {
	case MediaImage:
		return MediaImage, true
	case MediaGIF:
		return MediaGIF, true
	case MediaVideo:
		return MediaVideo, true
	default:
		return "", false
	}
}

// NSFWCategory is the content rating produced by the NSFW categorizer.
type NSFWCategory string

const (
	CategoryNormal   NSFWCategory = "normal"
	CategorySexy     NSFWCategory = "sexy"
	CategoryPorn     NSFWCategory = "porn"
	CategoryHentai   NSFWCategory = "hentai"
	CategoryDrawings NSFWCategory = "drawings"
)

// ContentType is the derived drawn-vs-photographic verdict.
type ContentType string

const (
	ContentAnime   ContentType = "anime"
	ContentReal    ContentType = "real"
	ContentUnknown ContentType = "unknown"
)

// Source identifies which scorer or tier proposed a label.
type Source string

const (
	SourceNSFW       Source = "nsfw"
	SourceTagger     Source = "tagger"
	SourceDetector   Source = "detector"
	SourceZeroShot   Source = "zero_shot"
	SourceCategory   Source = "category"
	SourceNSFWLinked Source = "nsfw_category"
	SourceRemote     Source = "tier2"
)

// Label is a scored label as persisted in the Tier-1 tag list.
type Label struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Proposal is a label offered to the resolver, carrying its origin.
type Proposal struct {
	Label      string
	Confidence float64
	Source     Source
}

// MatchType records which resolver strategy produced a match.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchSynonym MatchType = "synonym"
	MatchPartial MatchType = "partial"
)

// MatchedTag is a proposal resolved to an existing vocabulary entry.
type MatchedTag struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	MatchType  MatchType `json:"matchType"`
}

// Suggestion is a proposal with no vocabulary match, offered for approval.
type Suggestion struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Attributes is the fixed attribute set requested from the remote vision model.
type Attributes struct {
	Setting      string `json:"setting,omitempty"`
	Lighting     string `json:"lighting,omitempty"`
	Mood         string `json:"mood,omitempty"`
	ShotType     string `json:"shot_type,omitempty"`
	SubjectCount string `json:"subject_count,omitempty"`
	Quality      string `json:"quality,omitempty"`
}

// IsZero reports whether no attribute was populated.
func (a Attributes) IsZero() bool {
	return a == Attributes{}
}
