package tagger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotag/internal/tagging"
)

func nsfwFrame(cat tagging.NSFWCategory, conf float64, labels ...ScoredLabel) FrameResult {
	return FrameResult{NSFW: &NSFWScore{Category: cat, Confidence: conf}, Labels: labels}
}

func lbl(name string, conf float64) ScoredLabel {
	return ScoredLabel{Label: name, Confidence: conf, Source: tagging.SourceTagger}
}

func findTag(tags []Tag, label string) (Tag, bool) {
	for _, t := range tags {
		if t.Label == label {
			return t, true
		}
	}
	return Tag{}, false
}

func TestAggregateCategoryUsesStrongestFrame(t *testing.T) {
	frames := []FrameResult{
		nsfwFrame(tagging.CategoryPorn, 0.9),
		nsfwFrame(tagging.CategorySexy, 0.4),
		nsfwFrame(tagging.CategoryPorn, 0.95),
		nsfwFrame(tagging.CategoryNormal, 0.3),
	}
	res := Aggregate(frames, DefaultThresholds())
	assert.Equal(t, tagging.CategoryPorn, res.NSFWCategory)
	assert.InDelta(t, 0.95, res.NSFWConfidence, 1e-9)
	assert.Equal(t, tagging.ContentReal, res.ContentType)
	assert.Equal(t, 4, res.Frames)
}

func TestContentTypeBoundaries(t *testing.T) {
	cases := []struct {
		cat  tagging.NSFWCategory
		conf float64
		want tagging.ContentType
	}{
		{tagging.CategoryHentai, 0.6, tagging.ContentAnime},
		{tagging.CategoryDrawings, 0.6, tagging.ContentAnime},
		{tagging.CategoryHentai, 0.5999, tagging.ContentUnknown},
		{tagging.CategoryPorn, 0.6, tagging.ContentReal},
		{tagging.CategorySexy, 0.6, tagging.ContentReal},
		{tagging.CategorySexy, 0.5999, tagging.ContentUnknown},
		{tagging.CategoryNormal, 0.99, tagging.ContentUnknown},
		{"", 0, tagging.ContentUnknown},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s@%v", tc.cat, tc.conf), func(t *testing.T) {
			assert.Equal(t, tc.want, ContentTypeFor(tc.cat, tc.conf, 0.6))
			res := Aggregate([]FrameResult{nsfwFrame(tc.cat, tc.conf)}, DefaultThresholds())
			assert.Equal(t, tc.want, res.ContentType)
		})
	}
}

func TestAggregateFrequencyScenario(t *testing.T) {
	frames := []FrameResult{
		{Labels: []ScoredLabel{lbl("label-x", 0.9)}},
		{Labels: []ScoredLabel{lbl("label-x", 0.9)}},
		{},
		{},
	}
	res := Aggregate(frames, DefaultThresholds())
	tag, ok := findTag(res.Tags, "label-x")
	require.True(t, ok)
	assert.InDelta(t, 0.9, tag.Confidence, 1e-9)
	assert.Equal(t, tagging.SourceTagger, tag.Source)
	assert.Equal(t, tagging.ContentUnknown, res.ContentType)
}

func TestAggregateBoostsAllowListedLabelsOnRealContent(t *testing.T) {
	frames := []FrameResult{
		nsfwFrame(tagging.CategoryPorn, 0.9, lbl("smile", 0.9)),
		nsfwFrame(tagging.CategoryPorn, 0.9, lbl("smile", 0.9)),
		nsfwFrame(tagging.CategoryPorn, 0.9),
		nsfwFrame(tagging.CategoryPorn, 0.9),
	}
	res := Aggregate(frames, DefaultThresholds())
	tag, ok := findTag(res.Tags, "smile")
	require.True(t, ok)
	assert.InDelta(t, 1.0, tag.Confidence, 1e-9)
}

func TestAggregateInclusionGates(t *testing.T) {
	frames := []FrameResult{
		{Labels: []ScoredLabel{lbl("rare-mid", 0.7), lbl("rare-high", 0.85), lbl("weak", 0.3), lbl("steady", 0.4)}},
		{Labels: []ScoredLabel{lbl("weak", 0.3), lbl("steady", 0.4)}},
		{Labels: []ScoredLabel{lbl("weak", 0.3), lbl("steady", 0.4)}},
		{Labels: []ScoredLabel{lbl("weak", 0.3), lbl("steady", 0.4)}},
	}
	res := Aggregate(frames, DefaultThresholds())

	_, ok := findTag(res.Tags, "rare-mid")
	assert.False(t, ok, "frequency 0.25 and max 0.7 fails the first gate")
	_, ok = findTag(res.Tags, "rare-high")
	assert.True(t, ok, "max 0.85 passes the first gate")
	_, ok = findTag(res.Tags, "weak")
	assert.False(t, ok, "average 0.3 is below the floor")
	_, ok = findTag(res.Tags, "steady")
	assert.True(t, ok)
}

func TestAggregateRealFloorOnlyForAllowList(t *testing.T) {
	frames := []FrameResult{
		nsfwFrame(tagging.CategorySexy, 0.7, lbl("long hair", 0.3), lbl("unlisted", 0.3)),
		nsfwFrame(tagging.CategorySexy, 0.7, lbl("long hair", 0.3), lbl("unlisted", 0.3)),
	}
	res := Aggregate(frames, DefaultThresholds())
	tag, ok := findTag(res.Tags, "long hair")
	require.True(t, ok)
	assert.InDelta(t, 0.345, tag.Confidence, 1e-9)
	_, ok = findTag(res.Tags, "unlisted")
	assert.False(t, ok)
}

func TestAggregateDropsDenyListOnRealOnly(t *testing.T) {
	realFrames := []FrameResult{nsfwFrame(tagging.CategoryPorn, 0.9, lbl("1girl", 0.99), lbl("blue hair", 0.95))}
	res := Aggregate(realFrames, DefaultThresholds())
	_, ok := findTag(res.Tags, "1girl")
	assert.False(t, ok)
	_, ok = findTag(res.Tags, "blue hair")
	assert.False(t, ok)

	anime := []FrameResult{nsfwFrame(tagging.CategoryHentai, 0.9, lbl("1girl", 0.99))}
	res = Aggregate(anime, DefaultThresholds())
	_, ok = findTag(res.Tags, "1girl")
	assert.True(t, ok)
}

func TestAggregateCategoryTags(t *testing.T) {
	frames := []FrameResult{nsfwFrame(tagging.CategoryHentai, 0.8, lbl("1girl", 0.95))}
	res := Aggregate(frames, DefaultThresholds())

	for _, label := range []string{"category:female", "category:solo", "category:explicit", "category:anime"} {
		tag, ok := findTag(res.Tags, label)
		require.True(t, ok, label)
		assert.Equal(t, tagging.SourceCategory, tag.Source)
	}
	female, _ := findTag(res.Tags, "category:female")
	assert.InDelta(t, 0.95, female.Confidence, 1e-9)
	_, ok := findTag(res.Tags, "category:male")
	assert.False(t, ok)
}

func TestAggregateNSFWLinkedTags(t *testing.T) {
	frames := []FrameResult{nsfwFrame(tagging.CategoryPorn, 0.95, lbl("NSFW", 0.99))}
	res := Aggregate(frames, DefaultThresholds())

	for _, label := range []string{"explicit", "adult content", "real", "live action"} {
		tag, ok := findTag(res.Tags, label)
		require.True(t, ok, label)
		assert.Equal(t, tagging.SourceNSFWLinked, tag.Source)
		assert.InDelta(t, 0.95, tag.Confidence, 1e-9)
	}
	count := 0
	for _, tag := range res.Tags {
		if tag.Label == "nsfw" {
			count++
			assert.Equal(t, tagging.SourceTagger, tag.Source)
		}
	}
	assert.Equal(t, 1, count, "injected tags dedupe against existing labels")

	atGate := Aggregate([]FrameResult{nsfwFrame(tagging.CategoryPorn, 0.5)}, DefaultThresholds())
	_, ok := findTag(atGate.Tags, "explicit")
	assert.False(t, ok, "confidence must exceed the gate")
}

func TestAggregateSortsAndTruncates(t *testing.T) {
	var labels []ScoredLabel
	for i := 0; i < 80; i++ {
		labels = append(labels, lbl(fmt.Sprintf("tag-%02d", i), 0.4+float64(i)/200))
	}
	res := Aggregate([]FrameResult{{Labels: labels}}, DefaultThresholds())
	require.Len(t, res.Tags, 60)
	for i := 1; i < len(res.Tags); i++ {
		assert.GreaterOrEqual(t, res.Tags[i-1].Confidence, res.Tags[i].Confidence)
	}
	assert.Equal(t, "tag-79", res.Tags[0].Label)
}

func TestAggregateCountsLabelOncePerFrame(t *testing.T) {
	frames := []FrameResult{
		{Labels: []ScoredLabel{
			{Label: "Outdoors", Confidence: 0.6, Source: tagging.SourceZeroShot},
			{Label: "outdoors", Confidence: 0.9, Source: tagging.SourceTagger},
		}},
		{},
		{},
		{},
	}
	res := Aggregate(frames, DefaultThresholds())
	tag, ok := findTag(res.Tags, "outdoors")
	require.True(t, ok, "max 0.9 passes even though frequency is 0.25")
	assert.InDelta(t, 0.9, tag.Confidence, 1e-9)
	assert.Equal(t, tagging.SourceZeroShot, tag.Source)
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(nil, DefaultThresholds())
	assert.Empty(t, res.Tags)
	assert.Equal(t, tagging.ContentUnknown, res.ContentType)
}
