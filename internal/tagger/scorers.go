package tagger

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"autotag/internal/inference"
	"autotag/internal/models"
	"autotag/internal/tagging"
)

// Scorer runs one model against one decoded frame.
type Scorer interface {
	Source() tagging.Source
	Score(ctx context.Context, img image.Image) (FrameResult, error)
}

func runSingle(ctx context.Context, runner inference.Runner, img image.Image, pre inference.Preprocess) ([]inference.Tensor, error) {
	outs, err := runner.Run(ctx, inference.ToTensor(img, pre))
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 || len(outs[0].Data) == 0 {
		return nil, fmt.Errorf("model returned no output")
	}
	return outs, nil
}

// Softmax returns exp-normalised probabilities for logits.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

// NSFW categorizer

// nsfwClasses is the categorizer's output order.
var nsfwClasses = []string{"drawings", "hentai", "neutral", "porn", "sexy"}

// NSFWScorer classifies a frame into one of five content ratings.
type NSFWScorer struct {
	runner inference.Runner
	pre    inference.Preprocess
}

// NewNSFWScorer wraps a loaded categorizer model.
func NewNSFWScorer(runner inference.Runner) *NSFWScorer {
	return &NSFWScorer{runner: runner, pre: inference.Preprocess{Width: 224, Height: 224, Layout: inference.NHWC}}
}

func (s *NSFWScorer) Source() tagging.Source { return tagging.SourceNSFW }

func (s *NSFWScorer) Score(ctx context.Context, img image.Image) (FrameResult, error) {
	outs, err := runSingle(ctx, s.runner, img, s.pre)
	if err != nil {
		return FrameResult{}, fmt.Errorf("nsfw categorizer: %w", err)
	}
	raw := outs[0].Data
	if len(raw) < len(nsfwClasses) {
		return FrameResult{}, fmt.Errorf("nsfw categorizer: %d outputs, want %d", len(raw), len(nsfwClasses))
	}
	logits := make([]float64, len(nsfwClasses))
	for i := range logits {
		logits[i] = float64(raw[i])
	}
	probs := Softmax(logits)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return FrameResult{NSFW: &NSFWScore{Category: nsfwCategory(nsfwClasses[best]), Confidence: probs[best]}}, nil
}

func nsfwCategory(class string) tagging.NSFWCategory {
	if class == "neutral" {
		return tagging.CategoryNormal
	}
	return tagging.NSFWCategory(class)
}

// Descriptive tagger

// DescriptiveScorer emits sparse labels from a fixed vocabulary.
type DescriptiveScorer struct {
	runner    inference.Runner
	labels    []models.TagLabel
	threshold float64
	pre       inference.Preprocess
}

// NewDescriptiveScorer wraps a loaded tagger model and its label file.
func NewDescriptiveScorer(runner inference.Runner, labels []models.TagLabel, threshold float64) *DescriptiveScorer {
	return &DescriptiveScorer{
		runner:    runner,
		labels:    labels,
		threshold: threshold,
		pre: inference.Preprocess{
			Width: 448, Height: 448, Layout: inference.NHWC,
			Fit: inference.FitPad, PadColor: color.White, Raw: true, BGR: true,
		},
	}
}

func (s *DescriptiveScorer) Source() tagging.Source { return tagging.SourceTagger }

func (s *DescriptiveScorer) Score(ctx context.Context, img image.Image) (FrameResult, error) {
	outs, err := runSingle(ctx, s.runner, img, s.pre)
	if err != nil {
		return FrameResult{}, fmt.Errorf("descriptive tagger: %w", err)
	}
	scores := outs[0].Data
	if len(scores) != len(s.labels) {
		return FrameResult{}, fmt.Errorf("descriptive tagger: %d scores for %d labels", len(scores), len(s.labels))
	}
	logits := false
	for _, v := range scores {
		if v < 0 || v > 1 {
			logits = true
			break
		}
	}
	var result FrameResult
	for i, v := range scores {
		if s.labels[i].IsRating() {
			continue
		}
		p := float64(v)
		if logits {
			p = sigmoid(p)
		}
		if p >= s.threshold {
			result.Labels = append(result.Labels, ScoredLabel{Label: s.labels[i].Name, Confidence: p, Source: tagging.SourceTagger})
		}
	}
	return result, nil
}

// Body-region detector

// detectorClasses is the detector's class order.
var detectorClasses = []string{
	"FEMALE_GENITALIA_COVERED", "FACE_FEMALE", "BUTTOCKS_EXPOSED", "FEMALE_BREAST_EXPOSED",
	"FEMALE_GENITALIA_EXPOSED", "MALE_BREAST_EXPOSED", "ANUS_EXPOSED", "FEET_EXPOSED",
	"BELLY_COVERED", "FEET_COVERED", "ARMPITS_COVERED", "ARMPITS_EXPOSED",
	"FACE_MALE", "BELLY_EXPOSED", "MALE_GENITALIA_EXPOSED", "ANUS_COVERED",
	"FEMALE_BREAST_COVERED", "BUTTOCKS_COVERED",
}

// detectorTags maps region labels to readable tags. Older model exports name
// the same regions differently; both spellings are listed.
var detectorTags = map[string]string{
	"FEMALE_GENITALIA_COVERED": "covered genitalia",
	"FACE_FEMALE":              "female face",
	"BUTTOCKS_EXPOSED":         "exposed buttocks",
	"FEMALE_BREAST_EXPOSED":    "exposed breasts",
	"FEMALE_GENITALIA_EXPOSED": "exposed female genitalia",
	"MALE_BREAST_EXPOSED":      "exposed male chest",
	"ANUS_EXPOSED":             "exposed anus",
	"FEET_EXPOSED":             "bare feet",
	"BELLY_COVERED":            "covered belly",
	"FEET_COVERED":             "covered feet",
	"ARMPITS_COVERED":          "covered armpits",
	"ARMPITS_EXPOSED":          "exposed armpits",
	"FACE_MALE":                "male face",
	"BELLY_EXPOSED":            "exposed belly",
	"MALE_GENITALIA_EXPOSED":   "exposed male genitalia",
	"ANUS_COVERED":             "covered anus",
	"FEMALE_BREAST_COVERED":    "covered breasts",
	"BUTTOCKS_COVERED":         "covered buttocks",

	"EXPOSED_ANUS":        "exposed anus",
	"EXPOSED_ARMPITS":     "exposed armpits",
	"COVERED_BELLY":       "covered belly",
	"EXPOSED_BELLY":       "exposed belly",
	"COVERED_BUTTOCKS":    "covered buttocks",
	"EXPOSED_BUTTOCKS":    "exposed buttocks",
	"FACE_F":              "female face",
	"FACE_M":              "male face",
	"COVERED_FEET":        "covered feet",
	"EXPOSED_FEET":        "bare feet",
	"COVERED_BREAST_F":    "covered breasts",
	"EXPOSED_BREAST_F":    "exposed breasts",
	"COVERED_GENITALIA_F": "covered genitalia",
	"EXPOSED_GENITALIA_F": "exposed female genitalia",
	"EXPOSED_BREAST_M":    "exposed male chest",
	"EXPOSED_GENITALIA_M": "exposed male genitalia",
}

// DetectorTag returns the readable tag for a region label.
func DetectorTag(region string) (string, bool) {
	tag, ok := detectorTags[region]
	return tag, ok
}

// DetectorScorer reports body regions found anywhere in a frame.
type DetectorScorer struct {
	runner    inference.Runner
	classes   []string
	threshold float64
	pre       inference.Preprocess
}

// NewDetectorScorer wraps a loaded region detector.
func NewDetectorScorer(runner inference.Runner, threshold float64) *DetectorScorer {
	return &DetectorScorer{
		runner:    runner,
		classes:   detectorClasses,
		threshold: threshold,
		pre: inference.Preprocess{
			Width: 320, Height: 320, Layout: inference.NCHW,
			Fit: inference.FitPad, PadColor: color.Black,
		},
	}
}

func (s *DetectorScorer) Source() tagging.Source { return tagging.SourceDetector }

// Score reads a [1, 4+classes, anchors] (or transposed) detection tensor and
// keeps the best score per class. Box geometry is ignored.
func (s *DetectorScorer) Score(ctx context.Context, img image.Image) (FrameResult, error) {
	outs, err := runSingle(ctx, s.runner, img, s.pre)
	if err != nil {
		return FrameResult{}, fmt.Errorf("region detector: %w", err)
	}
	out := outs[0]
	nc := len(s.classes)
	rows := 4 + nc
	if len(out.Shape) != 3 {
		return FrameResult{}, fmt.Errorf("region detector: unexpected output rank %d", len(out.Shape))
	}
	var anchors int
	var at func(class, anchor int) float32
	switch {
	case int(out.Shape[1]) == rows:
		anchors = int(out.Shape[2])
		at = func(c, a int) float32 { return out.Data[(4+c)*anchors+a] }
	case int(out.Shape[2]) == rows:
		anchors = int(out.Shape[1])
		at = func(c, a int) float32 { return out.Data[a*rows+4+c] }
	default:
		return FrameResult{}, fmt.Errorf("region detector: output shape %v does not fit %d classes", out.Shape, nc)
	}
	if len(out.Data) < rows*anchors {
		return FrameResult{}, fmt.Errorf("region detector: short output")
	}

	best := make([]float64, nc)
	for a := 0; a < anchors; a++ {
		for c := 0; c < nc; c++ {
			if v := float64(at(c, a)); v > best[c] {
				best[c] = v
			}
		}
	}
	var result FrameResult
	for c, score := range best {
		if score < s.threshold {
			continue
		}
		tag, ok := DetectorTag(s.classes[c])
		if !ok {
			continue
		}
		result.Labels = append(result.Labels, ScoredLabel{Label: tag, Confidence: score, Source: tagging.SourceDetector})
	}
	return result, nil
}

// Zero-shot classifier

// ZeroShotScorer compares the frame embedding against prompt embeddings.
type ZeroShotScorer struct {
	runner    inference.Runner
	bank      *models.PromptBank
	threshold float64
	topK      int
	pre       inference.Preprocess
}

// NewZeroShotScorer wraps a loaded image encoder and its prompt bank.
func NewZeroShotScorer(runner inference.Runner, bank *models.PromptBank, threshold float64, topK int) *ZeroShotScorer {
	return &ZeroShotScorer{
		runner:    runner,
		bank:      bank,
		threshold: threshold,
		topK:      topK,
		pre: inference.Preprocess{
			Width: 224, Height: 224, Layout: inference.NCHW, Fit: inference.FitCenterCrop,
			Mean: [3]float32{0.48145466, 0.4578275, 0.40821073},
			Std:  [3]float32{0.26862954, 0.26130258, 0.27577711},
		},
	}
}

func (s *ZeroShotScorer) Source() tagging.Source { return tagging.SourceZeroShot }

// logitScale matches the encoder's learned temperature.
const logitScale = 100.0

func (s *ZeroShotScorer) Score(ctx context.Context, img image.Image) (FrameResult, error) {
	outs, err := s.runner.Run(ctx, inference.ToTensor(img, s.pre))
	if err != nil {
		return FrameResult{}, fmt.Errorf("zero-shot encoder: %w", err)
	}
	var embedding []float32
	for _, o := range outs {
		if len(o.Data) == s.bank.Dim {
			embedding = append([]float32(nil), o.Data...)
			break
		}
	}
	if embedding == nil {
		return FrameResult{}, fmt.Errorf("zero-shot encoder: no %d-dim output", s.bank.Dim)
	}
	return FrameResult{Labels: s.classify(embedding)}, nil
}

func (s *ZeroShotScorer) classify(embedding []float32) []ScoredLabel {
	models.Normalize(embedding)
	var labels []ScoredLabel
	for _, cat := range s.bank.Categories {
		logits := make([]float64, len(cat.Prompts))
		for i, p := range cat.Prompts {
			logits[i] = logitScale * dot(embedding, p.Embedding)
		}
		for i, prob := range Softmax(logits) {
			if prob > s.threshold {
				labels = append(labels, ScoredLabel{Label: cat.Prompts[i].Label, Confidence: prob, Source: tagging.SourceZeroShot})
			}
		}
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Confidence > labels[j].Confidence })
	if s.topK > 0 && len(labels) > s.topK {
		labels = labels[:s.topK]
	}
	return labels
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
