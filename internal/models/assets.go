package models

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"autotag/internal/config"
	"autotag/internal/textutil"
)

// Name identifies one Tier 1 asset.
type Name string

const (
	NSFW            Name = "nsfw"
	Tagger          Name = "tagger"
	TaggerLabels    Name = "tagger_labels"
	Detector        Name = "detector"
	ZeroShot        Name = "zero_shot"
	ZeroShotPrompts Name = "zero_shot_prompts"
)

// All lists every asset in a stable order.
var All = []Name{NSFW, Tagger, TaggerLabels, Detector, ZeroShot, ZeroShotPrompts}

// ratingCategory marks WD tagger rows that describe a rating rather than content.
const ratingCategory = 9

// TagLabel is one row of the descriptive tagger's label file.
type TagLabel struct {
	Name     string
	Category int
}

// IsRating reports whether the row is a rating pseudo-tag.
func (l TagLabel) IsRating() bool {
	return l.Category == ratingCategory
}

// AssetStatus describes one asset for diagnostics.
type AssetStatus struct {
	Name    Name
	Path    string
	Present bool
}

// Assets resolves model files under the configured models directory.
type Assets struct {
	files map[Name]string

	mu      sync.Mutex
	labels  []TagLabel
	prompts *PromptBank
}

// NewAssets builds an asset provider from configuration.
func NewAssets(cfg *config.Config) *Assets {
	return &Assets{files: map[Name]string{
		NSFW:            cfg.ModelPath(cfg.Tier1.NSFWModel),
		Tagger:          cfg.ModelPath(cfg.Tier1.TaggerModel),
		TaggerLabels:    cfg.ModelPath(cfg.Tier1.TaggerLabels),
		Detector:        cfg.ModelPath(cfg.Tier1.DetectorModel),
		ZeroShot:        cfg.ModelPath(cfg.Tier1.ZeroShotModel),
		ZeroShotPrompts: cfg.ModelPath(cfg.Tier1.ZeroShotPrompts),
	}}
}

// PathFor returns the file path for an asset and whether it exists.
func (a *Assets) PathFor(name Name) (string, bool) {
	path := a.files[name]
	if path == "" {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path, false
	}
	return path, true
}

// Inventory reports presence for every asset.
func (a *Assets) Inventory() []AssetStatus {
	out := make([]AssetStatus, 0, len(All))
	for _, name := range All {
		path, ok := a.PathFor(name)
		out = append(out, AssetStatus{Name: name, Path: path, Present: ok})
	}
	return out
}

// TagLabels returns the descriptive tagger's label names in output order.
func (a *Assets) TagLabels() ([]string, error) {
	vocab, err := a.TagVocabulary()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vocab))
	for i, l := range vocab {
		out[i] = l.Name
	}
	return out, nil
}

// TagVocabulary returns the parsed label file, loading it once.
func (a *Assets) TagVocabulary() ([]TagLabel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.labels != nil {
		return a.labels, nil
	}
	path, ok := a.PathFor(TaggerLabels)
	if !ok {
		return nil, fmt.Errorf("tagger labels %q: %w", path, os.ErrNotExist)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tagger labels: %w", err)
	}
	defer f.Close()
	labels, err := ParseTagLabels(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	a.labels = labels
	return labels, nil
}

// ParseTagLabels reads a label CSV. A header row naming a "name" column is
// honoured; otherwise the first column is the label. An optional "category"
// column is kept so rating rows can be skipped.
func ParseTagLabels(r io.Reader) ([]TagLabel, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("labels file is empty")
	}

	nameCol, categoryCol := 0, -1
	start := 0
	for i, col := range records[0] {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name":
			nameCol = i
			start = 1
		case "category":
			categoryCol = i
		}
	}
	if start == 0 {
		categoryCol = -1
	}

	labels := make([]TagLabel, 0, len(records)-start)
	for _, rec := range records[start:] {
		if nameCol >= len(rec) {
			return nil, fmt.Errorf("row %d: missing name column", len(labels)+start+1)
		}
		label := TagLabel{Name: textutil.NormalizeLabel(rec[nameCol])}
		if categoryCol >= 0 && categoryCol < len(rec) {
			if n, err := strconv.Atoi(strings.TrimSpace(rec[categoryCol])); err == nil {
				label.Category = n
			}
		}
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		return nil, errors.New("labels file has no rows")
	}
	return labels, nil
}
