package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"autotag/internal/textutil"
)

// Prompt is one zero-shot class with its precomputed text embedding.
type Prompt struct {
	Label     string    `json:"label"`
	Text      string    `json:"text,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// PromptCategory groups mutually exclusive prompts (content type, setting,
// shot type and so on). Scores are softmaxed within a category.
type PromptCategory struct {
	Name    string   `json:"name"`
	Prompts []Prompt `json:"prompts"`
}

// PromptBank is the full set of zero-shot categories.
type PromptBank struct {
	Dim        int              `json:"dim"`
	Categories []PromptCategory `json:"categories"`
}

// PromptBank loads the zero-shot prompt embeddings once.
func (a *Assets) PromptBank() (*PromptBank, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prompts != nil {
		return a.prompts, nil
	}
	path, ok := a.PathFor(ZeroShotPrompts)
	if !ok {
		return nil, fmt.Errorf("zero-shot prompts %q: %w", path, os.ErrNotExist)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zero-shot prompts: %w", err)
	}
	defer f.Close()
	bank, err := ParsePromptBank(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	a.prompts = bank
	return bank, nil
}

// ParsePromptBank decodes and validates a prompt bank, normalising labels
// and scaling every embedding to unit length.
func ParsePromptBank(r io.Reader) (*PromptBank, error) {
	var bank PromptBank
	if err := json.NewDecoder(r).Decode(&bank); err != nil {
		return nil, err
	}
	if len(bank.Categories) == 0 {
		return nil, errors.New("prompt bank has no categories")
	}
	for ci := range bank.Categories {
		cat := &bank.Categories[ci]
		if len(cat.Prompts) < 2 {
			return nil, fmt.Errorf("category %q needs at least two prompts", cat.Name)
		}
		for pi := range cat.Prompts {
			p := &cat.Prompts[pi]
			p.Label = textutil.NormalizeLabel(p.Label)
			if p.Label == "" {
				return nil, fmt.Errorf("category %q prompt %d has no label", cat.Name, pi)
			}
			if bank.Dim == 0 {
				bank.Dim = len(p.Embedding)
			}
			if len(p.Embedding) == 0 || len(p.Embedding) != bank.Dim {
				return nil, fmt.Errorf("prompt %q embedding has %d dims, want %d", p.Label, len(p.Embedding), bank.Dim)
			}
			Normalize(p.Embedding)
		}
	}
	return &bank, nil
}

// Normalize scales v to unit length in place. A zero vector is left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
