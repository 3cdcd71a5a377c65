package resolver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"autotag/internal/config"
	"autotag/internal/library"
	"autotag/internal/logging"
	"autotag/internal/services"
	"autotag/internal/stage"
	"autotag/internal/tagging"
	"autotag/internal/textutil"
)

const (
	synonymPenalty     = 0.95
	containmentPenalty = 0.8
	wordOverlapPenalty = 0.75
	maxLengthDelta     = 5

	noMatchReason = "no existing tag matches"
)

// Vocabulary is the tag store the resolver reads and extends.
// *library.Store satisfies it.
type Vocabulary interface {
	AllTags(ctx context.Context) ([]library.Tag, error)
	FindTagByName(ctx context.Context, name string) (*library.Tag, error)
	InsertTag(ctx context.Context, name string) (int64, error)
}

// Resolution is the outcome of resolving one item's proposals.
type Resolution struct {
	Matched     []tagging.MatchedTag
	Suggestions []tagging.Suggestion
}

// Resolver runs the matching cascade against a cached vocabulary.
type Resolver struct {
	vocab  Vocabulary
	logger *slog.Logger
	now    func() time.Time

	ttl            time.Duration
	maxSuggestions int
	minConfidence  float64
	minLength      int

	mu       sync.Mutex
	entries  []entry
	byName   map[string]int
	loadedAt time.Time
}

type entry struct {
	tag   library.Tag
	norm  string
	words []string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Resolver using the resolver section of cfg.
func New(cfg *config.Config, vocab Vocabulary, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		vocab:          vocab,
		logger:         logging.NewComponentLogger(logger, "resolver"),
		now:            time.Now,
		ttl:            cfg.ResolverCacheTTL(),
		maxSuggestions: cfg.Resolver.MaxSuggestions,
		minConfidence:  cfg.Resolver.SuggestionMinConfidence,
		minLength:      cfg.Resolver.SuggestionMinLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps proposals onto the vocabulary. Proposals are considered in
// descending confidence order; once a vocabulary tag has matched, later
// proposals resolving to the same tag are ignored.
func (r *Resolver) Resolve(ctx context.Context, proposals []tagging.Proposal) (Resolution, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return Resolution{}, err
	}

	ordered := slices.Clone(proposals)
	slices.SortStableFunc(ordered, func(a, b tagging.Proposal) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	var res Resolution
	matchedIDs := make(map[int64]struct{})
	suggested := make(map[string]struct{})
	for _, p := range ordered {
		label := textutil.NormalizeLabel(p.Label)
		if label == "" {
			continue
		}
		if m, ok := r.match(label, p.Confidence); ok {
			if _, dup := matchedIDs[m.ID]; dup {
				continue
			}
			matchedIDs[m.ID] = struct{}{}
			res.Matched = append(res.Matched, m)
			continue
		}
		if p.Confidence < r.minConfidence || textutil.RuneLen(label) < r.minLength {
			continue
		}
		if _, dup := suggested[label]; dup {
			continue
		}
		suggested[label] = struct{}{}
		res.Suggestions = append(res.Suggestions, tagging.Suggestion{
			Name:       label,
			Confidence: p.Confidence,
			Reason:     noMatchReason,
		})
	}

	slices.SortStableFunc(res.Suggestions, func(a, b tagging.Suggestion) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if r.maxSuggestions > 0 && len(res.Suggestions) > r.maxSuggestions {
		res.Suggestions = res.Suggestions[:r.maxSuggestions]
	}
	return res, nil
}

// match walks the cascade for one normalized label. Callers hold r.mu.
func (r *Resolver) match(label string, confidence float64) (tagging.MatchedTag, bool) {
	if idx, ok := r.byName[label]; ok {
		return r.matched(idx, confidence, tagging.MatchExact), true
	}
	if idx, ok := r.synonymMatch(label); ok {
		return r.matched(idx, confidence*synonymPenalty, tagging.MatchSynonym), true
	}
	if idx, penalty, ok := r.partialMatch(label); ok {
		return r.matched(idx, confidence*penalty, tagging.MatchPartial), true
	}
	return tagging.MatchedTag{}, false
}

func (r *Resolver) matched(idx int, confidence float64, kind tagging.MatchType) tagging.MatchedTag {
	e := r.entries[idx]
	return tagging.MatchedTag{
		ID:         e.tag.ID,
		Name:       e.tag.Name,
		Confidence: confidence,
		MatchType:  kind,
	}
}

func (r *Resolver) synonymMatch(label string) (int, bool) {
	canonical, ok := canonicalFor(label)
	if !ok {
		canonical, ok = scanSynonyms(label)
	}
	if !ok {
		return 0, false
	}
	for _, name := range groupMembers(canonical) {
		if name == label {
			continue
		}
		if idx, found := r.byName[name]; found {
			return idx, true
		}
	}
	return 0, false
}

// partialMatch tries containment first across the whole vocabulary, then
// word overlap, so the stronger partial strategy always wins.
func (r *Resolver) partialMatch(label string) (int, float64, bool) {
	labelLen := textutil.RuneLen(label)
	for i, e := range r.entries {
		if !strings.Contains(e.norm, label) && !strings.Contains(label, e.norm) {
			continue
		}
		if abs(textutil.RuneLen(e.norm)-labelLen) <= maxLengthDelta {
			return i, containmentPenalty, true
		}
	}

	words := textutil.Words(label)
	if len(words) == 0 {
		return 0, 0, false
	}
	for i, e := range r.entries {
		if len(e.words) == 0 {
			continue
		}
		if overlap(words, e.words) >= min(len(words), len(e.words)) {
			return i, wordOverlapPenalty, true
		}
	}
	return 0, 0, false
}

func overlap(a, b []string) int {
	n := 0
	for _, w := range a {
		if slices.Contains(b, w) {
			n++
		}
	}
	return n
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// CreateNewTags adds approved suggestions to the vocabulary. Names that
// already exist (case-insensitively) reuse the existing id. The returned ids
// are distinct and follow the order of names.
func (r *Resolver) CreateNewTags(ctx context.Context, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(names))
	seen := make(map[int64]struct{}, len(names))
	created := 0
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		var id int64
		existing, err := r.vocab.FindTagByName(ctx, name)
		if err != nil {
			return ids, services.Wrap(services.ErrTransient, "resolver", "find tag", fmt.Sprintf("Failed to look up tag %q", name), err)
		}
		if existing != nil {
			id = existing.ID
		} else {
			id, err = r.vocab.InsertTag(ctx, name)
			if err != nil {
				return ids, services.Wrap(services.ErrTransient, "resolver", "insert tag", fmt.Sprintf("Failed to create tag %q", name), err)
			}
			created++
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if created > 0 {
		r.Invalidate()
		r.logger.Info("vocabulary extended", logging.Int("created", created))
	}
	return ids, nil
}

// Invalidate forces the next Resolve to reload the vocabulary.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.loadedAt = time.Time{}
	r.mu.Unlock()
}

// VocabularySize returns the number of cached tags.
func (r *Resolver) VocabularySize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Resolver) ensureLoaded(ctx context.Context) error {
	r.mu.Lock()
	fresh := !r.loadedAt.IsZero() && len(r.entries) > 0 && r.now().Sub(r.loadedAt) < r.ttl
	r.mu.Unlock()
	if fresh {
		return nil
	}
	if r.vocab == nil {
		return services.Wrap(services.ErrConfiguration, "resolver", "load vocabulary", "No vocabulary store configured", errors.New("nil vocabulary"))
	}

	tags, err := r.vocab.AllTags(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "resolver", "load vocabulary", "Failed to load tag vocabulary", err)
	}
	slices.SortFunc(tags, func(a, b library.Tag) int { return cmp.Compare(a.ID, b.ID) })

	entries := make([]entry, 0, len(tags))
	byName := make(map[string]int, len(tags))
	for _, t := range tags {
		norm := textutil.NormalizeLabel(t.Name)
		if norm == "" {
			continue
		}
		if _, dup := byName[norm]; dup {
			continue
		}
		byName[norm] = len(entries)
		entries = append(entries, entry{tag: t, norm: norm, words: textutil.Words(norm)})
	}

	r.mu.Lock()
	r.entries = entries
	r.byName = byName
	r.loadedAt = r.now()
	r.mu.Unlock()
	r.logger.Debug("vocabulary loaded", logging.Int("tags", len(entries)))
	return nil
}

// HealthCheck loads the vocabulary if needed and reports its size.
func (r *Resolver) HealthCheck(ctx context.Context) stage.Health {
	if err := r.ensureLoaded(ctx); err != nil {
		return stage.Unhealthy("tier3", err.Error())
	}
	return stage.Health{Name: "tier3", Ready: true, Detail: fmt.Sprintf("%d vocabulary tags", r.VocabularySize())}
}
