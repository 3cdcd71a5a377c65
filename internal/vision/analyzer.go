package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"autotag/internal/config"
	"autotag/internal/logging"
	"autotag/internal/services/llm"
	"autotag/internal/stage"
	"autotag/internal/tagging"
	"autotag/internal/textutil"
)

var (
	// ErrRateLimited is returned for HTTP 429 responses.
	ErrRateLimited = errors.New("tier2 rate limited")
	// ErrInvalidCredentials is returned for HTTP 401 responses.
	ErrInvalidCredentials = errors.New("tier2 invalid credentials")
	// ErrAPI is returned for every other transport or HTTP failure.
	ErrAPI = errors.New("tier2 api error")
	// ErrDisabled is returned when Analyze is called on a disabled analyzer.
	ErrDisabled = errors.New("tier2 disabled")
)

// Completer sends a multimodal prompt. *llm.Client satisfies it.
type Completer interface {
	CompleteVision(ctx context.Context, systemPrompt, userText string, images []llm.Image) (string, error)
}

// Request is one Tier 2 call.
type Request struct {
	Frames       []string
	MediaType    tagging.MediaType
	Filename     string
	ExistingTags []string
}

// Analyzer calls the remote vision model.
type Analyzer struct {
	client    Completer
	enabled   bool
	maxFrames int
	maxEdge   int
	logger    *slog.Logger
}

// New builds an Analyzer. It is disabled unless Tier 2 is enabled and
// credentialed in configuration.
func New(cfg *config.Config, logger *slog.Logger) *Analyzer {
	a := &Analyzer{
		maxFrames: cfg.Tier2.MaxFrames,
		maxEdge:   cfg.Tier2.MaxImageEdge,
		logger:    logging.NewComponentLogger(logger, "tier2"),
	}
	if cfg.Tier2Configured() {
		a.client = llm.NewClient(llm.Config{
			APIKey:         cfg.Tier2.APIKey,
			BaseURL:        cfg.Tier2.BaseURL,
			Model:          cfg.Tier2.Model,
			Referer:        cfg.Tier2.Referer,
			Title:          cfg.Tier2.Title,
			TimeoutSeconds: cfg.Tier2.TimeoutSeconds,
		})
		a.enabled = true
	}
	return a
}

// NewWithClient builds an enabled Analyzer around an existing client.
func NewWithClient(client Completer, maxFrames, maxEdge int, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		client:    client,
		enabled:   client != nil,
		maxFrames: maxFrames,
		maxEdge:   maxEdge,
		logger:    logging.NewComponentLogger(logger, "tier2"),
	}
}

// Enabled reports whether Tier 2 should run.
func (a *Analyzer) Enabled() bool {
	return a != nil && a.enabled
}

// HealthCheck reports whether Tier 2 is configured. Disabled is ready: the
// pipeline runs Tier 1 only.
func (a *Analyzer) HealthCheck(context.Context) stage.Health {
	if !a.Enabled() {
		return stage.Health{Name: "tier2", Ready: true, Detail: "disabled"}
	}
	return stage.Healthy("tier2")
}

// Analyze sends up to maxFrames frames and returns the parsed answer with
// tags already present in ExistingTags removed.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Result, error) {
	if !a.Enabled() {
		return Result{}, ErrDisabled
	}
	frames := pickFrames(req.Frames, a.maxFrames)
	images := make([]llm.Image, 0, len(frames))
	logger := logging.WithContext(ctx, a.logger)
	for _, path := range frames {
		img, err := encodeFrame(path, a.maxEdge)
		if err != nil {
			logger.Debug("tier2 frame skipped", logging.String("frame", path), logging.Error(err))
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return Result{}, fmt.Errorf("%w: no frames could be encoded", ErrAPI)
	}

	gibberish := IsGibberishFilename(req.Filename)
	content, err := a.client.CompleteVision(ctx, systemPrompt, userPrompt(req, gibberish), images)
	if err != nil {
		return Result{}, classify(err)
	}
	result := ParseResponse(content)
	result.AdditionalTags = withoutExisting(result.AdditionalTags, req.ExistingTags)
	if result.IsEmpty() {
		logger.Debug("tier2 response had no usable fields", logging.Int("length", len(content)))
	}
	return result, nil
}

// classify maps client errors onto the Tier 2 error kinds.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrAPI, err)
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrAPI, err)
}

// ErrorKind names the Tier 2 error class for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrDisabled):
		return "disabled"
	default:
		return "api_error"
	}
}

// pickFrames selects up to n frames spread across the list.
func pickFrames(frames []string, n int) []string {
	if n <= 0 || len(frames) <= n {
		return frames
	}
	out := make([]string, 0, n)
	step := float64(len(frames)) / float64(n)
	for i := 0; i < n; i++ {
		out = append(out, frames[int(float64(i)*step+step/2)])
	}
	return out
}

func encodeFrame(path string, maxEdge int) (llm.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return llm.Image{}, err
	}
	if maxEdge > 0 {
		b := img.Bounds()
		if b.Dx() > maxEdge || b.Dy() > maxEdge {
			img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return llm.Image{}, err
	}
	return llm.Image{MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}

func withoutExisting(tags, existing []string) []string {
	if len(tags) == 0 {
		return nil
	}
	have := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		have[textutil.NormalizeLabel(e)] = struct{}{}
	}
	out := tags[:0]
	for _, t := range tags {
		if _, dup := have[t]; dup {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

const systemPrompt = `You describe media for a private library. Look at the frames and answer with a single JSON object and nothing else:
{"title": string or null, "description": string, "additional_tags": [string], "attributes": {"setting": string, "lighting": string, "mood": string, "shot_type": string, "subject_count": string, "quality": string}}
Keep the description to one or two sentences. Tags are short lowercase phrases.`

const maxPromptTags = 40

func userPrompt(req Request, gibberish bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Media type: %s\n", req.MediaType)
	name := filepath.Base(strings.TrimSpace(req.Filename))
	if name != "" && name != "." {
		fmt.Fprintf(&b, "Filename: %s\n", name)
	}
	if gibberish {
		b.WriteString("The filename carries no meaning; propose a short descriptive title.\n")
	} else {
		b.WriteString("The filename is meaningful; return null for title unless it is clearly wrong.\n")
	}
	if len(req.ExistingTags) > 0 {
		tags := req.ExistingTags
		if len(tags) > maxPromptTags {
			tags = tags[:maxPromptTags]
		}
		fmt.Fprintf(&b, "Already tagged: %s\n", strings.Join(tags, ", "))
		b.WriteString("Only return additional tags that are not in that list.\n")
	}
	return b.String()
}
