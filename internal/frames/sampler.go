package frames

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"autotag/internal/config"
	"autotag/internal/deps"
	"autotag/internal/logging"
	"autotag/internal/services"
	"autotag/internal/stage"
	"autotag/internal/tagging"
)

// Frame is one sampled still.
type Frame struct {
	Path      string
	Timestamp float64
}

// Set is the output of one Sample call. Dir is the scratch directory owned
// by the set; it is empty when the source file itself is the only frame.
type Set struct {
	Dir    string
	Frames []Frame
}

// Paths returns the frame file paths in order.
func (s *Set) Paths() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Frames))
	for i, f := range s.Frames {
		out[i] = f.Path
	}
	return out
}

// Cleanup removes the scratch directory. Source files are never touched.
func (s *Set) Cleanup() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// CommandRunner executes an external command and returns combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Sampler extracts frames using ffmpeg.
type Sampler struct {
	ffmpeg     string
	scratchDir string
	scaleWidth int
	quality    int
	minBytes   int64
	run        CommandRunner
	logger     *slog.Logger
}

// NewSampler builds a Sampler from configuration.
func NewSampler(cfg *config.Config, logger *slog.Logger) *Sampler {
	return &Sampler{
		ffmpeg:     cfg.Frames.FFmpegBinary,
		scratchDir: cfg.Paths.FramesDir,
		scaleWidth: cfg.Frames.ScaleWidth,
		quality:    cfg.Frames.JPEGQuality,
		minBytes:   cfg.Frames.MinFrameBytes,
		run:        execRunner,
		logger:     logging.NewComponentLogger(logger, "frames"),
	}
}

// WithRunner replaces the command runner. Used by tests.
func (s *Sampler) WithRunner(run CommandRunner) *Sampler {
	if run != nil {
		s.run = run
	}
	return s
}

// Sample produces the frames for one media file.
func (s *Sampler) Sample(ctx context.Context, path string, mediaType tagging.MediaType, duration float64) (*Set, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(services.ErrValidation, "frames", "sample", "empty media path", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "frames", "stat source", path, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "frames", "stat source", path+" is a directory", nil)
	}

	var timestamps []float64
	switch mediaType {
	case tagging.MediaImage:
		return &Set{Frames: []Frame{{Path: path, Timestamp: 0}}}, nil
	case tagging.MediaGIF:
		timestamps = GIFTimestamps(duration)
	case tagging.MediaVideo:
		timestamps = Timestamps(duration)
	default:
		return nil, services.Wrap(services.ErrValidation, "frames", "sample", fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}

	dir, err := s.makeScratchDir(ctx)
	if err != nil {
		return nil, err
	}
	set := &Set{Dir: dir}
	logger := logging.WithContext(ctx, s.logger)

	for i, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			_ = set.Cleanup()
			return nil, err
		}
		out := filepath.Join(dir, fmt.Sprintf("frame_%02d.jpg", i))
		if err := s.extract(ctx, path, ts, out); err != nil {
			logger.Debug("frame extraction failed",
				logging.Float64("timestamp", ts),
				logging.Error(err),
			)
			continue
		}
		if !s.usable(out) {
			logger.Debug("frame discarded below size floor",
				logging.Float64("timestamp", ts),
				logging.Int64("min_bytes", s.minBytes),
			)
			_ = os.Remove(out)
			continue
		}
		set.Frames = append(set.Frames, Frame{Path: out, Timestamp: ts})
	}

	if len(set.Frames) == 0 {
		_ = set.Cleanup()
		return nil, services.Wrap(services.ErrExternalTool, "frames", "sample",
			fmt.Sprintf("no usable frames from %d attempts", len(timestamps)), nil)
	}
	logger.Debug("frames sampled",
		logging.Int("requested", len(timestamps)),
		logging.Int("usable", len(set.Frames)),
	)
	return set, nil
}

func (s *Sampler) makeScratchDir(ctx context.Context) (string, error) {
	prefix := "item"
	if id, ok := services.MediaIDFromContext(ctx); ok {
		prefix = strconv.FormatInt(id, 10)
	}
	dir := filepath.Join(s.scratchDir, prefix+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "frames", "create scratch dir", dir, err)
	}
	return dir, nil
}

func (s *Sampler) extract(ctx context.Context, source string, ts float64, out string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
		"-i", source,
		"-frames:v", "1",
	}
	if s.scaleWidth > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", s.scaleWidth))
	}
	args = append(args, "-q:v", strconv.Itoa(s.quality), out)

	output, err := s.run(ctx, s.ffmpeg, args...)
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}

func (s *Sampler) usable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() >= s.minBytes
}

// HealthCheck reports whether the ffmpeg binary can be found.
func (s *Sampler) HealthCheck(context.Context) stage.Health {
	status := deps.CheckBinaries([]deps.Requirement{{Name: "ffmpeg", Command: s.ffmpeg}})[0]
	if !status.Available {
		return stage.Unhealthy("frames", status.Detail)
	}
	return stage.Healthy("frames")
}
