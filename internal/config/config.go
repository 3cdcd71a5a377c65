package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	FramesDir string `toml:"frames_dir"`
	ModelsDir string `toml:"models_dir"`
}

// Tier1 contains local inference model files and aggregation thresholds.
type Tier1 struct {
	RuntimeLibrary  string `toml:"onnxruntime_library"`
	IntraOpThreads  int    `toml:"intra_op_threads"`
	NSFWModel       string `toml:"nsfw_model"`
	TaggerModel     string `toml:"tagger_model"`
	TaggerLabels    string `toml:"tagger_labels"`
	DetectorModel   string `toml:"detector_model"`
	ZeroShotModel   string `toml:"zero_shot_model"`
	ZeroShotPrompts string `toml:"zero_shot_prompts"`

	TaggerThreshold   float64 `toml:"tagger_threshold"`
	DetectorThreshold float64 `toml:"detector_threshold"`
	ZeroShotThreshold float64 `toml:"zero_shot_threshold"`
	ZeroShotTopK      int     `toml:"zero_shot_top_k"`

	MinConfidence         float64 `toml:"min_confidence"`
	RealMinConfidence     float64 `toml:"real_min_confidence"`
	MinFrequency          float64 `toml:"min_frequency"`
	HighConfidence        float64 `toml:"high_confidence"`
	ContentTypeConfidence float64 `toml:"content_type_confidence"`
	NSFWTagConfidence     float64 `toml:"nsfw_tag_confidence"`
	RealBoost             float64 `toml:"real_boost"`
	MaxTags               int     `toml:"max_tags"`
}

// Tier2 contains remote vision model settings.
type Tier2 struct {
	Enabled        bool    `toml:"enabled"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxFrames      int     `toml:"max_frames"`
	MaxImageEdge   int     `toml:"max_image_edge"`
	TagConfidence  float64 `toml:"tag_confidence"`
}

// Resolver contains vocabulary matching settings.
type Resolver struct {
	CacheTTLSeconds         int     `toml:"cache_ttl_seconds"`
	MaxSuggestions          int     `toml:"max_suggestions"`
	SuggestionMinConfidence float64 `toml:"suggestion_min_confidence"`
	SuggestionMinLength     int     `toml:"suggestion_min_length"`
}

// Frames contains frame extraction settings.
type Frames struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	MinFrameBytes int64  `toml:"min_frame_bytes"`
	ScaleWidth    int    `toml:"scale_width"`
	JPEGQuality   int    `toml:"jpeg_quality"`
	MinFreeMiB    int64  `toml:"min_free_mib"`
}

// Workflow contains configuration for the run loop timing.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	Concurrency        int `toml:"concurrency"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// API contains configuration for the optional HTTP control surface.
type API struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
	Token   string `toml:"token"`
}

// Config encapsulates all configuration values for autotag.
//
// Configuration sections by subsystem:
//   - Paths: data, log, frame scratch, and model directories
//   - Tier1: local model files and aggregation thresholds
//   - Tier2: optional remote vision model
//   - Resolver: vocabulary cache and suggestion limits
//   - Frames: ffmpeg/ffprobe binaries and frame filters
//   - Workflow: run loop polling intervals
//   - Logging: log format and level
//   - API: HTTP control surface
type Config struct {
	Paths    Paths    `toml:"paths"`
	Tier1    Tier1    `toml:"tier1"`
	Tier2    Tier2    `toml:"tier2"`
	Resolver Resolver `toml:"resolver"`
	Frames   Frames   `toml:"frames"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
	API      API      `toml:"api"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("autotag.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log, and frame scratch directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.FramesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database holding the queue, results, and library tables.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "autotag.db")
}

// LockPath returns the single-instance lock file for the run loop.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "autotag.lock")
}

// ModelPath resolves a model file name against the models directory.
func (c *Config) ModelPath(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.ModelsDir, name)
}

// Tier2Configured reports whether Tier 2 is enabled and credentialed.
func (c *Config) Tier2Configured() bool {
	return c.Tier2.Enabled && strings.TrimSpace(c.Tier2.APIKey) != "" && strings.TrimSpace(c.Tier2.Model) != ""
}

// Tier2Timeout returns the per-request timeout for the remote vision model.
func (c *Config) Tier2Timeout() time.Duration {
	return time.Duration(c.Tier2.TimeoutSeconds) * time.Second
}

// ResolverCacheTTL returns how long the vocabulary cache is trusted.
func (c *Config) ResolverCacheTTL() time.Duration {
	return time.Duration(c.Resolver.CacheTTLSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
