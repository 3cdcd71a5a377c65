package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTier1()
	c.normalizeTier2()
	c.normalizeResolver()
	c.normalizeFrames()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeAPI()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(orDefault(c.Paths.DataDir, defaultDataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.FramesDir, err = expandPath(orDefault(c.Paths.FramesDir, defaultFramesDir)); err != nil {
		return fmt.Errorf("paths.frames_dir: %w", err)
	}
	if c.Paths.ModelsDir, err = expandPath(orDefault(c.Paths.ModelsDir, defaultModelsDir)); err != nil {
		return fmt.Errorf("paths.models_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTier1() {
	c.Tier1.RuntimeLibrary = strings.TrimSpace(c.Tier1.RuntimeLibrary)
	if c.Tier1.RuntimeLibrary == "" {
		if value, ok := os.LookupEnv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); ok {
			c.Tier1.RuntimeLibrary = strings.TrimSpace(value)
		}
	}
	if c.Tier1.RuntimeLibrary != "" {
		if expanded, err := expandPath(c.Tier1.RuntimeLibrary); err == nil {
			c.Tier1.RuntimeLibrary = expanded
		}
	}
	c.Tier1.NSFWModel = strings.TrimSpace(c.Tier1.NSFWModel)
	c.Tier1.TaggerModel = strings.TrimSpace(c.Tier1.TaggerModel)
	c.Tier1.TaggerLabels = strings.TrimSpace(c.Tier1.TaggerLabels)
	c.Tier1.DetectorModel = strings.TrimSpace(c.Tier1.DetectorModel)
	c.Tier1.ZeroShotModel = strings.TrimSpace(c.Tier1.ZeroShotModel)
	c.Tier1.ZeroShotPrompts = strings.TrimSpace(c.Tier1.ZeroShotPrompts)
	if c.Tier1.ZeroShotTopK <= 0 {
		c.Tier1.ZeroShotTopK = 10
	}
	if c.Tier1.MaxTags <= 0 {
		c.Tier1.MaxTags = 60
	}
	if c.Tier1.IntraOpThreads < 0 {
		c.Tier1.IntraOpThreads = 0
	}
}

func (c *Config) normalizeTier2() {
	c.Tier2.APIKey = strings.TrimSpace(c.Tier2.APIKey)
	if c.Tier2.APIKey == "" {
		if value, ok := os.LookupEnv("AUTOTAG_VISION_API_KEY"); ok {
			c.Tier2.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Tier2.APIKey = strings.TrimSpace(value)
		}
	}
	c.Tier2.BaseURL = orDefault(c.Tier2.BaseURL, defaultTier2BaseURL)
	c.Tier2.Model = strings.TrimSpace(c.Tier2.Model)
	c.Tier2.Referer = orDefault(c.Tier2.Referer, defaultTier2Referer)
	c.Tier2.Title = orDefault(c.Tier2.Title, defaultTier2Title)
	if c.Tier2.TimeoutSeconds <= 0 {
		c.Tier2.TimeoutSeconds = defaultTier2TimeoutSeconds
	}
	if c.Tier2.MaxFrames <= 0 {
		c.Tier2.MaxFrames = defaultTier2MaxFrames
	}
	if c.Tier2.MaxImageEdge <= 0 {
		c.Tier2.MaxImageEdge = defaultTier2MaxImageEdge
	}
}

func (c *Config) normalizeResolver() {
	if c.Resolver.CacheTTLSeconds <= 0 {
		c.Resolver.CacheTTLSeconds = defaultResolverCacheTTLSeconds
	}
	if c.Resolver.MaxSuggestions <= 0 {
		c.Resolver.MaxSuggestions = defaultResolverMaxSuggestions
	}
	if c.Resolver.SuggestionMinLength <= 0 {
		c.Resolver.SuggestionMinLength = defaultSuggestionMinLength
	}
}

func (c *Config) normalizeFrames() {
	c.Frames.FFmpegBinary = orDefault(c.Frames.FFmpegBinary, defaultFFmpegBinary)
	c.Frames.FFprobeBinary = orDefault(c.Frames.FFprobeBinary, defaultFFprobeBinary)
	if c.Frames.MinFrameBytes <= 0 {
		c.Frames.MinFrameBytes = defaultMinFrameBytes
	}
	if c.Frames.ScaleWidth <= 0 {
		c.Frames.ScaleWidth = defaultScaleWidth
	}
	if c.Frames.JPEGQuality <= 0 {
		c.Frames.JPEGQuality = defaultJPEGQuality
	}
	if c.Frames.MinFreeMiB < 0 {
		c.Frames.MinFreeMiB = 0
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Concurrency <= 0 {
		c.Workflow.Concurrency = 1
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = orDefault(c.API.Bind, defaultAPIBind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("AUTOTAG_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
