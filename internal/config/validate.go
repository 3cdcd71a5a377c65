package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTier1(); err != nil {
		return err
	}
	if err := c.validateTier2(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTier1() error {
	if err := ensureUnitMap(map[string]float64{
		"tier1.tagger_threshold":        c.Tier1.TaggerThreshold,
		"tier1.detector_threshold":      c.Tier1.DetectorThreshold,
		"tier1.zero_shot_threshold":     c.Tier1.ZeroShotThreshold,
		"tier1.min_confidence":          c.Tier1.MinConfidence,
		"tier1.real_min_confidence":     c.Tier1.RealMinConfidence,
		"tier1.min_frequency":           c.Tier1.MinFrequency,
		"tier1.high_confidence":         c.Tier1.HighConfidence,
		"tier1.content_type_confidence": c.Tier1.ContentTypeConfidence,
		"tier1.nsfw_tag_confidence":     c.Tier1.NSFWTagConfidence,
	}); err != nil {
		return err
	}
	if c.Tier1.RealBoost < 1 {
		return errors.New("tier1.real_boost must be >= 1")
	}
	return nil
}

func (c *Config) validateTier2() error {
	if !c.Tier2.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Tier2.Model) == "" {
		return errors.New("tier2.model must be set when tier2.enabled is true")
	}
	if c.Tier2.TagConfidence <= 0 || c.Tier2.TagConfidence > 1 {
		return errors.New("tier2.tag_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateResolver() error {
	if c.Resolver.SuggestionMinConfidence < 0 || c.Resolver.SuggestionMinConfidence > 1 {
		return errors.New("resolver.suggestion_min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func ensureUnitMap(values map[string]float64) error {
	for key, value := range values {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}
	return nil
}
