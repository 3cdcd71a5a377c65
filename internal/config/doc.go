// Package config loads, normalizes, and validates autotag configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and ONNXRUNTIME_SHARED_LIBRARY_PATH. The Config type
// centralizes every knob the run loop, tiers, and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
