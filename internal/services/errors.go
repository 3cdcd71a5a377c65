package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrUnavailable   = errors.New("capability unavailable")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails summarises a wrapped error for structured logs and persisted
// failure messages.
type ErrorDetails struct {
	Kind    string
	Hint    string
	Message string
}

// Details classifies err by its sentinel marker.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	d := ErrorDetails{Kind: "unknown", Hint: "check logs for details", Message: strings.TrimSpace(err.Error())}
	switch {
	case errors.Is(err, ErrConfiguration):
		d.Kind, d.Hint = "configuration", "review config.toml and model paths"
	case errors.Is(err, ErrValidation):
		d.Kind, d.Hint = "validation", "inspect the media file"
	case errors.Is(err, ErrNotFound):
		d.Kind, d.Hint = "not_found", "media may have been removed from the library"
	case errors.Is(err, ErrExternalTool):
		d.Kind, d.Hint = "external_tool", "verify ffmpeg and model runtime installation"
	case errors.Is(err, ErrTimeout):
		d.Kind, d.Hint = "timeout", "retry the item once the system is idle"
	case errors.Is(err, ErrUnavailable):
		d.Kind, d.Hint = "unavailable", "run autotag deps to see missing capabilities"
	case errors.Is(err, ErrTransient):
		d.Kind, d.Hint = "transient", "retry the item"
	}
	return d
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
