// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The frame sampler uses it to recover a media duration when the library row
// does not carry one.
package ffprobe
