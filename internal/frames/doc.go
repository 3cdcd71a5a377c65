// Package frames picks representative still frames from a media file and
// extracts them with ffmpeg.
//
// The frame count is a step function of duration and timestamps are spread
// evenly over the middle 90% of the file. Images are used as-is, GIFs yield a
// first frame plus an early-middle frame. Extracted frames smaller than the
// configured floor are discarded; a Set with zero frames is an error.
package frames
