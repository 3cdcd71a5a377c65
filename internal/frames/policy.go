package frames

const (
	// edgeFraction is trimmed from each end of a video before sampling.
	edgeFraction = 0.05
	// unknownStep spaces frames when the duration is unknown. Offsets past
	// the end fail extraction and are skipped.
	unknownStep = 1.0
)

// FrameCount returns how many frames to sample for a video of d seconds.
func FrameCount(d float64) int {
	switch {
	case d <= 10:
		return 2
	case d <= 60:
		return 4
	case d <= 300:
		return 6
	case d <= 900:
		return 8
	default:
		return 10
	}
}

// Timestamps returns FrameCount(d) timestamps centred in equal slices of the
// window [5%, 95%] of d. A non-positive duration means the length is unknown:
// the same count is taken from the start, unknownStep seconds apart.
func Timestamps(d float64) []float64 {
	n := FrameCount(d)
	if d <= 0 {
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(i) * unknownStep
		}
		return out
	}
	start := d * edgeFraction
	span := d * (1 - 2*edgeFraction)
	out := make([]float64, n)
	for i := range out {
		out[i] = start + span*(float64(i)+0.5)/float64(n)
	}
	return out
}

// GIFTimestamps returns the first frame and an early-middle frame.
func GIFTimestamps(d float64) []float64 {
	if d <= 0 {
		return []float64{0, 0.5}
	}
	return []float64{0, d * 0.3}
}
