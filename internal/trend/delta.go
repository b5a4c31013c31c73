package trend

import "math"

// flatThreshold is the absolute delta, in metres, below which a level is
// considered unchanged.
const flatThreshold = 0.01

// Classification is the direction of a level over the lookback window.
type Classification string

// Trend classifications.
const (
	NoData  Classification = "no_data"
	Flat    Classification = "flat"
	Rising  Classification = "rising"
	Falling Classification = "falling"
)

// OrFlat collapses NoData into Flat for callers that show both the same way.
func (c Classification) OrFlat() Classification {
	if c == NoData {
		return Flat
	}
	return c
}

// Delta returns last minus first of chronologically ordered values. It is
// absent (false) with fewer than two values.
func Delta(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	return values[len(values)-1] - values[0], true
}

// Classify maps a delta to its direction. An absent delta is NoData.
func Classify(delta float64, ok bool) Classification {
	switch {
	case !ok:
		return NoData
	case math.Abs(delta) < flatThreshold:
		return Flat
	case delta > 0:
		return Rising
	default:
		return Falling
	}
}

// Recent returns the last n values, or all of them when there are fewer.
func Recent(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
