package trend

// Band groups a fill percentage for display.
type Band string

// Fill bands.
const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
	BandError  Band = "error"
)

// Band thresholds in percent of capacity.
const (
	highPercent   = 60
	mediumPercent = 30
)

// Level is a reading normalised against its tank capacity.
type Level struct {
	// Value is the parsed level in metres. Meaningful only when OK.
	Value float64 `json:"value"`

	// Percent is Value / capacity * 100. Meaningful only when OK.
	Percent float64 `json:"percent"`

	Band Band `json:"band"`
	OK   bool `json:"ok"`
}

// Fill parses raw and normalises it against capacity. A value that does not
// parse, or a non-positive capacity, yields BandError rather than 0 %.
func Fill(raw string, capacity float64) Level {
	v, ok := ParseLevel(raw)
	if !ok || capacity <= 0 {
		return Level{Band: BandError}
	}
	pct := v / capacity * 100
	return Level{Value: v, Percent: pct, Band: BandFor(pct), OK: true}
}

// BandFor returns the band of a percentage.
func BandFor(pct float64) Band {
	switch {
	case pct >= highPercent:
		return BandHigh
	case pct >= mediumPercent:
		return BandMedium
	default:
		return BandLow
	}
}
