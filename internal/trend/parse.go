package trend

import (
	"regexp"
	"strconv"
	"strings"
)

// numberPattern matches the first signed decimal with either separator.
var numberPattern = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)?`)

// ParseLevel extracts the numeric level from a displayed value such as
// "12,34 m" or "7.5 m³". A decimal comma is read as a decimal point and the
// cubic glyph is ignored.
//
// The second result is false when the text holds no number ("Error", "---",
// ""). Such values are unparseable, never zero.
func ParseLevel(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	m := numberPattern.FindString(strings.ReplaceAll(raw, "³", ""))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
