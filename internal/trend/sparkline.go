package trend

import (
	"math"
	"strconv"
	"strings"
)

// rangeEpsilon is the value span below which a series is drawn flat.
const rangeEpsilon = 1e-9

// Frame is the drawing area of a sparkline.
type Frame struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Padding float64 `json:"padding"`
}

// DefaultFrame is the dashboard sparkline size.
var DefaultFrame = Frame{Width: 120, Height: 28, Padding: 2}

// Point is one vertex in frame coordinates, y growing downwards.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polyline is sparkline geometry. Flat is set when the series was too short
// or too constant to scale and a mid-height line was drawn instead.
type Polyline struct {
	Points []Point `json:"points"`
	Flat   bool    `json:"flat"`
}

// Sparkline maps values onto f. The minimum lands on the bottom padding
// edge and the maximum on the top one; x is spread evenly across the padded
// width.
func Sparkline(values []float64, f Frame) Polyline {
	if len(values) < 2 {
		return flatLine(f)
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < rangeEpsilon {
		return flatLine(f)
	}

	usableW := f.Width - 2*f.Padding
	usableH := f.Height - 2*f.Padding
	step := usableW / float64(len(values)-1)

	pts := make([]Point, len(values))
	for i, v := range values {
		t := (v - lo) / (hi - lo)
		pts[i] = Point{
			X: f.Padding + float64(i)*step,
			Y: f.Padding + (1-t)*usableH,
		}
	}
	return Polyline{Points: pts}
}

func flatLine(f Frame) Polyline {
	mid := f.Height / 2
	return Polyline{
		Points: []Point{{X: f.Padding, Y: mid}, {X: f.Width - f.Padding, Y: mid}},
		Flat:   true,
	}
}

// Path renders the polyline as SVG path data ("M x y L x y ...") with two
// decimals.
func (p Polyline) Path() string {
	var b strings.Builder
	for i, pt := range p.Points {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(strconv.FormatFloat(pt.X, 'f', 2, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(pt.Y, 'f', 2, 64))
	}
	return b.String()
}
