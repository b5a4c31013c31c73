package trend

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSparkline_Flat(t *testing.T) {
	cases := map[string][]float64{
		"empty":    nil,
		"single":   {4.2},
		"constant": {3, 3, 3, 3},
		"tiny":     {3, 3 + 1e-12},
	}

	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			p := Sparkline(values, DefaultFrame)
			if !p.Flat {
				t.Fatal("expected flat polyline")
			}
			if len(p.Points) != 2 {
				t.Fatalf("flat polyline has %d points, want 2", len(p.Points))
			}
			if !near(p.Points[0].X, 2) || !near(p.Points[1].X, 118) {
				t.Errorf("flat x = %v..%v, want 2..118", p.Points[0].X, p.Points[1].X)
			}
			for _, pt := range p.Points {
				if !near(pt.Y, 14) {
					t.Errorf("flat y = %v, want 14", pt.Y)
				}
			}
		})
	}
}

func TestSparkline_Scaling(t *testing.T) {
	p := Sparkline([]float64{2, 4, 3}, DefaultFrame)
	if p.Flat {
		t.Fatal("unexpected flat polyline")
	}
	want := []Point{
		{X: 2, Y: 26}, // min at the bottom padding edge
		{X: 60, Y: 2}, // max at the top padding edge
		{X: 118, Y: 14},
	}
	if len(p.Points) != len(want) {
		t.Fatalf("len(points) = %d, want %d", len(p.Points), len(want))
	}
	for i, w := range want {
		if !near(p.Points[i].X, w.X) || !near(p.Points[i].Y, w.Y) {
			t.Errorf("point %d = %+v, want %+v", i, p.Points[i], w)
		}
	}
}

func TestSparkline_StaysInsidePaddedFrame(t *testing.T) {
	values := []float64{5, -1, 12.5, 7, 7, 0.3, 9}
	f := Frame{Width: 200, Height: 40, Padding: 4}

	p := Sparkline(values, f)
	for i, pt := range p.Points {
		if pt.X < f.Padding-1e-9 || pt.X > f.Width-f.Padding+1e-9 {
			t.Errorf("point %d x=%v outside padded width", i, pt.X)
		}
		if pt.Y < f.Padding-1e-9 || pt.Y > f.Height-f.Padding+1e-9 {
			t.Errorf("point %d y=%v outside padded height", i, pt.Y)
		}
	}
}

func TestPolyline_Path(t *testing.T) {
	p := Polyline{Points: []Point{{2, 14}, {118, 14}}}
	if got, want := p.Path(), "M 2.00 14.00 L 118.00 14.00"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if (Polyline{}).Path() != "" {
		t.Error("empty Path() should be empty")
	}
}
