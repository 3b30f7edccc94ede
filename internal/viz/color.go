package viz

import (
	"fmt"
	"math"
)

// Color is an sRGB color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalText lets colors travel as hex strings in JSON.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// Diverging scale anchors and the color of a missing value.
var (
	ColorNegative = Color{255, 0, 0}
	ColorNeutral  = Color{245, 245, 220}
	ColorPositive = Color{0, 128, 0}
	ColorMissing  = Color{189, 189, 189}
)

// ColorScale maps a 24h change onto red → beige → green with zero at the
// midpoint. The domain is symmetric: [-Bound, +Bound].
type ColorScale struct {
	Bound float64 `json:"bound"`
}

// NewDivergingScale sizes the domain to the largest absolute value.
func NewDivergingScale(values []float64) ColorScale {
	var bound float64
	for _, v := range values {
		if a := math.Abs(v); a > bound && !math.IsInf(a, 0) {
			bound = a
		}
	}
	return ColorScale{Bound: bound}
}

// Position returns v's place on the scale in [0, 1], 0.5 being zero change.
func (s ColorScale) Position(v float64) float64 {
	if s.Bound == 0 || math.IsNaN(v) {
		return 0.5
	}
	t := 0.5 + 0.5*v/s.Bound
	return math.Max(0, math.Min(1, t))
}

// At returns the color for v; nil or NaN gets ColorMissing.
func (s ColorScale) At(v *float64) Color {
	if v == nil || math.IsNaN(*v) {
		return ColorMissing
	}
	t := s.Position(*v)
	if t < 0.5 {
		return lerp(ColorNegative, ColorNeutral, t/0.5)
	}
	return lerp(ColorNeutral, ColorPositive, (t-0.5)/0.5)
}

func lerp(a, b Color, t float64) Color {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return Color{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B)}
}
