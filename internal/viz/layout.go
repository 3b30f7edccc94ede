package viz

import (
	"math"
	"sort"
)

// Rect is an axis-aligned rectangle in drawing units.
type Rect struct {
	X, Y, W, H float64
}

func sortLeaves(leaves []TreemapLeaf) {
	sort.SliceStable(leaves, func(i, j int) bool {
		return leaves[i].MarketCap > leaves[j].MarketCap
	})
}

// Squarify lays out values (sorted descending, all > 0) inside bounds using
// the squarified treemap algorithm of Bruls, Huizing and van Wijk. The
// returned rectangles are in input order and their areas are proportional
// to the values.
func Squarify(values []float64, bounds Rect) []Rect {
	out := make([]Rect, len(values))
	if len(values) == 0 || bounds.W <= 0 || bounds.H <= 0 {
		return out
	}

	var total float64
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return out
	}
	scale := bounds.W * bounds.H / total
	areas := make([]float64, len(values))
	for i, v := range values {
		areas[i] = v * scale
	}

	free := bounds
	start := 0
	for start < len(areas) {
		side := math.Min(free.W, free.H)
		end := start + 1
		for end < len(areas) && worst(areas[start:end+1], side) <= worst(areas[start:end], side) {
			end++
		}
		free = placeRow(areas[start:end], free, out[start:end])
		start = end
	}
	return out
}

// worst is the highest aspect ratio in a row laid along a side of length w.
func worst(row []float64, w float64) float64 {
	var sum, lo, hi float64
	lo = math.Inf(1)
	for _, a := range row {
		sum += a
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	if sum == 0 || lo == 0 {
		return math.Inf(1)
	}
	s2, w2 := sum*sum, w*w
	return math.Max(w2*hi/s2, s2/(w2*lo))
}

// placeRow lays row along the shorter side of free and returns what is left.
func placeRow(row []float64, free Rect, out []Rect) Rect {
	var sum float64
	for _, a := range row {
		sum += a
	}

	if free.W >= free.H {
		// Column on the left edge.
		colW := sum / free.H
		y := free.Y
		for i, a := range row {
			h := a / colW
			out[i] = Rect{X: free.X, Y: y, W: colW, H: h}
			y += h
		}
		return Rect{X: free.X + colW, Y: free.Y, W: free.W - colW, H: free.H}
	}

	// Row along the top edge.
	rowH := sum / free.W
	x := free.X
	for i, a := range row {
		w := a / rowH
		out[i] = Rect{X: x, Y: free.Y, W: w, H: rowH}
		x += w
	}
	return Rect{X: free.X, Y: free.Y + rowH, W: free.W, H: free.H - rowH}
}
