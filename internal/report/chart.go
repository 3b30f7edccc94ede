// Package report renders dashboard views as SVG charts, a self-contained HTML
// page, plain text for terminals, and optional PDF exports.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/seenimoa/dtfscope/internal/viz"
	"github.com/seenimoa/dtfscope/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// SVG Chart Generator
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 800)
	Height       int    // SVG height in pixels (default: 420)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 30)
	MarginBottom int    // bottom margin (default: 50)
	MarginLeft   int    // left margin (default: 70)
	BgColor      string // background color (default: "#ffffff")
	GridColor    string // grid line color (default: "#e8e8e8")
	TextColor    string // axis label color (default: "#333333")
	FontSize     int    // axis label font size (default: 11)
	Title        string // chart title; empty uses the chart's own title
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       420,
		MarginTop:    40,
		MarginRight:  30,
		MarginBottom: 50,
		MarginLeft:   70,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// barColor is the fill of histogram bars.
const barColor = "#636efa"

// ════════════════════════════════════════════════════════════════════
// Treemap
// ════════════════════════════════════════════════════════════════════

// TreemapChart draws a squarified treemap: a root band labelled with the
// category and one tile per asset, area proportional to market cap and
// filled by 24h change. Each tile carries its hover text as <title>.
func TreemapChart(tm *viz.Treemap, cfg ChartConfig) string {
	if tm == nil || len(tm.Leaves) == 0 {
		return NoDataChart(cfg, "No data available")
	}

	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	if cfg.Title == "" {
		cfg.Title = tm.Title
	}
	cfg.MarginLeft, cfg.MarginRight, cfg.MarginBottom = 10, 10, 10

	px, py, pw, ph := cfg.plotArea()
	const rootH = 22

	values := make([]float64, len(tm.Leaves))
	for i, l := range tm.Leaves {
		values[i] = l.MarketCap
	}
	rects := viz.Squarify(values, viz.Rect{
		X: float64(px), Y: float64(py + rootH),
		W: float64(pw), H: float64(ph - rootH),
	})

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor))
	writeTitle(&sb, cfg)
	writeColorLegend(&sb, tm.Scale, cfg.Width-190, 10, 170)

	// Root band
	sb.WriteString(fmt.Sprintf(`<g><title>%s&#10;Market Cap: %s</title>`,
		escapeXML(tm.Root), utils.FormatUSD(tm.Total)))
	sb.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="%d" height="%d" fill="#e9e9e2"/>`,
		px, py, pw, rootH))
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="12" font-weight="bold" fill="%s">%s</text></g>`,
		px+6, py+15, cfg.TextColor, escapeXML(tm.Root)))

	for i, leaf := range tm.Leaves {
		r := rects[i]
		sb.WriteString(fmt.Sprintf(`<g class="leaf"><title>%s</title>`, escapeHover(leaf.Hover)))
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" stroke="#ffffff" stroke-width="1"/>`,
			r.X, r.Y, r.W, r.H, leaf.Color.Hex()))
		if r.W > 44 && r.H > 18 {
			label := fitLabel(leaf.Name, r.W)
			sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" font-size="%d" fill="%s" pointer-events="none">%s</text>`,
				r.X+4, r.Y+14, cfg.FontSize, textOn(leaf.Color), escapeXML(label)))
			if r.H > 34 && leaf.Change != nil {
				sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" font-size="%d" fill="%s" pointer-events="none">%s</text>`,
					r.X+4, r.Y+28, cfg.FontSize-1, textOn(leaf.Color), utils.FormatPct(*leaf.Change)))
			}
		}
		sb.WriteString("</g>")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Histogram
// ════════════════════════════════════════════════════════════════════

// HistogramChart draws the 24h change distribution as adjacent vertical bars.
func HistogramChart(h *viz.Histogram, cfg ChartConfig) string {
	if h == nil || h.N == 0 || len(h.Bins) == 0 {
		return NoDataChart(cfg, "No data available")
	}

	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	if cfg.Title == "" {
		cfg.Title = h.Title
	}

	px, py, pw, ph := cfg.plotArea()
	yMax := float64(h.MaxCount)
	if yMax < 1 {
		yMax = 1
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor))
	writeTitle(&sb, cfg)

	// Y-axis grid lines and labels (count)
	ticks := 5
	if h.MaxCount < ticks {
		ticks = int(yMax)
	}
	for i := 0; i <= ticks; i++ {
		count := yMax * float64(i) / float64(ticks)
		y := float64(py+ph) - count/yMax*float64(ph)
		sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%.0f</text>`,
			px-6, y+4, cfg.FontSize, cfg.TextColor, count))
	}

	n := len(h.Bins)
	bw := float64(pw) / float64(n)
	for i, b := range h.Bins {
		bh := float64(b.Count) / yMax * float64(ph)
		x := float64(px) + float64(i)*bw
		y := float64(py+ph) - bh
		sb.WriteString(fmt.Sprintf(`<g><title>%s to %s&#10;count: %d</title><rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/></g>`,
			utils.FormatPercent(b.Lo), utils.FormatPercent(b.Hi), b.Count,
			x+0.5, y, math.Max(bw-1, 0.5), bh, barColor))
	}

	// X-axis edge labels, about six of them
	step := int(math.Ceil(float64(n) / 6))
	for i := 0; i <= n; i += step {
		edge := h.Bins[len(h.Bins)-1].Hi
		if i < n {
			edge = h.Bins[i].Lo
		}
		x := float64(px) + float64(i)*bw
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%.1f%%</text>`,
			x, py+ph+16, cfg.FontSize, cfg.TextColor, edge))
	}

	sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#999"/>`, px, py+ph, px+pw, py+ph))
	writeAxisTitles(&sb, cfg, "price_change_percentage_24h", "count")

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Scatter (log/log)
// ════════════════════════════════════════════════════════════════════

// ScatterChart plots volume against market cap on decade log axes. Marker
// area follows market cap; fill follows 24h change.
func ScatterChart(s *viz.Scatter, cfg ChartConfig) string {
	if s == nil || len(s.Points) == 0 {
		return NoDataChart(cfg, "No data available")
	}

	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	if cfg.Title == "" {
		cfg.Title = s.Title
	}

	px, py, pw, ph := cfg.plotArea()
	xSpan := float64(s.XAxis.MaxExp - s.XAxis.MinExp)
	ySpan := float64(s.YAxis.MaxExp - s.YAxis.MinExp)
	xOf := func(v float64) float64 {
		return float64(px) + (math.Log10(v)-float64(s.XAxis.MinExp))/xSpan*float64(pw)
	}
	yOf := func(v float64) float64 {
		return float64(py+ph) - (math.Log10(v)-float64(s.YAxis.MinExp))/ySpan*float64(ph)
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor))
	writeTitle(&sb, cfg)
	writeColorLegend(&sb, s.Scale, cfg.Width-190, 10, 170)

	for e := s.XAxis.MinExp; e <= s.XAxis.MaxExp; e++ {
		x := xOf(math.Pow(10, float64(e)))
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="%s" stroke-dasharray="3,3"/>`,
			x, py, x, py+ph, cfg.GridColor))
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
			x, py+ph+16, cfg.FontSize, cfg.TextColor, utils.FormatUSDCompact(math.Pow(10, float64(e)))))
	}
	for e := s.YAxis.MinExp; e <= s.YAxis.MaxExp; e++ {
		y := yOf(math.Pow(10, float64(e)))
		sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-6, y+4, cfg.FontSize, cfg.TextColor, utils.FormatUSDCompact(math.Pow(10, float64(e)))))
	}

	// Largest markers first so small ones stay visible.
	order := make([]int, len(s.Points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Points[order[a]].Size > s.Points[order[b]].Size
	})

	const minR, maxR = 3.0, 28.0
	for _, i := range order {
		p := s.Points[i]
		r := minR + (maxR-minR)*p.Size
		sb.WriteString(fmt.Sprintf(`<g><title>%s</title><circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" fill-opacity="0.75" stroke="#444444" stroke-width="0.5"/></g>`,
			escapeHover(p.Hover), xOf(p.X), yOf(p.Y), r, p.Color.Hex()))
	}

	writeAxisTitles(&sb, cfg, s.XAxis.Label, s.YAxis.Label)
	sb.WriteString("</svg>")
	return sb.String()
}

// NoDataChart draws the placeholder shown in place of a chart that has
// nothing to plot or failed to build.
func NoDataChart(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	cfg.Height /= 2
	return emptySVG(cfg, msg)
}

// ════════════════════════════════════════════════════════════════════
// SVG Helpers
// ════════════════════════════════════════════════════════════════════

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" class="no-data"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14" font-family="sans-serif">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func writeTitle(sb *strings.Builder, cfg ChartConfig) {
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="24" font-size="15" font-weight="bold" fill="%s">%s</text>`,
		cfg.MarginLeft, cfg.TextColor, escapeXML(cfg.Title)))
}

func writeAxisTitles(sb *strings.Builder, cfg ChartConfig, x, y string) {
	px, py, pw, ph := cfg.plotArea()
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
		px+pw/2, cfg.Height-10, cfg.FontSize+1, cfg.TextColor, escapeXML(x)))
	sb.WriteString(fmt.Sprintf(`<text transform="translate(16,%d) rotate(-90)" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
		py+ph/2, cfg.FontSize+1, cfg.TextColor, escapeXML(y)))
}

// writeColorLegend draws the diverging scale as a gradient bar labelled
// with its bounds.
func writeColorLegend(sb *strings.Builder, scale viz.ColorScale, x, y, w int) {
	sb.WriteString(`<defs><linearGradient id="chg" x1="0" x2="1" y1="0" y2="0">`)
	sb.WriteString(fmt.Sprintf(`<stop offset="0" stop-color="%s"/><stop offset="0.5" stop-color="%s"/><stop offset="1" stop-color="%s"/>`,
		viz.ColorNegative.Hex(), viz.ColorNeutral.Hex(), viz.ColorPositive.Hex()))
	sb.WriteString(`</linearGradient></defs>`)
	sb.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="%d" height="8" fill="url(#chg)" stroke="#cccccc" stroke-width="0.5"/>`,
		x, y, w))
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="9" fill="#666" text-anchor="start">%s</text>`,
		x, y+19, utils.FormatPercent(-scale.Bound)))
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="9" fill="#666" text-anchor="middle">24h change</text>`,
		x+w/2, y+19))
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="9" fill="#666" text-anchor="end">%s</text>`,
		x+w, y+19, utils.FormatPercent(scale.Bound)))
}

// textOn picks black or white text for legibility on fill c.
func textOn(c viz.Color) string {
	lum := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	if lum > 140 {
		return "#222222"
	}
	return "#ffffff"
}

// fitLabel trims s to roughly fit width w at ~7px per character.
func fitLabel(s string, w float64) string {
	n := int((w - 8) / 7)
	r := []rune(s)
	if n < 2 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

// escapeHover escapes s and keeps its line breaks inside <title>.
func escapeHover(s string) string {
	return strings.ReplaceAll(escapeXML(s), "\n", "&#10;")
}
