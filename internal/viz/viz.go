// Package viz derives chart-ready structures from a category's asset table:
// a market-cap treemap, a 24h change histogram and a volume vs market cap
// scatter. Rendering lives in internal/report.
package viz

import (
	"errors"
	"fmt"
	"math"

	"github.com/seenimoa/dtfscope/internal/analytics"
	"github.com/seenimoa/dtfscope/pkg/models"
	"github.com/seenimoa/dtfscope/pkg/utils"
)

// Kind names one of the dashboard charts.
type Kind string

const (
	KindTreemap   Kind = "treemap"
	KindHistogram Kind = "histogram"
	KindScatter   Kind = "scatter"
)

// Kinds lists every chart in display order.
func Kinds() []Kind { return []Kind{KindTreemap, KindHistogram, KindScatter} }

// ParseKind maps a URL or CLI token to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown chart kind %q", s)
}

// ErrNoData is returned when the filtered input leaves nothing to draw.
var ErrNoData = errors.New("viz: no data to plot")

// DefaultHistogramBins matches the dashboard's 24h change distribution.
const DefaultHistogramBins = 20

// ════════════════════════════════════════════════════════════════════
// Treemap
// ════════════════════════════════════════════════════════════════════

// TreemapLeaf is one asset tile under the category root.
type TreemapLeaf struct {
	Name      string   `json:"name"`
	Symbol    string   `json:"symbol"`
	MarketCap float64  `json:"market_cap"`
	Volume    *float64 `json:"total_volume"`
	Change    *float64 `json:"price_change_percentage_24h"`
	Color     Color    `json:"color"`
	Hover     string   `json:"hover"`
}

// Treemap is a two-level hierarchy: the category root and one leaf per asset.
type Treemap struct {
	Title  string        `json:"title"`
	Root   string        `json:"root"`
	Total  float64       `json:"total"`
	Leaves []TreemapLeaf `json:"leaves"` // market cap descending
	Scale  ColorScale    `json:"scale"`
}

// BuildTreemap sizes one leaf per asset with a positive market cap and colors
// it by 24h change. Assets without a usable market cap are left out.
func BuildTreemap(records []models.AssetRecord, categoryName string) (*Treemap, error) {
	rows := analytics.WithPositiveMarketCap(records)
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	scale := NewDivergingScale(analytics.PresentChanges(rows))
	tm := &Treemap{
		Title: "Market Cap Distribution in " + categoryName,
		Root:  categoryName,
		Scale: scale,
	}
	for _, r := range rows {
		mc := *r.MarketCap
		tm.Total += mc
		tm.Leaves = append(tm.Leaves, TreemapLeaf{
			Name:      r.Name,
			Symbol:    r.Symbol,
			MarketCap: mc,
			Volume:    r.TotalVolume,
			Change:    r.PriceChangePct24h,
			Color:     scale.At(r.PriceChangePct24h),
			Hover:     treemapHover(r),
		})
	}
	sortLeaves(tm.Leaves)
	return tm, nil
}

func treemapHover(r models.AssetRecord) string {
	return fmt.Sprintf("%s\nSymbol: %s\nMarket Cap: %s\n24h Volume: %s\n24h Change: %s",
		r.Name, r.Symbol, utils.FormatUSD(*r.MarketCap), usdOrNA(r.TotalVolume), pctOrNA(r.PriceChangePct24h))
}

// ════════════════════════════════════════════════════════════════════
// Histogram
// ════════════════════════════════════════════════════════════════════

// Bin is a half-open interval [Lo, Hi); the last bin also includes Hi.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram is the distribution of 24h percentage change.
type Histogram struct {
	Title    string `json:"title"`
	Bins     []Bin  `json:"bins"`
	N        int    `json:"n"`
	MaxCount int    `json:"max_count"`
}

// BuildHistogram buckets the non-null 24h changes into equal-width bins
// spanning their range. bins <= 0 means DefaultHistogramBins.
func BuildHistogram(records []models.AssetRecord, bins int) (*Histogram, error) {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	values := analytics.PresentChanges(records)
	if len(values) == 0 {
		return nil, ErrNoData
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)

	h := &Histogram{
		Title: "24h Price Change Distribution",
		Bins:  make([]Bin, bins),
		N:     len(values),
	}
	for i := range h.Bins {
		h.Bins[i].Lo = lo + float64(i)*width
		h.Bins[i].Hi = lo + float64(i+1)*width
	}
	h.Bins[bins-1].Hi = hi

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		h.Bins[idx].Count++
	}
	for _, b := range h.Bins {
		if b.Count > h.MaxCount {
			h.MaxCount = b.Count
		}
	}
	return h, nil
}

// ════════════════════════════════════════════════════════════════════
// Scatter
// ════════════════════════════════════════════════════════════════════

// Point is one asset on the log/log volume vs market cap plane.
type Point struct {
	Name   string   `json:"name"`
	X      float64  `json:"market_cap"`
	Y      float64  `json:"total_volume"`
	Size   float64  `json:"size"` // 0..1, area proportional to market cap
	Change *float64 `json:"price_change_percentage_24h"`
	Color  Color    `json:"color"`
	Hover  string   `json:"hover"`
}

// Scatter plots 24h volume against market cap on log axes.
type Scatter struct {
	Title  string     `json:"title"`
	Points []Point    `json:"points"`
	XAxis  LogAxis    `json:"x_axis"`
	YAxis  LogAxis    `json:"y_axis"`
	Scale  ColorScale `json:"scale"`
}

// LogAxis spans whole decades: [10^MinExp, 10^MaxExp].
type LogAxis struct {
	Label  string `json:"label"`
	MinExp int    `json:"min_exp"`
	MaxExp int    `json:"max_exp"`
}

// BuildScatter places every asset with positive market cap and volume.
func BuildScatter(records []models.AssetRecord) (*Scatter, error) {
	rows := analytics.WithPositiveMarketCapAndVolume(records)
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	scale := NewDivergingScale(analytics.PresentChanges(rows))
	var maxMC float64
	xs := make([]float64, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	for _, r := range rows {
		maxMC = math.Max(maxMC, *r.MarketCap)
		xs = append(xs, *r.MarketCap)
		ys = append(ys, *r.TotalVolume)
	}

	s := &Scatter{
		Title: "Volume vs Market Cap",
		XAxis: newLogAxis("market_cap", xs),
		YAxis: newLogAxis("total_volume", ys),
		Scale: scale,
	}
	for _, r := range rows {
		s.Points = append(s.Points, Point{
			Name:   r.Name,
			X:      *r.MarketCap,
			Y:      *r.TotalVolume,
			Size:   math.Sqrt(*r.MarketCap / maxMC),
			Change: r.PriceChangePct24h,
			Color:  scale.At(r.PriceChangePct24h),
			Hover: fmt.Sprintf("%s\nmarket_cap: %s\ntotal_volume: %s\nprice_change_percentage_24h: %s",
				r.Name, utils.FormatUSD(*r.MarketCap), utils.FormatUSD(*r.TotalVolume), pctOrNA(r.PriceChangePct24h)),
		})
	}
	return s, nil
}

func newLogAxis(label string, values []float64) LogAxis {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		l := math.Log10(v)
		lo = math.Min(lo, l)
		hi = math.Max(hi, l)
	}
	ax := LogAxis{Label: label, MinExp: int(math.Floor(lo)), MaxExp: int(math.Ceil(hi))}
	if ax.MaxExp <= ax.MinExp {
		ax.MaxExp = ax.MinExp + 1
	}
	return ax
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func usdOrNA(p *float64) string {
	if p == nil || math.IsNaN(*p) {
		return "n/a"
	}
	return utils.FormatUSD(*p)
}

func pctOrNA(p *float64) string {
	if p == nil || math.IsNaN(*p) {
		return "n/a"
	}
	return utils.FormatPercent(*p)
}
