// Package analytics derives category summaries from asset tables and
// provides the filters the dashboard applies before charting.
package analytics

import (
	"math"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/seenimoa/dtfscope/pkg/models"
)

// ComputeMetrics derives the four summary tiles from records. It never fails:
// missing and non-finite values are skipped, empty sums and means are zero, non-finite
// results are coerced to zero, and a panic yields the all-zero summary.
func ComputeMetrics(records []models.AssetRecord) (m models.MetricsSummary) {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("analytics: metrics computation panicked: %v", r)
			m = models.MetricsSummary{}
		}
	}()

	m.TotalTokens = len(records)

	var changeSum float64
	var changeCount int
	for i := range records {
		r := &records[i]
		if v, ok := present(r.MarketCap); ok {
			m.TotalMarketCap += v
		}
		if v, ok := present(r.TotalVolume); ok {
			m.TotalVolume += v
		}
		if v, ok := present(r.PriceChangePct24h); ok {
			changeSum += v
			changeCount++
		}
	}
	if changeCount > 0 {
		m.Avg24hChange = changeSum / float64(changeCount)
	}

	m.TotalMarketCap = finite(m.TotalMarketCap)
	m.TotalVolume = finite(m.TotalVolume)
	m.Avg24hChange = finite(m.Avg24hChange)
	return m
}

// present reports a usable value: non-nil and finite.
func present(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
