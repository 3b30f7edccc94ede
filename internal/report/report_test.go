package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/dtfscope/internal/dashboard"
	"github.com/seenimoa/dtfscope/internal/viz"
	"github.com/seenimoa/dtfscope/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func sampleRecords() []models.AssetRecord {
	f := models.Float64
	return []models.AssetRecord{
		{ID: "chainlink", Name: "Chainlink", Symbol: "link", MarketCap: f(8e9), TotalVolume: f(4e8), PriceChangePct24h: f(2.5)},
		{ID: "uniswap", Name: "Uniswap", Symbol: "uni", MarketCap: f(5e9), TotalVolume: f(2e8), PriceChangePct24h: f(-1.25)},
		{ID: "aave", Name: "Aave <v3>", Symbol: "aave", MarketCap: f(2e9), TotalVolume: f(1e8), PriceChangePct24h: nil},
	}
}

func sampleView(t *testing.T) *dashboard.View {
	t.Helper()
	records := sampleRecords()
	tm, err := viz.BuildTreemap(records, "Decentralized Finance (DeFi)")
	if err != nil {
		t.Fatalf("treemap: %v", err)
	}
	hist, err := viz.BuildHistogram(records, 20)
	if err != nil {
		t.Fatalf("histogram: %v", err)
	}
	sc, err := viz.BuildScatter(records)
	if err != nil {
		t.Fatalf("scatter: %v", err)
	}
	cat := models.Category{ID: "decentralized-finance-defi", Name: "Decentralized Finance (DeFi)"}
	return &dashboard.View{
		State:    dashboard.StateRendered,
		Request:  dashboard.Request{Search: "defi"},
		Matches:  []models.Category{cat, {ID: "defi-index", Name: "DeFi Index"}},
		Category: &cat,
		Metrics: models.MetricsSummary{
			TotalTokens:    3,
			TotalMarketCap: 15e9,
			TotalVolume:    7e8,
			Avg24hChange:   0.625,
		},
		Treemap:   tm,
		Histogram: hist,
		Scatter:   sc,
		Panels: []dashboard.Panel{
			{Name: dashboard.PanelTreemap, Status: dashboard.PanelReady},
			{Name: dashboard.PanelHistogram, Status: dashboard.PanelReady},
			{Name: dashboard.PanelScatter, Status: dashboard.PanelReady},
		},
		RenderedAt: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
	}
}

func emptyView() *dashboard.View {
	cat := models.Category{ID: "empty", Name: "Empty Category"}
	return &dashboard.View{
		State:    dashboard.StateRendered,
		Matches:  []models.Category{cat},
		Category: &cat,
		Panels: []dashboard.Panel{
			{Name: dashboard.PanelTreemap, Status: dashboard.PanelNoData, Message: dashboard.MsgTreemapNoData},
			{Name: dashboard.PanelHistogram, Status: dashboard.PanelNoData, Message: dashboard.MsgHistogramNoData},
			{Name: dashboard.PanelScatter, Status: dashboard.PanelNoData, Message: dashboard.MsgScatterNoData},
		},
	}
}

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse HTML: %v", err)
	}
	return doc
}

// ════════════════════════════════════════════════════════════════════
// Chart Tests
// ════════════════════════════════════════════════════════════════════

func TestTreemapChart_Basic(t *testing.T) {
	v := sampleView(t)
	svg := TreemapChart(v.Treemap, DefaultChartConfig())

	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("not an SVG document")
	}
	if got := strings.Count(svg, `class="leaf"`); got != 3 {
		t.Errorf("leaf count = %d, want 3", got)
	}
	if !strings.Contains(svg, "Market Cap Distribution in Decentralized Finance (DeFi)") {
		t.Error("missing title")
	}
	if !strings.Contains(svg, "Aave &lt;v3&gt;") {
		t.Error("asset name not escaped")
	}
	if !strings.Contains(svg, "Symbol: link") {
		t.Error("missing hover symbol")
	}
	if !strings.Contains(svg, "&#10;") {
		t.Error("hover line breaks not preserved")
	}
}

func TestTreemapChart_Empty(t *testing.T) {
	svg := TreemapChart(nil, DefaultChartConfig())
	if !strings.Contains(svg, "No data available") {
		t.Error("expected placeholder")
	}
}

func TestHistogramChart_Basic(t *testing.T) {
	v := sampleView(t)
	svg := HistogramChart(v.Histogram, DefaultChartConfig())

	if got := strings.Count(svg, `fill="`+barColor+`"`); got != 20 {
		t.Errorf("bar count = %d, want 20", got)
	}
	if !strings.Contains(svg, "24h Price Change Distribution") {
		t.Error("missing title")
	}
	if !strings.Contains(svg, "price_change_percentage_24h") {
		t.Error("missing x axis title")
	}
}

func TestHistogramChart_Empty(t *testing.T) {
	svg := HistogramChart(&viz.Histogram{}, DefaultChartConfig())
	if !strings.Contains(svg, "No data available") {
		t.Error("expected placeholder")
	}
}

func TestScatterChart_Basic(t *testing.T) {
	v := sampleView(t)
	svg := ScatterChart(v.Scatter, DefaultChartConfig())

	if got := strings.Count(svg, "<circle"); got != 3 {
		t.Errorf("circle count = %d, want 3", got)
	}
	for _, label := range []string{"market_cap", "total_volume", "$1B", "$10B"} {
		if !strings.Contains(svg, label) {
			t.Errorf("missing %q", label)
		}
	}
}

func TestScatterChart_LargestFirst(t *testing.T) {
	v := sampleView(t)
	svg := ScatterChart(v.Scatter, DefaultChartConfig())
	first := strings.Index(svg, "Chainlink")
	last := strings.Index(svg, "Aave")
	if first < 0 || last < 0 || first > last {
		t.Error("largest market cap should be drawn first")
	}
}

func TestNoDataChart(t *testing.T) {
	svg := NoDataChart(ChartConfig{}, dashboard.MsgScatterNoData)
	if !strings.Contains(svg, dashboard.MsgScatterNoData) {
		t.Error("missing message")
	}
	if !strings.Contains(svg, `height="210"`) {
		t.Error("placeholder should be half the default height")
	}
}

func TestChartSVG_PanelStatus(t *testing.T) {
	v := sampleView(t)
	v.Panels[1] = dashboard.Panel{Name: dashboard.PanelHistogram, Status: dashboard.PanelFailed, Message: dashboard.MsgHistogramFailed}

	if svg := ChartSVG(v, viz.KindTreemap, DefaultChartConfig()); !strings.Contains(svg, `class="leaf"`) {
		t.Error("ready treemap should render")
	}
	if svg := ChartSVG(v, viz.KindHistogram, DefaultChartConfig()); !strings.Contains(svg, dashboard.MsgHistogramFailed) {
		t.Error("failed histogram should show its message")
	}
}

func TestChartSVG_NotRendered(t *testing.T) {
	v := &dashboard.View{State: dashboard.StateError, Message: dashboard.MsgCatalogFailed}
	svg := ChartSVG(v, viz.KindScatter, DefaultChartConfig())
	if !strings.Contains(svg, dashboard.MsgCatalogFailed) {
		t.Error("expected the view message in the placeholder")
	}
	if svg := ChartSVG(nil, viz.KindScatter, DefaultChartConfig()); !strings.Contains(svg, "No data available") {
		t.Error("nil view should give placeholder")
	}
}

// ════════════════════════════════════════════════════════════════════
// HTML Tests
// ════════════════════════════════════════════════════════════════════

func TestGenerateHTML_Basic(t *testing.T) {
	html, err := GenerateHTML(sampleView(t), DefaultReportConfig())
	if err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}
	doc := parseHTML(t, html)

	if got := doc.Find("main h1").Text(); got != DefaultTitle {
		t.Errorf("title = %q", got)
	}
	if got := doc.Find("main h2").First().Text(); got != "📊 Decentralized Finance (DeFi) Overview" {
		t.Errorf("header = %q", got)
	}
	if got := doc.Find("main h3").First().Text(); got != "Performance Analysis" {
		t.Errorf("subheader = %q", got)
	}

	tiles := map[string]string{}
	doc.Find(".tile").Each(func(_ int, s *goquery.Selection) {
		tiles[s.Find(".label").Text()] = s.Find(".value").Text()
	})
	want := map[string]string{
		"Number of Tokens": "3",
		"Total Market Cap": "$15,000,000,000",
		"24h Volume":       "$700,000,000",
		"Avg 24h Change":   "0.63%",
	}
	for label, value := range want {
		if tiles[label] != value {
			t.Errorf("tile %q = %q, want %q", label, tiles[label], value)
		}
	}

	if got := doc.Find("section.chart").Length(); got != 3 {
		t.Errorf("chart panels = %d, want 3", got)
	}
	if got := doc.Find(`section.chart[data-kind="treemap"] svg`).Length(); got != 1 {
		t.Errorf("treemap svg count = %d", got)
	}
	if doc.Find("style").Length() != 1 {
		t.Error("standalone report should inline the stylesheet")
	}
	if doc.Find("script").Length() != 0 {
		t.Error("standalone report should not load scripts")
	}
	if doc.Find("form").Length() != 0 {
		t.Error("standalone report should not have a form")
	}
}

func TestGenerateHTML_EmptyCategory(t *testing.T) {
	html, err := GenerateHTML(emptyView(), DefaultReportConfig())
	if err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}
	doc := parseHTML(t, html)

	doc.Find(".tile .value").Each(func(i int, s *goquery.Selection) {
		switch v := s.Text(); v {
		case "0", "$0", "0.00%":
		default:
			t.Errorf("tile %d = %q, want zero", i, v)
		}
	})
	if got := doc.Find("svg.no-data").Length(); got != 3 {
		t.Errorf("no-data placeholders = %d, want 3", got)
	}
	if !strings.Contains(html, dashboard.MsgTreemapNoData) {
		t.Error("missing treemap message")
	}
}

func TestGenerateHTML_Warning(t *testing.T) {
	v := &dashboard.View{
		State:   dashboard.StateWarning,
		Request: dashboard.Request{Search: "zzz"},
		Message: dashboard.MsgNoMatch,
		Err:     dashboard.ErrNoMatch,
	}
	cfg := DefaultReportConfig()
	cfg.StaticPrefix = "/static"

	html, err := GenerateHTML(v, cfg)
	if err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}
	doc := parseHTML(t, html)

	if got := doc.Find(".alert.warning").Text(); got != dashboard.MsgNoMatch {
		t.Errorf("alert = %q", got)
	}
	if doc.Find(".tile").Length() != 0 {
		t.Error("no tiles expected for a warning")
	}
	if v, _ := doc.Find("input#search").Attr("value"); v != "zzz" {
		t.Errorf("search value = %q", v)
	}
	if doc.Find("select#category").Length() != 0 {
		t.Error("no dropdown without matches")
	}
}

func TestGenerateHTML_Interactive(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.StaticPrefix = "/static/"
	cfg.Live = true

	html, err := GenerateHTML(sampleView(t), cfg)
	if err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}
	doc := parseHTML(t, html)

	if href, _ := doc.Find(`link[rel="stylesheet"]`).Attr("href"); href != "/static/style.css" {
		t.Errorf("stylesheet href = %q", href)
	}
	if src, _ := doc.Find("script").Attr("src"); src != "/static/app.js" {
		t.Errorf("script src = %q", src)
	}
	if doc.Find("#search").AttrOr("placeholder", "") != "e.g., defi, nft, governance" {
		t.Error("missing search placeholder")
	}
	opts := doc.Find("select#category option")
	if opts.Length() != 2 {
		t.Fatalf("options = %d, want 2", opts.Length())
	}
	if sel := doc.Find("select#category option[selected]").Text(); sel != "Decentralized Finance (DeFi)" {
		t.Errorf("selected = %q", sel)
	}
	main := doc.Find("main")
	if main.AttrOr("data-live", "") != "1" || main.AttrOr("data-search", "") != "defi" {
		t.Error("missing live data attributes")
	}
	if doc.Find("aside h2").Text() != "Category Selection" {
		t.Error("missing sidebar heading")
	}
}

func TestGenerateHTML_Headlines(t *testing.T) {
	v := sampleView(t)
	v.Panels = append(v.Panels, dashboard.Panel{Name: dashboard.PanelHeadlines, Status: dashboard.PanelReady})
	v.Headlines = []models.Headline{{
		Source:      "Chain Wire",
		Title:       "DeFi lending climbs",
		Link:        "https://chainwire.example/a",
		PublishedAt: time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC),
	}}

	html, err := GenerateHTML(v, DefaultReportConfig())
	if err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}
	doc := parseHTML(t, html)
	link := doc.Find(".headlines a")
	if link.Text() != "DeFi lending climbs" || link.AttrOr("href", "") != "https://chainwire.example/a" {
		t.Error("headline not rendered")
	}
	if !strings.Contains(doc.Find(".headlines .meta").Text(), "17 Oct 2026, 08:00 UTC") {
		t.Error("missing published time")
	}
}

func TestGenerateHTML_HeadlinesNoData(t *testing.T) {
	v := sampleView(t)
	v.Panels = append(v.Panels, dashboard.Panel{Name: dashboard.PanelHeadlines, Status: dashboard.PanelNoData, Message: dashboard.MsgHeadlinesNoData})
	html, err := GenerateHTML(v, DefaultReportConfig())
	if err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}
	if !strings.Contains(html, dashboard.MsgHeadlinesNoData) {
		t.Error("missing headlines message")
	}
}

func TestGenerateHTML_NilView(t *testing.T) {
	if _, err := GenerateHTML(nil, DefaultReportConfig()); err == nil {
		t.Error("expected error for nil view")
	}
}

func TestTiles(t *testing.T) {
	tiles := Tiles(models.MetricsSummary{TotalTokens: 1234, TotalMarketCap: 1.5e6, TotalVolume: 42, Avg24hChange: -3})
	want := []string{"1,234", "$1,500,000", "$42", "-3.00%"}
	if len(tiles) != 4 {
		t.Fatalf("tiles = %d", len(tiles))
	}
	for i, w := range want {
		if tiles[i].Value != w {
			t.Errorf("tile %s = %q, want %q", tiles[i].Key, tiles[i].Value, w)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Text Tests
// ════════════════════════════════════════════════════════════════════

func TestGenerateText_Basic(t *testing.T) {
	text := GenerateText(sampleView(t))
	for _, want := range []string{
		"📊 Decentralized Finance (DeFi) Overview",
		"Number of Tokens",
		"$15,000,000,000",
		"PERFORMANCE ANALYSIS",
		"treemap",
		"Chainlink",
		"LINK",
		"+2.50%",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q", want)
		}
	}
}

func TestGenerateText_Error(t *testing.T) {
	v := &dashboard.View{
		State:   dashboard.StateError,
		Message: "Error fetching category data: boom",
		Err:     errors.New("boom"),
	}
	text := GenerateText(v)
	if !strings.Contains(text, "[ERROR] Error fetching category data: boom") {
		t.Errorf("unexpected text:\n%s", text)
	}
}

// ════════════════════════════════════════════════════════════════════
// PDF / File Tests
// ════════════════════════════════════════════════════════════════════

func TestGeneratePDF_NoOutputPath(t *testing.T) {
	if _, err := GeneratePDF(context.Background(), "<html></html>", PDFConfig{}); err == nil {
		t.Error("expected error for empty output path")
	}
}

func TestGeneratePDF_HTMLFallback(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultPDFConfig()
	cfg.Engine = EngineNone
	cfg.OutputPath = filepath.Join(tmpDir, "nested", "report.pdf")

	html := "<html><body>Test Report</body></html>"
	written, err := GeneratePDF(context.Background(), html, cfg)
	if err != nil {
		t.Fatalf("GeneratePDF fallback failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "nested", "report.html"); written != want {
		t.Errorf("written = %q, want %q", written, want)
	}
	data, err := os.ReadFile(written)
	if err != nil {
		t.Fatalf("reading fallback file: %v", err)
	}
	if string(data) != html {
		t.Error("fallback HTML content mismatch")
	}
}

func TestGeneratePDF_UnknownEngine(t *testing.T) {
	_, err := GeneratePDF(context.Background(), "x", PDFConfig{Engine: "prince", OutputPath: "x.pdf"})
	if err == nil {
		t.Error("expected unsupported engine error")
	}
}

func TestDefaultPDFConfig(t *testing.T) {
	cfg := DefaultPDFConfig()
	if cfg.PageSize != "A4" || cfg.Orientation != "landscape" || cfg.Margin != "10mm" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]ReportFormat{
		"out.pdf":       FormatPDF,
		"OUT.PDF":       FormatPDF,
		"out.txt":       FormatText,
		"out.html":      FormatHTML,
		"out":           FormatHTML,
		"dir/out.other": FormatHTML,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestReportTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 7, 0, 0, time.FixedZone("IST", 5*3600+1800))
	if got := ReportTimestamp(ts); got != "05 Mar 2026, 08:37 UTC" {
		t.Errorf("ReportTimestamp = %q", got)
	}
	if ReportTimestamp(time.Time{}) != "" {
		t.Error("zero time should be empty")
	}
}

// ════════════════════════════════════════════════════════════════════
// Helper Tests
// ════════════════════════════════════════════════════════════════════

func TestEscapeXML(t *testing.T) {
	if got := escapeXML(`a<b>&"c"`); got != "a&lt;b&gt;&amp;&quot;c&quot;" {
		t.Errorf("escapeXML = %q", got)
	}
}

func TestPlotArea(t *testing.T) {
	x, y, w, h := DefaultChartConfig().plotArea()
	if x != 70 || y != 40 || w != 700 || h != 330 {
		t.Errorf("plotArea = %d,%d,%d,%d", x, y, w, h)
	}
}

func TestTextOn(t *testing.T) {
	if textOn(viz.ColorNeutral) != "#222222" {
		t.Error("dark text expected on beige")
	}
	if textOn(viz.ColorPositive) != "#ffffff" {
		t.Error("light text expected on green")
	}
}

func TestFitLabel(t *testing.T) {
	if got := fitLabel("Chainlink", 200); got != "Chainlink" {
		t.Errorf("fitLabel = %q", got)
	}
	if got := fitLabel("Chainlink", 50); got != "Chain…" {
		t.Errorf("fitLabel = %q", got)
	}
}
