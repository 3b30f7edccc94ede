package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/seenimoa/dtfscope/internal/dashboard"
	"github.com/seenimoa/dtfscope/internal/viz"
	"github.com/seenimoa/dtfscope/pkg/models"
	"github.com/seenimoa/dtfscope/pkg/utils"
	"github.com/seenimoa/dtfscope/web"
)

// ════════════════════════════════════════════════════════════════════
// Report Generator: orchestrates chart + template rendering
// ════════════════════════════════════════════════════════════════════

// ReportFormat specifies the output format.
type ReportFormat string

const (
	FormatHTML ReportFormat = "html"
	FormatPDF  ReportFormat = "pdf"
	FormatText ReportFormat = "text"
)

// FormatFromPath infers the output format from a file extension.
// Unknown extensions produce HTML.
func FormatFromPath(path string) ReportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".txt", ".text":
		return FormatText
	default:
		return FormatHTML
	}
}

// DefaultTitle is the page heading.
const DefaultTitle = "🔍 DTF Scope"

// ReportConfig controls page rendering.
type ReportConfig struct {
	Title    string      // page heading (default: DefaultTitle)
	ChartCfg ChartConfig // chart rendering config

	// StaticPrefix, when set, makes the page interactive: the stylesheet and
	// script are linked under this URL prefix and the sidebar is a form.
	// When empty the stylesheet is inlined and the page is standalone.
	StaticPrefix string
	// Live enables the WebSocket refresh script. Requires StaticPrefix.
	Live bool
}

// DefaultReportConfig returns sensible defaults for a standalone report.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Title:    DefaultTitle,
		ChartCfg: DefaultChartConfig(),
	}
}

// ════════════════════════════════════════════════════════════════════
// Report Data: flattened for template rendering
// ════════════════════════════════════════════════════════════════════

// Tile is one summary metric, formatted for display.
type Tile struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Tiles formats the four summary metrics in display order.
func Tiles(m models.MetricsSummary) []Tile {
	return []Tile{
		{Key: "total_tokens", Label: "Number of Tokens", Value: utils.FormatCount(m.TotalTokens)},
		{Key: "total_market_cap", Label: "Total Market Cap", Value: utils.FormatUSD(m.TotalMarketCap)},
		{Key: "total_volume", Label: "24h Volume", Value: utils.FormatUSD(m.TotalVolume)},
		{Key: "avg_24h_change", Label: "Avg 24h Change", Value: utils.FormatPercent(m.Avg24hChange)},
	}
}

// PageData is the template model passed to PageTemplate.
type PageData struct {
	Title        string
	InlineCSS    template.CSS
	StaticPrefix string
	Interactive  bool
	Live         bool

	Search       string
	CategoryName string
	Options      []Option

	Message      string
	MessageClass string // CSS class: error, warning
	Rendered     bool

	Tiles  []Tile
	Charts []ChartPanel

	ShowHeadlines    bool
	Headlines        []HeadlineRow
	HeadlinesMessage string

	GeneratedAt string
}

// Option is one dropdown entry.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// ChartPanel is one rendered chart with its status.
type ChartPanel struct {
	Kind    string
	SVG     template.HTML
	Status  dashboard.PanelStatus
	Message string
}

// HeadlineRow is a flattened headline for template rendering.
type HeadlineRow struct {
	Title     string
	Link      string
	Source    string
	Summary   string
	Published string
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

var pageTmpl = template.Must(template.New("page").Parse(PageTemplate))

// GenerateHTML renders the dashboard page for a view.
func GenerateHTML(v *dashboard.View, cfg ReportConfig) (string, error) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, v, cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteHTML renders the dashboard page for a view to w.
func WriteHTML(w io.Writer, v *dashboard.View, cfg ReportConfig) error {
	if v == nil {
		return fmt.Errorf("view is nil")
	}
	if err := pageTmpl.Execute(w, buildPageData(v, cfg)); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}
	return nil
}

// ChartSVG renders one chart of a view. Anything other than a ready panel
// of a rendered view yields the no-data placeholder carrying the reason.
func ChartSVG(v *dashboard.View, kind viz.Kind, cfg ChartConfig) string {
	if v == nil {
		return NoDataChart(cfg, "No data available")
	}
	if v.State != dashboard.StateRendered {
		msg := v.Message
		if msg == "" {
			msg = "No data available"
		}
		return NoDataChart(cfg, msg)
	}
	if p, ok := v.Panel(string(kind)); ok && p.Status != dashboard.PanelReady {
		return NoDataChart(cfg, p.Message)
	}

	switch kind {
	case viz.KindTreemap:
		return TreemapChart(v.Treemap, cfg)
	case viz.KindHistogram:
		return HistogramChart(v.Histogram, cfg)
	case viz.KindScatter:
		return ScatterChart(v.Scatter, cfg)
	default:
		return NoDataChart(cfg, "Unknown chart "+string(kind))
	}
}

// ════════════════════════════════════════════════════════════════════
// Internal: build template data
// ════════════════════════════════════════════════════════════════════

func buildPageData(v *dashboard.View, cfg ReportConfig) PageData {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.ChartCfg.Width == 0 {
		cfg.ChartCfg = DefaultChartConfig()
	}

	d := PageData{
		Title:        cfg.Title,
		StaticPrefix: strings.TrimSuffix(cfg.StaticPrefix, "/"),
		Interactive:  cfg.StaticPrefix != "",
		Live:         cfg.Live && cfg.StaticPrefix != "",
		Search:       v.Request.Search,
		CategoryName: v.CategoryName(),
		Message:      v.Message,
		Rendered:     v.State == dashboard.StateRendered,
		GeneratedAt:  ReportTimestamp(v.RenderedAt),
	}
	if !d.Interactive {
		d.InlineCSS = template.CSS(web.StyleCSS())
	}

	switch v.State {
	case dashboard.StateError:
		d.MessageClass = "error"
	case dashboard.StateWarning:
		d.MessageClass = "warning"
	}

	for _, c := range v.Matches {
		d.Options = append(d.Options, Option{
			Value:    c.Name,
			Label:    c.Name,
			Selected: c.Name == d.CategoryName,
		})
	}

	if !d.Rendered {
		return d
	}

	d.Tiles = Tiles(v.Metrics)
	for _, kind := range viz.Kinds() {
		panel := ChartPanel{Kind: string(kind), Status: dashboard.PanelReady}
		if p, ok := v.Panel(string(kind)); ok {
			panel.Status = p.Status
			panel.Message = p.Message
		}
		panel.SVG = template.HTML(ChartSVG(v, kind, cfg.ChartCfg))
		d.Charts = append(d.Charts, panel)
	}

	if p, ok := v.Panel(dashboard.PanelHeadlines); ok {
		d.ShowHeadlines = true
		d.HeadlinesMessage = p.Message
		d.Headlines = headlineRows(v.Headlines)
	}
	return d
}

func headlineRows(items []models.Headline) []HeadlineRow {
	rows := make([]HeadlineRow, 0, len(items))
	for _, h := range items {
		row := HeadlineRow{
			Title:   h.Title,
			Link:    h.Link,
			Source:  h.Source,
			Summary: h.Summary,
		}
		if !h.PublishedAt.IsZero() {
			row.Published = ReportTimestamp(h.PublishedAt)
		}
		rows = append(rows, row)
	}
	return rows
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

// GenerateText renders a view for the terminal.
func GenerateText(v *dashboard.View) string {
	var sb strings.Builder
	line := strings.Repeat("═", 64)
	thinLine := strings.Repeat("─", 64)

	sb.WriteString("\n" + line + "\n")
	if v.Category != nil {
		sb.WriteString(fmt.Sprintf("  📊 %s Overview\n", v.Category.Name))
	} else {
		sb.WriteString("  " + DefaultTitle + "\n")
	}
	sb.WriteString(fmt.Sprintf("  Search: %q | Rendered: %s\n", v.Request.Search, ReportTimestamp(v.RenderedAt)))
	sb.WriteString(line + "\n")

	if v.State != dashboard.StateRendered {
		sb.WriteString(fmt.Sprintf("\n  [%s] %s\n\n", strings.ToUpper(string(v.State)), v.Message))
		return sb.String()
	}

	sb.WriteString("\n")
	for _, t := range Tiles(v.Metrics) {
		sb.WriteString(fmt.Sprintf("  %-20s %s\n", t.Label, t.Value))
	}
	sb.WriteString(thinLine + "\n")

	sb.WriteString("\n  ■ PERFORMANCE ANALYSIS\n")
	for _, p := range v.Panels {
		if p.Name == dashboard.PanelHeadlines {
			continue
		}
		sb.WriteString(fmt.Sprintf("    %-10s %-8s %s\n", p.Name, p.Status, p.Message))
	}
	sb.WriteString(thinLine + "\n")

	if v.Treemap != nil {
		sb.WriteString("\n  ■ LARGEST ASSETS BY MARKET CAP\n")
		for i, leaf := range v.Treemap.Leaves {
			if i == 10 {
				sb.WriteString(fmt.Sprintf("    … and %d more\n", len(v.Treemap.Leaves)-10))
				break
			}
			change := "n/a"
			if leaf.Change != nil {
				change = utils.FormatPct(*leaf.Change)
			}
			sb.WriteString(fmt.Sprintf("    %-24s %-8s %18s %9s\n",
				truncate(leaf.Name, 24), strings.ToUpper(leaf.Symbol), utils.FormatUSD(leaf.MarketCap), change))
		}
		sb.WriteString(thinLine + "\n")
	}

	if p, ok := v.Panel(dashboard.PanelHeadlines); ok {
		sb.WriteString("\n  ■ HEADLINES\n")
		if len(v.Headlines) == 0 {
			sb.WriteString("    " + p.Message + "\n")
		}
		for _, h := range v.Headlines {
			sb.WriteString(fmt.Sprintf("    • %s (%s)\n      %s\n", h.Title, h.Source, h.Link))
		}
		sb.WriteString(thinLine + "\n")
	}

	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ════════════════════════════════════════════════════════════════════
// Utility: Timestamp
// ════════════════════════════════════════════════════════════════════

// ReportTimestamp formats t for page footers. The zero time renders as "".
func ReportTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("02 Jan 2006, 15:04 UTC")
}
