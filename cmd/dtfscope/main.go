// DTF Scope: crypto category dashboard.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/seenimoa/dtfscope/api"
	"github.com/seenimoa/dtfscope/internal/config"
	"github.com/seenimoa/dtfscope/internal/dashboard"
	"github.com/seenimoa/dtfscope/internal/headlines"
	"github.com/seenimoa/dtfscope/internal/provider"
	"github.com/seenimoa/dtfscope/internal/providers"
	"github.com/seenimoa/dtfscope/internal/providers/coingecko"
	"github.com/seenimoa/dtfscope/internal/report"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dtfscope",
	Short: "DTF Scope — crypto category market dashboard",
	Long: `DTF Scope
Search the CoinGecko category catalog, pick a category and inspect its
market: token count, total market cap, 24h volume, average 24h change,
a market cap treemap, a 24h change histogram and a volume vs market cap
scatter, plus recent headlines.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotenv(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		setupLogging(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd)
}

// setupLogging configures logx from the logging section.
func setupLogging(lc config.LoggingConfig) {
	level := strings.ToLower(lc.Level)
	if level == "warn" {
		// logx has no warn level
		level = "error"
	}
	logx.MustSetup(logx.LogConf{
		ServiceName: "dtfscope",
		Mode:        "console",
		Encoding:    strings.ToLower(lc.Format),
		Level:       level,
	})
	logx.DisableStat()
}

// newMarket builds the CoinGecko provider and registers it.
func newMarket() (*coingecko.Provider, *provider.Registry, error) {
	reg := provider.NewRegistry()
	cg, err := providers.RegisterAllTo(reg, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("provider setup failed: %w", err)
	}
	return cg, reg, nil
}

// newHeadlines returns the feed source, or nil when no feeds are configured.
func newHeadlines() *headlines.Source {
	src := headlines.New(cfg.Headlines.Feeds, headlines.WithCacheTTL(cfg.Headlines.CacheTTL))
	if !src.Enabled() {
		return nil
	}
	return src
}

// newShell builds a dashboard shell for one-shot CLI renders.
func newShell() (*dashboard.Shell, error) {
	market, _, err := newMarket()
	if err != nil {
		return nil, err
	}
	opts := []dashboard.Option{
		dashboard.WithHistogramBins(cfg.Dashboard.HistogramBins),
		dashboard.WithRenderTimeout(cfg.Dashboard.RenderTimeout),
	}
	if src := newHeadlines(); src != nil {
		opts = append(opts, dashboard.WithHeadlines(src, cfg.Headlines.Limit))
	}
	return dashboard.NewShell(market, opts...), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// renderView runs one render and reports an error view as a command error.
func renderView(ctx context.Context, req dashboard.Request) (*dashboard.View, error) {
	shell, err := newShell()
	if err != nil {
		return nil, err
	}
	v := shell.Render(ctx, req)
	if v.State == dashboard.StateError {
		return v, fmt.Errorf("render failed: %w", v.Err)
	}
	return v, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:              "version",
	Short:            "Print version information",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("DTF Scope %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (HTTP server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		market, reg, err := newMarket()
		if err != nil {
			return err
		}

		deps := api.Deps{Market: market, Registry: reg}
		if src := newHeadlines(); src != nil {
			deps.Headlines = src
		}

		api.Version = version
		srv := api.NewServer(cfg, deps)
		if noUI, _ := cmd.Flags().GetBool("no-ui"); noUI {
			srv.SetServeUI(false)
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Addr()
		}

		logx.Infof("dtfscope %s: coingecko=%s feeds=%d refresh=%s metrics=%t",
			version, cfg.CoinGecko.BaseURL, len(cfg.Headlines.Feeds),
			cfg.Dashboard.RefreshInterval, cfg.Metrics.Enabled)
		fmt.Printf("🌐 DTF Scope listening on http://%s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: api.host:api.port)")
	serveCmd.Flags().Bool("no-ui", false, "serve only the JSON API")
}

// --- Categories Command ---

var categoriesCmd = &cobra.Command{
	Use:   "categories [search]",
	Short: "List catalog categories matching a search",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		shell, err := newShell()
		if err != nil {
			return err
		}
		search := ""
		if len(args) == 1 {
			search = args[0]
		}

		cats, err := shell.Categories(ctx, search)
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Printf("%-45s %s\n", c.Name, c.ID)
		}
		fmt.Printf("\n%d categories\n", len(cats))
		return nil
	},
}

// --- Overview Command ---

var overviewCmd = &cobra.Command{
	Use:   "overview <search>",
	Short: "Print the dashboard overview for a category",
	Example: `  dtfscope overview defi
  dtfscope overview defi --category "DeFi Index"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		category, _ := cmd.Flags().GetString("category")
		v, err := renderView(ctx, dashboard.Request{Search: args[0], Category: category})
		if v != nil {
			fmt.Print(report.GenerateText(v))
		}
		return err
	},
}

func init() {
	overviewCmd.Flags().String("category", "", "category name or id among the matches (default: first match)")
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report <search>",
	Short: "Write the dashboard as HTML, PDF or text",
	Long: `Render the dashboard for a category and write it to a file.
The format follows the output extension: .pdf, .txt, otherwise HTML.
PDF needs wkhtmltopdf or Chromium; without one an HTML file is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		category, _ := cmd.Flags().GetString("category")
		out, _ := cmd.Flags().GetString("output")

		start := time.Now()
		v, err := renderView(ctx, dashboard.Request{Search: args[0], Category: category})
		if err != nil {
			return err
		}

		path, err := writeReport(ctx, v, out)
		if err != nil {
			return err
		}
		fmt.Printf("📄 %s report written to %s (%s)\n", v.CategoryName(), path, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	reportCmd.Flags().String("category", "", "category name or id among the matches (default: first match)")
	reportCmd.Flags().StringP("output", "o", "dtfscope-report.html", "output file")
}

func writeReport(ctx context.Context, v *dashboard.View, out string) (string, error) {
	switch report.FormatFromPath(out) {
	case report.FormatText:
		return out, report.WriteFile(out, report.GenerateText(v))
	case report.FormatPDF:
		html, err := report.GenerateHTML(v, report.DefaultReportConfig())
		if err != nil {
			return "", err
		}
		pdfCfg := report.DefaultPDFConfig()
		pdfCfg.OutputPath = out
		return report.GeneratePDF(ctx, html, pdfCfg)
	default:
		html, err := report.GenerateHTML(v, report.DefaultReportConfig())
		if err != nil {
			return "", err
		}
		return out, report.WriteFile(out, html)
	}
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := config.ToYAML(cfg)
		if err != nil {
			return err
		}
		if cfg.File != "" {
			fmt.Printf("# %s\n", cfg.File)
		}
		fmt.Print(string(out))
		return nil
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  DTF Scope — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (UTC):    %s\n", report.ReportTimestamp(time.Now()))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		file := cfg.File
		if file == "" {
			file = "(defaults)"
		}
		fmt.Printf("    Config File:   %s\n", file)
		fmt.Printf("    CoinGecko:     %s\n", cfg.CoinGecko.BaseURL)
		fmt.Printf("    Headlines:     %d feeds\n", len(cfg.Headlines.Feeds))
		fmt.Printf("    API Server:    %s\n", cfg.Addr())
		fmt.Printf("    Live Refresh:  %s\n", cfg.Dashboard.RefreshInterval)
		pdf := "❌ unavailable (HTML fallback)"
		if report.IsPDFSupported() {
			pdf = "✅ " + string(report.DetectPDFEngine())
		}
		fmt.Printf("    PDF Engine:    %s\n", pdf)
		fmt.Println()

		// Upstream reachability
		_, reg, err := newMarket()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		fmt.Println("  Providers:")
		for _, h := range reg.Health(ctx) {
			state := fmt.Sprintf("✅ reachable (%s)", h.Latency.Round(time.Millisecond))
			if !h.OK {
				state = "❌ " + h.Error
			}
			fmt.Printf("    %-25s %s\n", h.Name+":", state)
		}
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "— not set (optional)"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
