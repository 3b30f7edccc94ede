// Package dashboard drives one dashboard render: catalog lookup, category
// resolution, market fetch, then metrics and panels built side by side.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/dtfscope/internal/analytics"
	"github.com/seenimoa/dtfscope/internal/observability"
	"github.com/seenimoa/dtfscope/internal/viz"
	"github.com/seenimoa/dtfscope/pkg/models"
)

// User-facing messages.
const (
	MsgCatalogFailed = "Failed to fetch categories. Please try again later."
	MsgNoMatch       = "No categories found matching your search."
	MsgMarketFailed  = "Error fetching category data: %v"

	MsgTreemapNoData   = "No valid market cap data available for treemap visualization."
	MsgTreemapFailed   = "Could not create treemap visualization: %v"
	MsgHistogramNoData = "No 24h price change data available."
	MsgHistogramFailed = "Could not create price change distribution chart."
	MsgScatterNoData   = "Insufficient data for volume vs market cap visualization."
	MsgScatterFailed   = "Could not create volume vs market cap chart."
	MsgHeadlinesNoData = "No recent headlines mention this category."
	MsgHeadlinesFailed = "Could not load headlines."
)

var (
	// ErrNoCategories means the category catalog could not be loaded.
	ErrNoCategories = errors.New("dashboard: category catalog unavailable")
	// ErrNoMatch means the search matched no category.
	ErrNoMatch = errors.New("dashboard: no category matches search")
)

// MarketSource supplies the category catalog and per-category market data.
type MarketSource interface {
	FetchCategories(ctx context.Context) ([]models.Category, error)
	FetchCategoryMarket(ctx context.Context, categoryID string) ([]models.AssetRecord, error)
}

// HeadlineSource supplies news for a category.
type HeadlineSource interface {
	ForCategory(ctx context.Context, categoryName string, limit int) ([]models.Headline, error)
}

// Observer is told about every state transition of a render.
type Observer func(ctx context.Context, req Request, from, to State)

// Builders derive the chart data. Tests swap them to inject failures.
type Builders struct {
	Treemap   func(records []models.AssetRecord, categoryName string) (*viz.Treemap, error)
	Histogram func(records []models.AssetRecord, bins int) (*viz.Histogram, error)
	Scatter   func(records []models.AssetRecord) (*viz.Scatter, error)
}

// DefaultBuilders returns the viz package builders.
func DefaultBuilders() Builders {
	return Builders{
		Treemap:   viz.BuildTreemap,
		Histogram: viz.BuildHistogram,
		Scatter:   viz.BuildScatter,
	}
}

// Shell orchestrates a dashboard render.
type Shell struct {
	src           MarketSource
	headlines     HeadlineSource
	headlineLimit int
	bins          int
	timeout       time.Duration
	builders      Builders
	observers     []Observer
	now           func() time.Time
}

// Option configures a Shell.
type Option func(*Shell)

// WithHeadlines adds a headline panel fed by src, showing at most limit items.
func WithHeadlines(src HeadlineSource, limit int) Option {
	return func(s *Shell) {
		s.headlines = src
		s.headlineLimit = limit
	}
}

// WithHistogramBins sets the histogram bin count.
func WithHistogramBins(n int) Option {
	return func(s *Shell) { s.bins = n }
}

// WithRenderTimeout bounds a whole render. Zero means no bound beyond ctx.
func WithRenderTimeout(d time.Duration) Option {
	return func(s *Shell) { s.timeout = d }
}

// WithBuilders replaces the chart builders.
func WithBuilders(b Builders) Option {
	return func(s *Shell) { s.builders = b }
}

// WithObserver registers an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(s *Shell) { s.observers = append(s.observers, o) }
}

// WithClock overrides the time source used for RenderedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Shell) { s.now = now }
}

// NewShell creates a shell over src.
func NewShell(src MarketSource, opts ...Option) *Shell {
	s := &Shell{
		src:      src,
		bins:     viz.DefaultHistogramBins,
		builders: DefaultBuilders(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Categories returns the catalog entries matching search. The error wraps
// ErrNoCategories when the catalog fetch fails or comes back empty, and is
// ErrNoMatch when nothing matches.
func (s *Shell) Categories(ctx context.Context, search string) ([]models.Category, error) {
	cats, err := s.src.FetchCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCategories, err)
	}
	if len(cats) == 0 {
		return nil, ErrNoCategories
	}
	matches := analytics.SearchCategories(cats, search)
	if len(matches) == 0 {
		return nil, ErrNoMatch
	}
	return matches, nil
}

// Render runs one full pass of the pipeline for req. It never returns nil;
// failures are reported through View.State, View.Message and View.Err.
func (s *Shell) Render(ctx context.Context, req Request) *View {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	v := &View{State: StateIdle, Request: req}
	defer func() {
		v.RenderedAt = s.now()
		observability.RecordRender(string(v.State), time.Since(start).Seconds())
		logx.WithContext(ctx).Infof("dashboard: search=%q category=%q -> %s in %s",
			req.Search, v.CategoryName(), v.State, time.Since(start).Round(time.Millisecond))
	}()

	s.transition(ctx, v, StateLoading)

	matches, err := s.Categories(ctx, req.Search)
	switch {
	case errors.Is(err, ErrNoMatch):
		s.halt(ctx, v, StateWarning, MsgNoMatch, err)
		return v
	case err != nil:
		s.halt(ctx, v, StateError, MsgCatalogFailed, err)
		return v
	}
	v.Matches = matches

	cat, _ := analytics.ResolveCategory(matches, req.Category)
	v.Category = &cat

	records, err := s.src.FetchCategoryMarket(ctx, cat.ID)
	if err != nil {
		s.halt(ctx, v, StateError, fmt.Sprintf(MsgMarketFailed, err), err)
		return v
	}

	v.Metrics = analytics.ComputeMetrics(records)
	s.buildPanels(ctx, v, records, cat)
	s.transition(ctx, v, StateRendered)
	return v
}

func (s *Shell) halt(ctx context.Context, v *View, to State, msg string, err error) {
	v.Message = msg
	v.Err = err
	logx.WithContext(ctx).Errorf("dashboard: %s: %v", to, err)
	s.transition(ctx, v, to)
}

func (s *Shell) transition(ctx context.Context, v *View, to State) {
	from := v.State
	v.State = to
	for _, o := range s.observers {
		o(ctx, v.Request, from, to)
	}
}

// buildPanels runs every chart builder and the headline lookup concurrently.
// Each one is isolated: an error or panic only marks its own panel.
func (s *Shell) buildPanels(ctx context.Context, v *View, records []models.AssetRecord, cat models.Category) {
	var (
		tm       *viz.Treemap
		hist     *viz.Histogram
		sc       *viz.Scatter
		news     []models.Headline
		statuses = make([]Panel, 3, 4)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		statuses[0] = isolate(gctx, PanelTreemap, MsgTreemapNoData, MsgTreemapFailed, func() (err error) {
			tm, err = s.builders.Treemap(records, cat.Name)
			return err
		})
		return nil
	})
	g.Go(func() error {
		statuses[1] = isolate(gctx, PanelHistogram, MsgHistogramNoData, MsgHistogramFailed, func() (err error) {
			hist, err = s.builders.Histogram(records, s.bins)
			return err
		})
		return nil
	})
	g.Go(func() error {
		statuses[2] = isolate(gctx, PanelScatter, MsgScatterNoData, MsgScatterFailed, func() (err error) {
			sc, err = s.builders.Scatter(records)
			return err
		})
		return nil
	})

	var newsPanel Panel
	if s.headlines != nil {
		g.Go(func() error {
			newsPanel = isolate(gctx, PanelHeadlines, MsgHeadlinesNoData, MsgHeadlinesFailed, func() error {
				items, err := s.headlines.ForCategory(gctx, cat.Name, s.headlineLimit)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					return viz.ErrNoData
				}
				news = items
				return nil
			})
			return nil
		})
	}
	_ = g.Wait()

	v.Treemap, v.Histogram, v.Scatter, v.Headlines = tm, hist, sc, news
	if s.headlines != nil {
		statuses = append(statuses, newsPanel)
	}
	v.Panels = statuses
}

// isolate runs build and classifies its outcome. failedMsg may contain a %v
// verb, which receives the error or panic value.
func isolate(ctx context.Context, name, noDataMsg, failedMsg string, build func() error) (p Panel) {
	p.Name = name
	defer func() {
		if r := recover(); r != nil {
			logx.WithContext(ctx).Errorf("dashboard: %s panel panicked: %v", name, r)
			p.Status = PanelFailed
			p.Message = failMessage(failedMsg, r)
		}
		observability.RecordChartBuild(name, string(p.Status))
	}()

	err := build()
	switch {
	case err == nil:
		p.Status = PanelReady
	case errors.Is(err, viz.ErrNoData):
		p.Status = PanelNoData
		p.Message = noDataMsg
	default:
		logx.WithContext(ctx).Errorf("dashboard: %s panel: %v", name, err)
		p.Status = PanelFailed
		p.Message = failMessage(failedMsg, err)
	}
	return p
}

func failMessage(format string, cause any) string {
	if !strings.Contains(format, "%v") {
		return format
	}
	return fmt.Sprintf(format, cause)
}
