// Package coingecko implements the CoinGecko v3 market-data provider.
// It serves the category catalog and the per-category market table.
//
// The public API works without a key; a free demo key raises the quota and
// is sent as the x-cg-demo-api-key header.
// Docs: https://docs.coingecko.com/v3.0.1/reference/introduction
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/seenimoa/dtfscope/internal/infra"
	"github.com/seenimoa/dtfscope/internal/observability"
	"github.com/seenimoa/dtfscope/internal/provider"
	"github.com/seenimoa/dtfscope/pkg/models"
)

const (
	providerName = "coingecko"
	// DefaultBaseURL is the public CoinGecko v3 endpoint.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	credAPIKey     = "api_key"
	demoKeyHeader  = "x-cg-demo-api-key"
)

// Default freshness windows and quota.
const (
	DefaultCategoriesTTL = time.Hour
	DefaultMarketsTTL    = 5 * time.Minute
	DefaultRateBurst     = 5
	DefaultRateInterval  = 2 * time.Second
)

type settings struct {
	baseURL       string
	client        *http.Client
	categoriesTTL time.Duration
	marketsTTL    time.Duration
	rateBurst     int
	rateInterval  time.Duration
	now           func() time.Time
}

// Option configures a Provider.
type Option func(*settings)

// WithBaseURL points the provider at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.client = c }
}

// WithCacheTTL sets the freshness windows of the catalog and market caches.
func WithCacheTTL(categories, markets time.Duration) Option {
	return func(s *settings) {
		if categories > 0 {
			s.categoriesTTL = categories
		}
		if markets > 0 {
			s.marketsTTL = markets
		}
	}
}

// WithRateLimit sets the shared token bucket: burst requests, one refill per interval.
func WithRateLimit(burst int, interval time.Duration) Option {
	return func(s *settings) {
		if burst > 0 {
			s.rateBurst = burst
		}
		if interval > 0 {
			s.rateInterval = interval
		}
	}
}

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// transport holds what every fetcher needs to reach the API.
type transport struct {
	baseURL string
	client  *http.Client
	apiKey  string
}

// Provider implements provider.Provider for CoinGecko.
type Provider struct {
	provider.BaseProvider
	api        *transport
	categories *categoriesFetcher
	markets    *marketsFetcher
}

// New creates a new CoinGecko provider and registers all fetchers.
func New(opts ...Option) *Provider {
	s := settings{
		baseURL:       DefaultBaseURL,
		categoriesTTL: DefaultCategoriesTTL,
		marketsTTL:    DefaultMarketsTTL,
		rateBurst:     DefaultRateBurst,
		rateInterval:  DefaultRateInterval,
	}
	for _, opt := range opts {
		opt(&s)
	}

	api := &transport{baseURL: s.baseURL, client: s.client}
	limiter := infra.NewRateLimiter(s.rateBurst, s.rateInterval)

	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"CoinGecko - crypto market categories and per-category market data",
			"https://www.coingecko.com",
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "Optional CoinGecko demo API key",
					Required:    false,
					EnvVar:      "COINGECKO_API_KEY",
				},
			},
		),
		api: api,
	}

	p.categories = newCategoriesFetcher(api, provider.FetcherOptions{
		CacheTTL: s.categoriesTTL,
		Limiter:  limiter,
		Now:      s.now,
	})
	p.markets = newMarketsFetcher(api, provider.FetcherOptions{
		CacheTTL: s.marketsTTL,
		Limiter:  limiter,
		Now:      s.now,
	})
	p.RegisterFetcher(p.categories)
	p.RegisterFetcher(p.markets)

	return p
}

// Init stores the optional demo API key.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.api.apiKey = credentials[credAPIKey]
	return nil
}

// Ping checks connectivity to the CoinGecko API.
func (p *Provider) Ping(ctx context.Context) error {
	var out pingResponse
	if err := p.api.getJSON(ctx, "ping", nil, &out); err != nil {
		return fmt.Errorf("coingecko ping: %w", err)
	}
	return nil
}

// FetchCategories returns the category catalog, served from cache within
// the catalog freshness window.
func (p *Provider) FetchCategories(ctx context.Context) ([]models.Category, error) {
	res, err := p.categories.Fetch(ctx, provider.QueryParams{})
	if err != nil {
		return nil, &provider.FetchError{Provider: providerName, Model: provider.ModelCategoryList, Err: err}
	}
	return res.Data.([]models.Category), nil
}

// FetchCategoryMarket returns the USD market table of one category, ordered
// by market cap descending, served from cache within the market freshness window.
func (p *Provider) FetchCategoryMarket(ctx context.Context, categoryID string) ([]models.AssetRecord, error) {
	if categoryID == "" {
		return nil, &provider.ErrMissingParam{Param: provider.ParamCategory}
	}
	res, err := p.markets.Fetch(ctx, provider.QueryParams{provider.ParamCategory: categoryID})
	if err != nil {
		return nil, &provider.FetchError{Provider: providerName, Model: provider.ModelCategoryMarkets, Err: err}
	}
	return res.Data.([]models.AssetRecord), nil
}

// Flush drops every cached catalog and market entry.
func (p *Provider) Flush() {
	p.categories.CacheFlush()
	p.markets.CacheFlush()
}

// --- Shared helpers ---

func (t *transport) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if t.apiKey != "" {
		h[demoKeyHeader] = t.apiKey
	}
	return h
}

// getJSON performs a GET request against the API root and decodes JSON into dest.
func (t *transport) getJSON(ctx context.Context, endpoint string, query url.Values, dest any) (err error) {
	u := t.baseURL + "/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		observability.RecordUpstream(endpoint, elapsed.Seconds(), err)
		if err != nil {
			logx.WithContext(ctx).Errorf("coingecko GET %s failed after %s: %v", endpoint, elapsed, err)
			return
		}
		logx.WithContext(ctx).Infof("coingecko GET %s ok in %s", endpoint, elapsed)
	}()

	body, _, err := infra.DoGet(ctx, t.client, u, t.headers())
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read coingecko response: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse coingecko JSON: %w", err)
	}
	return nil
}

func newResult(data any, cached bool) *provider.FetchResult {
	return &provider.FetchResult{
		Provider:  providerName,
		Data:      data,
		FetchedAt: time.Now(),
		Cached:    cached,
	}
}
