package coingecko

import (
	"context"
	"fmt"
	"net/url"

	"github.com/seenimoa/dtfscope/internal/observability"
	"github.com/seenimoa/dtfscope/internal/provider"
	"github.com/seenimoa/dtfscope/pkg/models"
)

// Query defaults for /coins/markets.
const (
	defaultCurrency = "usd"
	defaultOrder    = "market_cap_desc"
	defaultPerPage  = "250"
	priceChangeWins = "1h,24h,7d"
)

// ---- CategoryMarkets fetcher ----

type marketsFetcher struct {
	provider.BaseFetcher
	api *transport
}

func newMarketsFetcher(api *transport, opts provider.FetcherOptions) *marketsFetcher {
	return &marketsFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelCategoryMarkets,
			"Market data for every coin in a CoinGecko category",
			[]string{provider.ParamCategory},
			[]string{provider.ParamCurrency, provider.ParamOrder, provider.ParamLimit},
			opts,
		),
		api: api,
	}
}

func (f *marketsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}

	q := provider.QueryParams{
		provider.ParamCategory: params[provider.ParamCategory],
		provider.ParamCurrency: orDefault(params[provider.ParamCurrency], defaultCurrency),
		provider.ParamOrder:    orDefault(params[provider.ParamOrder], defaultOrder),
		provider.ParamLimit:    orDefault(params[provider.ParamLimit], defaultPerPage),
	}
	cacheKey := provider.CacheKey(f.ModelType(), q)

	v, cached, err := f.Cached(ctx, cacheKey, func(ctx context.Context) (any, error) {
		query := url.Values{}
		for k, val := range q {
			query.Set(k, val)
		}
		query.Set("sparkline", "false")
		query.Set("price_change_percentage", priceChangeWins)

		var rows []models.AssetRecord
		if err := f.api.getJSON(ctx, "coins/markets", query, &rows); err != nil {
			return nil, fmt.Errorf("coingecko markets %s: %w", q[provider.ParamCategory], err)
		}
		if rows == nil {
			rows = []models.AssetRecord{}
		}
		return rows, nil
	})
	observability.RecordCacheLookup(string(f.ModelType()), cached)
	if err != nil {
		return nil, err
	}
	return newResult(v, cached), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
