package coingecko

import (
	"context"
	"fmt"

	"github.com/seenimoa/dtfscope/internal/observability"
	"github.com/seenimoa/dtfscope/internal/provider"
	"github.com/seenimoa/dtfscope/pkg/models"
)

// ---- CategoryList fetcher ----

type categoriesFetcher struct {
	provider.BaseFetcher
	api *transport
}

func newCategoriesFetcher(api *transport, opts provider.FetcherOptions) *categoriesFetcher {
	return &categoriesFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelCategoryList,
			"List all CoinGecko coin categories",
			nil, nil,
			opts,
		),
		api: api,
	}
}

func (f *categoriesFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	// The catalog is global: one cache entry regardless of params.
	cacheKey := provider.CacheKey(f.ModelType(), nil)

	v, cached, err := f.Cached(ctx, cacheKey, func(ctx context.Context) (any, error) {
		var cats []models.Category
		if err := f.api.getJSON(ctx, "coins/categories/list", nil, &cats); err != nil {
			return nil, fmt.Errorf("coingecko categories: %w", err)
		}
		if cats == nil {
			cats = []models.Category{}
		}
		return cats, nil
	})
	observability.RecordCacheLookup(string(f.ModelType()), cached)
	if err != nil {
		return nil, err
	}
	return newResult(v, cached), nil
}
