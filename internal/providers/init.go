// Package providers initializes and registers the concrete data providers
// with a provider registry.
package providers

import (
	"net/http"

	"github.com/seenimoa/dtfscope/internal/config"
	"github.com/seenimoa/dtfscope/internal/provider"
	"github.com/seenimoa/dtfscope/internal/providers/coingecko"
)

// NewCoinGecko builds the CoinGecko provider from configuration and
// initializes it with the optional demo key.
func NewCoinGecko(cfg *config.Config) (*coingecko.Provider, error) {
	cg := coingecko.New(
		coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
		coingecko.WithHTTPClient(&http.Client{Timeout: cfg.CoinGecko.Timeout}),
		coingecko.WithCacheTTL(cfg.CoinGecko.CategoriesTTL, cfg.CoinGecko.MarketsTTL),
		coingecko.WithRateLimit(cfg.CoinGecko.RateLimitBurst, cfg.CoinGecko.RateLimitInterval),
	)
	if err := cg.Init(map[string]string{"api_key": cfg.Secrets.CoinGeckoAPIKey}); err != nil {
		return nil, err
	}
	return cg, nil
}

// RegisterAllTo creates every available provider from cfg and registers it
// to the given registry. The CoinGecko provider is returned because the
// dashboard calls its typed fetch methods directly.
func RegisterAllTo(reg *provider.Registry, cfg *config.Config) (*coingecko.Provider, error) {
	// --- CoinGecko (free, key optional) ---
	cg, err := NewCoinGecko(cfg)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(cg); err != nil {
		return nil, err
	}
	return cg, nil
}
