// Package models defines the core data structures used throughout DTF Scope.
package models

import "time"

// Category is one entry of the market-data provider's category catalog
// (e.g., "DeFi", "NFT Index").
type Category struct {
	ID   string `json:"category_id" yaml:"category_id"`
	Name string `json:"name"        yaml:"name"`
}

// AssetRecord is one asset's market snapshot within a category.
// Numeric fields are pointers because the upstream API reports missing
// values as null.
type AssetRecord struct {
	ID                    string   `json:"id"`
	Symbol                string   `json:"symbol"`
	Name                  string   `json:"name"`
	Image                 string   `json:"image,omitempty"`
	CurrentPrice          *float64 `json:"current_price"`
	MarketCap             *float64 `json:"market_cap"`
	MarketCapRank         *int     `json:"market_cap_rank"`
	FullyDilutedValuation *float64 `json:"fully_diluted_valuation"`
	TotalVolume           *float64 `json:"total_volume"`
	High24h               *float64 `json:"high_24h"`
	Low24h                *float64 `json:"low_24h"`
	PriceChange24h        *float64 `json:"price_change_24h"`

	PriceChangePct24h           *float64 `json:"price_change_percentage_24h"`
	PriceChangePct1hInCurrency  *float64 `json:"price_change_percentage_1h_in_currency,omitempty"`
	PriceChangePct24hInCurrency *float64 `json:"price_change_percentage_24h_in_currency,omitempty"`
	PriceChangePct7dInCurrency  *float64 `json:"price_change_percentage_7d_in_currency,omitempty"`

	CirculatingSupply *float64   `json:"circulating_supply"`
	TotalSupply       *float64   `json:"total_supply"`
	MaxSupply         *float64   `json:"max_supply"`
	LastUpdated       *time.Time `json:"last_updated,omitempty"`
}

// MetricsSummary holds the four summary tiles shown for a category.
// Every field is always defined; missing inputs contribute zero.
type MetricsSummary struct {
	TotalTokens    int     `json:"total_tokens"`
	TotalMarketCap float64 `json:"total_market_cap"`
	TotalVolume    float64 `json:"total_volume"`
	Avg24hChange   float64 `json:"avg_24h_change"`
}

// Float64 returns a pointer to v. Handy for building AssetRecord literals.
func Float64(v float64) *float64 { return &v }
