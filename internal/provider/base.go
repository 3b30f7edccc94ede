package provider

import (
	"context"
	"sort"
	"time"

	"github.com/seenimoa/dtfscope/internal/infra"
)

// FetcherOptions tunes the cache and rate limiter embedded in a BaseFetcher.
type FetcherOptions struct {
	CacheTTL   time.Duration
	RateLimit  int
	RateWindow time.Duration
	// Limiter, when set, is shared instead of creating a private one.
	Limiter *infra.RateLimiter
	// Now overrides the cache clock (tests).
	Now func() time.Time
	// LoadTimeout bounds a shared upstream load. Defaults to
	// infra.DefaultLoadTimeout.
	LoadTimeout time.Duration
}

// BaseFetcher provides common functionality for fetcher implementations.
// Embed this in concrete fetchers to get caching, rate limiting and
// request collapsing for free.
type BaseFetcher struct {
	model       ModelType
	description string
	required    []string
	optional    []string
	cache       *infra.Cache
	limiter     *infra.RateLimiter
	flight      *infra.Flight
	loadTimeout time.Duration
}

// NewBaseFetcher creates a base fetcher with sensible defaults.
func NewBaseFetcher(model ModelType, desc string, required, optional []string) BaseFetcher {
	return NewBaseFetcherWithOpts(model, desc, required, optional, FetcherOptions{})
}

// NewBaseFetcherWithOpts creates a base fetcher with custom cache TTL and rate limit.
func NewBaseFetcherWithOpts(model ModelType, desc string, required, optional []string, opts FetcherOptions) BaseFetcher {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Second
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = infra.NewRateLimiter(opts.RateLimit, opts.RateWindow)
	}
	var cache *infra.Cache
	if opts.Now != nil {
		cache = infra.NewCacheWithClock(opts.CacheTTL, opts.Now)
	} else {
		cache = infra.NewCache(opts.CacheTTL)
	}
	return BaseFetcher{
		model:       model,
		description: desc,
		required:    required,
		optional:    optional,
		cache:       cache,
		limiter:     limiter,
		flight:      infra.NewFlight(),
		loadTimeout: opts.LoadTimeout,
	}
}

func (b *BaseFetcher) ModelType() ModelType     { return b.model }
func (b *BaseFetcher) Description() string      { return b.description }
func (b *BaseFetcher) RequiredParams() []string { return b.required }
func (b *BaseFetcher) OptionalParams() []string { return b.optional }

// CacheTTL returns the freshness window of the fetcher's cache.
func (b *BaseFetcher) CacheTTL() time.Duration { return b.cache.TTL() }

// CacheGet retrieves a value from the fetcher's cache.
func (b *BaseFetcher) CacheGet(key string) (any, bool) {
	return b.cache.Get(key)
}

// CacheSet stores a value in the fetcher's cache.
func (b *BaseFetcher) CacheSet(key string, value any) {
	b.cache.Set(key, value)
}

// CacheSetTTL stores a value with a custom TTL.
func (b *BaseFetcher) CacheSetTTL(key string, value any, ttl time.Duration) {
	b.cache.SetWithTTL(key, value, ttl)
}

// CacheFlush drops every cached entry.
func (b *BaseFetcher) CacheFlush() {
	b.cache.Flush()
}

// RateLimit waits until a request slot is available.
func (b *BaseFetcher) RateLimit(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Cached returns the cached value for key, or runs load once for all
// concurrent callers missing the same key. Only successful loads are stored.
// The boolean reports whether the value came from the cache.
//
// load does not inherit the cancellation of ctx: a caller whose ctx ends
// gets its ctx error back while the load continues for the other callers.
func (b *BaseFetcher) Cached(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, bool, error) {
	if v, ok := b.cache.Get(key); ok {
		return v, true, nil
	}
	v, _, err := b.flight.DoContext(ctx, key, b.loadTimeout, func(ctx context.Context) (any, error) {
		if v, ok := b.cache.Get(key); ok {
			return v, nil
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		b.cache.Set(key, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

// CacheKey builds a cache key from model type and query parameters.
func CacheKey(model ModelType, params QueryParams) string {
	key := string(model)
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ParamProvider {
			continue // Don't include provider in cache key.
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key += ":" + k + "=" + params[k]
	}
	return key
}

// BaseProvider provides common functionality for provider implementations.
// Embed this in concrete providers to simplify implementation.
type BaseProvider struct {
	info        ProviderInfo
	fetchers    map[ModelType]Fetcher
	credentials map[string]string
}

// NewBaseProvider creates a base provider.
func NewBaseProvider(name, description, website string, creds []ProviderCredential) BaseProvider {
	return BaseProvider{
		info: ProviderInfo{
			Name:        name,
			Description: description,
			Website:     website,
			Credentials: creds,
		},
		fetchers:    make(map[ModelType]Fetcher),
		credentials: make(map[string]string),
	}
}

func (bp *BaseProvider) Info() ProviderInfo { return bp.info }

func (bp *BaseProvider) Init(credentials map[string]string) error {
	for _, cred := range bp.info.Credentials {
		if cred.Required {
			val, ok := credentials[cred.Name]
			if !ok || val == "" {
				return &ErrInvalidCredentials{
					Provider: bp.info.Name,
					Detail:   "missing required credential: " + cred.Name,
				}
			}
		}
	}
	bp.credentials = make(map[string]string, len(credentials))
	for k, v := range credentials {
		bp.credentials[k] = v
	}
	return nil
}

func (bp *BaseProvider) Fetcher(model ModelType) Fetcher {
	return bp.fetchers[model]
}

func (bp *BaseProvider) SupportedModels() []ModelType {
	models := make([]ModelType, 0, len(bp.fetchers))
	for m := range bp.fetchers {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	return models
}

func (bp *BaseProvider) Ping(ctx context.Context) error {
	return nil // Override in concrete providers.
}

// RegisterFetcher adds a fetcher to this provider.
func (bp *BaseProvider) RegisterFetcher(f Fetcher) {
	bp.fetchers[f.ModelType()] = f
	bp.info.Models = bp.SupportedModels()
}

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}
