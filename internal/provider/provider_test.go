package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockFetcher implements the Fetcher interface for testing.
type mockFetcher struct {
	BaseFetcher
	fetchFn func(ctx context.Context, params QueryParams) (*FetchResult, error)
}

func newMockFetcher(model ModelType, required []string) *mockFetcher {
	return &mockFetcher{
		BaseFetcher: NewBaseFetcher(model, "mock fetcher for "+string(model), required, nil),
	}
}

func (m *mockFetcher) Fetch(ctx context.Context, params QueryParams) (*FetchResult, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, params)
	}
	return &FetchResult{
		Data:      "mock-data",
		FetchedAt: time.Now(),
	}, nil
}

// mockProvider implements the Provider interface for testing.
type mockProvider struct {
	BaseProvider
}

func newMockProvider(name string, models ...ModelType) *mockProvider {
	mp := &mockProvider{
		BaseProvider: NewBaseProvider(name, "Mock "+name, "https://example.com", nil),
	}
	for _, m := range models {
		mp.RegisterFetcher(newMockFetcher(m, []string{ParamCategory}))
	}
	return mp
}

// --- Registry Tests ---

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	p := newMockProvider("test-provider", ModelCategoryList, ModelCategoryMarkets)

	if err := p.Init(nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := reg.Get("test-provider")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Info().Name != "test-provider" {
		t.Errorf("expected name test-provider, got %s", got.Info().Name)
	}
}

func TestRegistryRegisterEmptyName(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(newMockProvider("")); err == nil {
		t.Fatal("expected error for empty provider name")
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("missing")
	var notFound *ErrProviderNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
	if notFound.Name != "missing" {
		t.Errorf("expected name missing, got %s", notFound.Name)
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("zeta", ModelCategoryList))
	_ = reg.Register(newMockProvider("alpha", ModelCategoryList))

	infos := reg.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(infos))
	}
	if infos[0].Name != "alpha" || infos[1].Name != "zeta" {
		t.Errorf("expected sorted names, got %s, %s", infos[0].Name, infos[1].Name)
	}
}

func TestRegistryProvidersFor(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCategoryList, ModelCategoryMarkets))
	_ = reg.Register(newMockProvider("p2", ModelCategoryMarkets))

	if got := reg.ProvidersFor(ModelCategoryList); len(got) != 1 || got[0] != "p1" {
		t.Errorf("expected [p1] for CategoryList, got %v", got)
	}
	if got := reg.ProvidersFor(ModelCategoryMarkets); len(got) != 2 {
		t.Errorf("expected 2 providers for CategoryMarkets, got %v", got)
	}
	def, ok := reg.DefaultProvider(ModelCategoryMarkets)
	if !ok || def != "p1" {
		t.Errorf("expected default p1, got %q (ok=%v)", def, ok)
	}
}

func TestRegistryFetch(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCategoryMarkets))

	result, err := reg.Fetch(context.Background(), ModelCategoryMarkets, QueryParams{ParamCategory: "defi"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Provider != "p1" {
		t.Errorf("expected provider p1, got %s", result.Provider)
	}
	if result.Model != ModelCategoryMarkets {
		t.Errorf("expected model CategoryMarkets, got %s", result.Model)
	}
	if result.Data != "mock-data" {
		t.Errorf("unexpected data %v", result.Data)
	}
}

func TestRegistryFetchMissingParam(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCategoryMarkets))

	_, err := reg.Fetch(context.Background(), ModelCategoryMarkets, QueryParams{})
	var missing *ErrMissingParam
	if !errors.As(err, &missing) {
		t.Fatalf("expected ErrMissingParam, got %v", err)
	}
	if missing.Param != ParamCategory {
		t.Errorf("expected param %s, got %s", ParamCategory, missing.Param)
	}
}

func TestRegistryFetchUnsupportedModel(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCategoryList))

	_, err := reg.Fetch(context.Background(), ModelCategoryMarkets, QueryParams{ParamProvider: "p1"})
	var unsupported *ErrModelNotSupported
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected ErrModelNotSupported, got %v", err)
	}
}

func TestRegistryFetchWrapsFailure(t *testing.T) {
	reg := NewRegistry()
	p := &mockProvider{BaseProvider: NewBaseProvider("p1", "", "", nil)}
	upstream := errors.New("connection refused")
	f := newMockFetcher(ModelCategoryList, nil)
	f.fetchFn = func(context.Context, QueryParams) (*FetchResult, error) { return nil, upstream }
	p.RegisterFetcher(f)
	_ = reg.Register(p)

	_, err := reg.Fetch(context.Background(), ModelCategoryList, QueryParams{})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Provider != "p1" || fe.Model != ModelCategoryList {
		t.Errorf("unexpected FetchError fields: %+v", fe)
	}
	if !errors.Is(err, upstream) {
		t.Error("expected FetchError to unwrap to the upstream error")
	}
}

func TestModelCoverage(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCategoryList, ModelCategoryMarkets))

	cov := reg.ModelCoverage()
	if len(cov) != 2 {
		t.Fatalf("expected 2 models covered, got %d", len(cov))
	}
	if cov[ModelCategoryList][0] != "p1" {
		t.Errorf("expected p1 for CategoryList, got %v", cov[ModelCategoryList])
	}
}

type downProvider struct {
	*mockProvider
}

func (downProvider) Ping(context.Context) error { return errors.New("dial tcp: refused") }

func TestRegistryHealth(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("up", ModelCategoryList))
	_ = reg.Register(downProvider{newMockProvider("down", ModelCategoryMarkets)})

	health := reg.Health(context.Background())
	if len(health) != 2 {
		t.Fatalf("expected 2 results, got %d", len(health))
	}
	if health[0].Name != "down" || health[0].OK || health[0].Error != "dial tcp: refused" {
		t.Errorf("unexpected down result %+v", health[0])
	}
	if health[1].Name != "up" || !health[1].OK || health[1].Error != "" {
		t.Errorf("unexpected up result %+v", health[1])
	}
}

func TestRegistryReRegisterKeepsOrder(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCategoryMarkets))
	_ = reg.Register(newMockProvider("p2", ModelCategoryMarkets))
	_ = reg.Register(newMockProvider("p1", ModelCategoryMarkets))

	if got := reg.ProvidersFor(ModelCategoryMarkets); len(got) != 2 || got[0] != "p1" {
		t.Errorf("expected [p1 p2], got %v", got)
	}
}

// --- Base Tests ---

func TestBaseProviderInit(t *testing.T) {
	bp := NewBaseProvider("keyed", "", "", []ProviderCredential{
		{Name: "api_key", Required: true},
	})
	err := bp.Init(map[string]string{})
	var invalid *ErrInvalidCredentials
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := bp.Init(map[string]string{"api_key": "secret"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if bp.Credential("api_key") != "secret" {
		t.Errorf("expected stored credential")
	}
}

func TestBaseProviderRegisterFetcher(t *testing.T) {
	bp := NewBaseProvider("p", "", "", nil)
	bp.RegisterFetcher(newMockFetcher(ModelCategoryMarkets, nil))
	bp.RegisterFetcher(newMockFetcher(ModelCategoryList, nil))

	models := bp.Info().Models
	if len(models) != 2 || models[0] != ModelCategoryList {
		t.Errorf("expected sorted models, got %v", models)
	}
	if bp.Fetcher(ModelCategoryList) == nil {
		t.Error("expected registered fetcher")
	}
}

func TestBaseFetcherCachedStoresSuccess(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	bf := NewBaseFetcherWithOpts(ModelCategoryList, "", nil, nil, FetcherOptions{CacheTTL: time.Hour, Now: clock})

	var calls int
	load := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}
	ctx := context.Background()

	v, cached, err := bf.Cached(ctx, "k", load)
	if err != nil || cached || v != 1 {
		t.Fatalf("first call: v=%v cached=%v err=%v", v, cached, err)
	}
	v, cached, err = bf.Cached(ctx, "k", load)
	if err != nil || !cached || v != 1 {
		t.Fatalf("second call: v=%v cached=%v err=%v", v, cached, err)
	}

	now = now.Add(time.Hour)
	v, cached, _ = bf.Cached(ctx, "k", load)
	if cached || v != 2 {
		t.Fatalf("after expiry: v=%v cached=%v", v, cached)
	}
}

func TestBaseFetcherCachedSkipsFailures(t *testing.T) {
	bf := NewBaseFetcher(ModelCategoryList, "", nil, nil)
	var calls int
	fail := func(context.Context) (any, error) {
		calls++
		return nil, errors.New("boom")
	}
	for i := 0; i < 2; i++ {
		if _, _, err := bf.Cached(context.Background(), "k", fail); err == nil {
			t.Fatal("expected error")
		}
	}
	if calls != 2 {
		t.Errorf("expected failure not cached (2 loads), got %d", calls)
	}
}

func TestBaseFetcherCachedCollapsesConcurrentMisses(t *testing.T) {
	bf := NewBaseFetcher(ModelCategoryList, "", nil, nil)
	var calls int32
	release := make(chan struct{})
	load := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = bf.Cached(context.Background(), "k", load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 load, got %d", got)
	}
}

func TestBaseFetcherCachedIgnoresCancelledCaller(t *testing.T) {
	bf := NewBaseFetcher(ModelCategoryList, "", nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	load := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return "v", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := bf.Cached(ctxA, "k", load)
		errA <- err
	}()
	<-started

	errB := make(chan error, 1)
	var valB any
	go func() {
		v, _, err := bf.Cached(context.Background(), "k", load)
		valB = v
		errB <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
	}
	close(release)
	if err := <-errB; err != nil {
		t.Fatalf("live caller failed: %v", err)
	}
	if valB != "v" {
		t.Errorf("live caller got %v", valB)
	}
	if v, ok := bf.CacheGet("k"); !ok || v != "v" {
		t.Errorf("shared load not cached: %v %v", v, ok)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 load, got %d", got)
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey(ModelCategoryMarkets, QueryParams{ParamCategory: "defi", ParamCurrency: "usd", ParamProvider: "x"})
	b := CacheKey(ModelCategoryMarkets, QueryParams{ParamCurrency: "usd", ParamCategory: "defi"})
	if a != b {
		t.Errorf("expected order-independent keys, got %q vs %q", a, b)
	}
	if want := "CategoryMarkets:category=defi:vs_currency=usd"; a != want {
		t.Errorf("expected %q, got %q", want, a)
	}
}

func TestValidateParams(t *testing.T) {
	if err := ValidateParams(QueryParams{ParamCategory: "defi"}, []string{ParamCategory}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateParams(QueryParams{ParamCategory: ""}, []string{ParamCategory}); err == nil {
		t.Error("expected error for empty param")
	}
}

func TestAllModels(t *testing.T) {
	if got := AllModels(); len(got) != 2 {
		t.Errorf("expected 2 models, got %v", got)
	}
}
