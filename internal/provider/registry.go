package provider

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Registry is a thread-safe set of data providers indexed by the model
// types they serve. The first provider registered for a model is its
// default.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider    // name → provider
	byModel   map[ModelType][]string // model → provider names, registration order
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		byModel:   make(map[ModelType][]string),
	}
}

// Register adds p. Credentials must already be applied through Init.
// Registering the same name again replaces the provider but keeps its
// position in the model index.
func (r *Registry) Register(p Provider) error {
	name := p.Info().Name
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[name] = p
	for _, model := range p.SupportedModels() {
		if !slices.Contains(r.byModel[model], name) {
			r.byModel[model] = append(r.byModel[model], name)
		}
	}
	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	return nil, &ErrProviderNotFound{Name: name}
}

// List returns info about all registered providers, sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ProvidersFor returns the providers serving model, default first.
func (r *Registry) ProvidersFor(model ModelType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byModel[model])
}

// DefaultProvider returns the default provider name for model.
func (r *Registry) DefaultProvider(model ModelType) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if names := r.byModel[model]; len(names) > 0 {
		return names[0], true
	}
	return "", false
}

// Fetch routes a request for model to params[ParamProvider], or to the
// default provider when that is unset. Fetcher failures come back as
// *FetchError.
func (r *Registry) Fetch(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	name := params[ParamProvider]
	if name == "" {
		name, _ = r.DefaultProvider(model)
	}
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	fetcher := p.Fetcher(model)
	if fetcher == nil {
		return nil, &ErrModelNotSupported{Provider: name, Model: model}
	}
	if err := ValidateParams(params, fetcher.RequiredParams()); err != nil {
		return nil, err
	}

	result, err := fetcher.Fetch(ctx, params)
	if err != nil {
		return nil, &FetchError{Provider: name, Model: model, Err: err}
	}

	result.Provider = name
	result.Model = model
	if result.FetchedAt.IsZero() {
		result.FetchedAt = time.Now()
	}
	return result, nil
}

// ModelCoverage maps every served model type to its providers.
func (r *Registry) ModelCoverage() map[ModelType][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	coverage := make(map[ModelType][]string, len(r.byModel))
	for model, names := range r.byModel {
		coverage[model] = slices.Clone(names)
	}
	return coverage
}

// ProviderHealth is the outcome of pinging one provider.
type ProviderHealth struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

// Health pings every provider concurrently, sorted by name.
func (r *Registry) Health(ctx context.Context) []ProviderHealth {
	r.mu.RLock()
	ps := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		ps = append(ps, p)
	}
	r.mu.RUnlock()

	out := make([]ProviderHealth, len(ps))
	var g errgroup.Group
	for i, p := range ps {
		g.Go(func() error {
			start := time.Now()
			err := p.Ping(ctx)
			out[i] = ProviderHealth{Name: p.Info().Name, OK: err == nil, Latency: time.Since(start)}
			if err != nil {
				out[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
