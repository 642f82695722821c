package providers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DirectPlaceholderKey is sent to custom endpoints that have no key configured
	DirectPlaceholderKey = "no-key"

	// DirectDefaultAPIBase is the custom endpoint used when none is configured
	DirectDefaultAPIBase = "http://localhost:8000/v1"

	defaultBackendTimeout = 120 * time.Second
)

// ErrNoBuilder is returned by clients created for a kind with no registered builder
var ErrNoBuilder = errors.New("no backend builder registered")

// Kind selects the concrete backend client implementation
type Kind int

const (
	// KindGateway is the generic multi-provider gateway client (default)
	KindGateway Kind = iota

	// KindDirect talks to a custom OpenAI-compatible endpoint
	KindDirect

	// KindOAuth authenticates with an OAuth access token
	KindOAuth
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindOAuth:
		return "oauth"
	case KindDirect:
		return "direct"
	default:
		return "gateway"
	}
}

// Classify picks the backend kind for a model.
// OAuth wins over a custom direct endpoint, which wins over the gateway.
func Classify(providerName, model string) Kind {
	if providerName == ProviderOpenAICodex || strings.HasPrefix(model, codexModelPrefix) {
		return KindOAuth
	}
	if providerName == ProviderCustom {
		return KindDirect
	}
	return KindGateway
}

// Builder creates a backend client from resolved settings
type Builder func(cfg BackendConfig) (Provider, error)

// Registry lazily creates one backend client per model identifier and caches it
// for the lifetime of the registry. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Provider
	lookup   ConfigLookup
	builders map[Kind]Builder
	timeout  time.Duration
	logger   *zap.Logger
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithBuilder registers the builder used for a backend kind
func WithBuilder(kind Kind, builder Builder) RegistryOption {
	return func(r *Registry) {
		r.builders[kind] = builder
	}
}

// WithTimeout sets the per-call timeout handed to every built client.
// Non-positive values keep the default.
func WithTimeout(timeout time.Duration) RegistryOption {
	return func(r *Registry) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// NewRegistry creates a new backend registry
func NewRegistry(lookup ConfigLookup, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		clients:  make(map[string]Provider),
		lookup:   lookup,
		builders: make(map[Kind]Builder),
		timeout:  defaultBackendTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the cached client for model, creating it on first use.
// Configuration is consulted only on a cache miss; resolution never fails.
func (r *Registry) Resolve(model string) Provider {
	r.mu.RLock()
	client, ok := r.clients[model]
	r.mu.RUnlock()
	if ok {
		return client
	}

	created := r.build(model)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[model]; ok {
		// Lost the race; keep the first insert.
		return existing
	}
	r.clients[model] = created
	return created
}

// build resolves configuration and constructs a client without touching the cache
func (r *Registry) build(model string) Provider {
	var (
		settings     ProviderSettings
		providerName string
	)
	if r.lookup != nil {
		settings = r.lookup.ProviderConfigFor(model)
		providerName = r.lookup.ProviderNameFor(model)
	}

	kind := Classify(providerName, model)
	cfg := BackendConfig{
		Model:        model,
		ProviderName: providerName,
		APIKey:       settings.APIKey,
		APIBase:      settings.APIBase,
		ExtraHeaders: settings.ExtraHeaders,
		Timeout:      r.timeout,
	}

	switch kind {
	case KindDirect:
		if cfg.APIKey == "" {
			cfg.APIKey = DirectPlaceholderKey
		}
		if cfg.APIBase == "" {
			cfg.APIBase = DirectDefaultAPIBase
		}
	case KindGateway:
		if cfg.APIBase == "" {
			if spec, ok := gatewaySpec(providerName, model); ok {
				cfg.APIBase = spec.DefaultAPIBase
			}
		}
	}

	r.logger.Debug("resolving backend",
		zap.String("model", model),
		zap.String("provider", providerName),
		zap.String("kind", kind.String()),
		zap.String("api_base", cfg.APIBase))

	builder, ok := r.builders[kind]
	if !ok {
		builder, ok = r.builders[KindGateway]
	}
	if !ok {
		return &unavailableProvider{name: providerName, model: model, err: ErrNoBuilder}
	}

	client, err := builder(cfg)
	if err != nil {
		r.logger.Warn("failed to build backend client",
			zap.String("model", model),
			zap.String("kind", kind.String()),
			zap.Error(err))
		return &unavailableProvider{name: providerName, model: model, err: err}
	}
	return client
}

// gatewaySpec finds the spec for a gateway provider by name, then by model keywords
func gatewaySpec(providerName, model string) (ProviderSpec, bool) {
	if providerName != "" {
		if spec, ok := FindSpec(providerName); ok {
			return spec, true
		}
	}
	return MatchSpec(model)
}

// Cached returns the client cached for model, if any
func (r *Registry) Cached(model string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[model]
	return client, ok
}

// ListModels returns the model identifiers that have a cached client, sorted
func (r *Registry) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.clients))
	for model := range r.clients {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Len returns the number of cached clients
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// unavailableProvider stands in for a client that could not be built.
// Every call fails with the construction error.
type unavailableProvider struct {
	name  string
	model string
	err   error
}

func (p *unavailableProvider) Name() string         { return p.name }
func (p *unavailableProvider) DefaultModel() string { return p.model }

func (p *unavailableProvider) Chat(context.Context, *ChatRequest) (*ChatResponse, error) {
	return nil, NewProviderError(p.name, "UNAVAILABLE", "backend client unavailable", 0, false, p.err)
}
