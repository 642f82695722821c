package providers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubLookup is a ConfigLookup backed by fixed maps; it counts lookups
type stubLookup struct {
	settings map[string]ProviderSettings
	names    map[string]string
	calls    atomic.Int32
}

func (l *stubLookup) ProviderConfigFor(model string) ProviderSettings {
	l.calls.Add(1)
	return l.settings[model]
}

func (l *stubLookup) ProviderNameFor(model string) string {
	return l.names[model]
}

// stubClient records the config it was built with
type stubClient struct {
	cfg  BackendConfig
	kind Kind
}

func (c *stubClient) Name() string         { return c.cfg.ProviderName }
func (c *stubClient) DefaultModel() string { return c.cfg.Model }

func (c *stubClient) Chat(context.Context, *ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: "ok", FinishReason: FinishReasonStop}, nil
}

func stubBuilder(kind Kind) Builder {
	return func(cfg BackendConfig) (Provider, error) {
		return &stubClient{cfg: cfg, kind: kind}, nil
	}
}

func newTestRegistry(lookup ConfigLookup, opts ...RegistryOption) *Registry {
	base := []RegistryOption{
		WithBuilder(KindGateway, stubBuilder(KindGateway)),
		WithBuilder(KindDirect, stubBuilder(KindDirect)),
		WithBuilder(KindOAuth, stubBuilder(KindOAuth)),
	}
	return NewRegistry(lookup, zap.NewNop(), append(base, opts...)...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		providerName string
		model        string
		want         Kind
	}{
		{"codex provider", "openai_codex", "gpt-5", KindOAuth},
		{"codex model prefix", "", "openai-codex/gpt-5.1-codex", KindOAuth},
		{"codex prefix beats custom", "custom", "openai-codex/gpt-5", KindOAuth},
		{"custom provider", "custom", "llama-3-70b", KindDirect},
		{"gateway provider", "openrouter", "anthropic/claude-opus-4-5", KindGateway},
		{"unknown provider", "", "mystery", KindGateway},
		{"prefix must be at start", "", "my-openai-codex/gpt", KindGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.providerName, tt.model))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "gateway", KindGateway.String())
	assert.Equal(t, "direct", KindDirect.String())
	assert.Equal(t, "oauth", KindOAuth.String())
}

func TestRegistry_Resolve_CachesClient(t *testing.T) {
	lookup := &stubLookup{
		names: map[string]string{"anthropic/claude-opus-4-5": "anthropic"},
	}
	r := newTestRegistry(lookup)

	first := r.Resolve("anthropic/claude-opus-4-5")
	second := r.Resolve("anthropic/claude-opus-4-5")

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), lookup.calls.Load(), "configuration must not be consulted on a cache hit")
	assert.Equal(t, 1, r.Len())

	cached, ok := r.Cached("anthropic/claude-opus-4-5")
	require.True(t, ok)
	assert.Same(t, first, cached)

	_, ok = r.Cached("openai/gpt-4o")
	assert.False(t, ok)
}

func TestRegistry_Resolve_Kinds(t *testing.T) {
	lookup := &stubLookup{
		settings: map[string]ProviderSettings{
			"openrouter/anthropic/claude-3": {APIKey: "sk-or", ExtraHeaders: map[string]string{"X-Title": "router"}},
			"my-model":                      {APIBase: "http://vllm:8000/v1"},
		},
		names: map[string]string{
			"openrouter/anthropic/claude-3": "openrouter",
			"my-model":                      "custom",
			"local-model":                   "custom",
			"openai-codex/gpt-5.1-codex":    "openai_codex",
		},
	}
	r := newTestRegistry(lookup, WithTimeout(5*time.Second))

	gateway := r.Resolve("openrouter/anthropic/claude-3").(*stubClient)
	assert.Equal(t, KindGateway, gateway.kind)
	assert.Equal(t, "sk-or", gateway.cfg.APIKey)
	assert.Equal(t, "https://openrouter.ai/api/v1", gateway.cfg.APIBase)
	assert.Equal(t, "router", gateway.cfg.ExtraHeaders["X-Title"])
	assert.Equal(t, 5*time.Second, gateway.cfg.Timeout)
	assert.Equal(t, "openrouter/anthropic/claude-3", gateway.DefaultModel())

	direct := r.Resolve("my-model").(*stubClient)
	assert.Equal(t, KindDirect, direct.kind)
	assert.Equal(t, DirectPlaceholderKey, direct.cfg.APIKey)
	assert.Equal(t, "http://vllm:8000/v1", direct.cfg.APIBase)

	defaults := r.Resolve("local-model").(*stubClient)
	assert.Equal(t, DirectPlaceholderKey, defaults.cfg.APIKey)
	assert.Equal(t, DirectDefaultAPIBase, defaults.cfg.APIBase)

	oauth := r.Resolve("openai-codex/gpt-5.1-codex").(*stubClient)
	assert.Equal(t, KindOAuth, oauth.kind)

	assert.Equal(t, []string{"local-model", "my-model", "openai-codex/gpt-5.1-codex", "openrouter/anthropic/claude-3"}, r.ListModels())
}

func TestRegistry_Resolve_GatewayDefaultsFromModelKeywords(t *testing.T) {
	r := newTestRegistry(&stubLookup{})

	client := r.Resolve("deepseek-chat").(*stubClient)
	assert.Equal(t, KindGateway, client.kind)
	assert.Equal(t, "https://api.deepseek.com/v1", client.cfg.APIBase)
	assert.Equal(t, "", client.cfg.APIKey)
}

func TestRegistry_Resolve_NilLookup(t *testing.T) {
	r := newTestRegistry(nil)

	client := r.Resolve("mystery").(*stubClient)
	assert.Equal(t, KindGateway, client.kind)
	assert.Equal(t, "", client.cfg.APIBase)
}

func TestRegistry_Resolve_FallsBackToGatewayBuilder(t *testing.T) {
	r := NewRegistry(&stubLookup{names: map[string]string{"m": "custom"}}, zap.NewNop(),
		WithBuilder(KindGateway, stubBuilder(KindGateway)))

	client := r.Resolve("m").(*stubClient)
	assert.Equal(t, KindGateway, client.kind)
	assert.Equal(t, DirectDefaultAPIBase, client.cfg.APIBase)
}

func TestRegistry_Resolve_BuildFailureIsHardFailureAtCallTime(t *testing.T) {
	buildErr := errors.New("bad endpoint")
	r := NewRegistry(&stubLookup{}, zap.NewNop(),
		WithBuilder(KindGateway, func(BackendConfig) (Provider, error) { return nil, buildErr }))

	client := r.Resolve("openai/gpt-4o")
	require.NotNil(t, client)
	assert.Equal(t, "openai/gpt-4o", client.DefaultModel())

	resp, err := client.Chat(context.Background(), &ChatRequest{Model: "openai/gpt-4o"})
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, buildErr)
	assert.False(t, IsRetryable(err))

	// The unavailable client is cached like any other
	assert.Same(t, client, r.Resolve("openai/gpt-4o"))
}

func TestRegistry_Resolve_NoBuilders(t *testing.T) {
	r := NewRegistry(&stubLookup{}, nil)

	_, err := r.Resolve("openai/gpt-4o").Chat(context.Background(), &ChatRequest{})
	assert.ErrorIs(t, err, ErrNoBuilder)
}

func TestRegistry_Resolve_Concurrent(t *testing.T) {
	var built atomic.Int32
	r := NewRegistry(&stubLookup{}, zap.NewNop(), WithBuilder(KindGateway, func(cfg BackendConfig) (Provider, error) {
		built.Add(1)
		return &stubClient{cfg: cfg}, nil
	}))

	const workers = 32
	results := make([]Provider, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve("shared/model")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
	cached, ok := r.Cached("shared/model")
	require.True(t, ok)
	for _, p := range results {
		assert.Same(t, cached, p)
	}
	assert.GreaterOrEqual(t, built.Load(), int32(1))
}

func TestSpecs(t *testing.T) {
	spec, ok := FindSpec("anthropic")
	require.True(t, ok)
	assert.Equal(t, "claude-opus-4-5", spec.WireModel("anthropic/claude-opus-4-5"))
	assert.Equal(t, "claude-opus-4-5", spec.WireModel("claude-opus-4-5"))

	openrouter, ok := FindSpec("openrouter")
	require.True(t, ok)
	assert.Equal(t, "anthropic/claude-3", openrouter.WireModel("anthropic/claude-3"))

	_, ok = FindSpec("nope")
	assert.False(t, ok)

	match, ok := MatchSpec("Qwen-Max")
	require.True(t, ok)
	assert.Equal(t, "dashscope", match.Name)

	_, ok = MatchSpec("mystery")
	assert.False(t, ok)

	specsCopy := Specs()
	specsCopy[0].Name = "changed"
	first, _ := FindSpec("openrouter")
	assert.Equal(t, "openrouter", first.Name)
}
