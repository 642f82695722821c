package providers

import "strings"

// Logical provider names with special handling in Classify
const (
	ProviderOpenAICodex = "openai_codex"
	ProviderCustom      = "custom"
)

// codexModelPrefix marks models served through the OAuth client
const codexModelPrefix = "openai-codex/"

// ProviderSpec describes a known gateway provider
type ProviderSpec struct {
	// Name is the logical provider name used in configuration
	Name string

	// Keywords matched (case-insensitively) against model identifiers
	Keywords []string

	// DefaultAPIBase is used when configuration does not set one
	DefaultAPIBase string

	// StripPrefix removes the "provider/" part of the model id before sending it
	StripPrefix bool
}

// specs is ordered: the first keyword match wins
var specs = []ProviderSpec{
	{Name: "openrouter", Keywords: []string{"openrouter"}, DefaultAPIBase: "https://openrouter.ai/api/v1"},
	{Name: "anthropic", Keywords: []string{"anthropic", "claude"}, DefaultAPIBase: "https://api.anthropic.com/v1", StripPrefix: true},
	{Name: "openai", Keywords: []string{"openai", "gpt"}, DefaultAPIBase: "https://api.openai.com/v1", StripPrefix: true},
	{Name: "deepseek", Keywords: []string{"deepseek"}, DefaultAPIBase: "https://api.deepseek.com/v1", StripPrefix: true},
	{Name: "groq", Keywords: []string{"groq"}, DefaultAPIBase: "https://api.groq.com/openai/v1", StripPrefix: true},
	{Name: "gemini", Keywords: []string{"gemini"}, DefaultAPIBase: "https://generativelanguage.googleapis.com/v1beta/openai", StripPrefix: true},
	{Name: "moonshot", Keywords: []string{"moonshot", "kimi"}, DefaultAPIBase: "https://api.moonshot.cn/v1", StripPrefix: true},
	{Name: "dashscope", Keywords: []string{"qwen", "dashscope"}, DefaultAPIBase: "https://dashscope.aliyuncs.com/compatible-mode/v1", StripPrefix: true},
	{Name: "zhipu", Keywords: []string{"glm", "zhipu"}, DefaultAPIBase: "https://open.bigmodel.cn/api/paas/v4", StripPrefix: true},
	{Name: "vllm", Keywords: []string{"vllm"}, DefaultAPIBase: "http://localhost:8000/v1", StripPrefix: true},
}

// FindSpec returns the spec registered under name
func FindSpec(name string) (ProviderSpec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return ProviderSpec{}, false
}

// MatchSpec returns the first spec whose keywords occur in the model identifier
func MatchSpec(model string) (ProviderSpec, bool) {
	lower := strings.ToLower(model)
	for _, s := range specs {
		for _, kw := range s.Keywords {
			if strings.Contains(lower, kw) {
				return s, true
			}
		}
	}
	return ProviderSpec{}, false
}

// Specs returns a copy of the known provider specs
func Specs() []ProviderSpec {
	out := make([]ProviderSpec, len(specs))
	copy(out, specs)
	return out
}

// WireModel returns the model name to send to the provider's API
func (s ProviderSpec) WireModel(model string) string {
	if !s.StripPrefix {
		return model
	}
	if i := strings.Index(model, "/"); i >= 0 {
		return model[i+1:]
	}
	return model
}
