package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// FileConfig is the providers file layout:
//
//	providers:
//	  openrouter:
//	    api_key: sk-or-...
//	  custom:
//	    api_base: http://localhost:8000/v1
//	router:
//	  models: [anthropic/claude-opus-4-5, openai/gpt-4o]
//	  default_model: anthropic/claude-opus-4-5
type FileConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Router    FileRouterConfig          `mapstructure:"router"`
}

// FileRouterConfig is the router section of the providers file
type FileRouterConfig struct {
	Models       []string `mapstructure:"models"`
	DefaultModel string   `mapstructure:"default_model"`
}

// LoadProvidersFile reads a providers file. The format follows the file extension
// (yaml, json or toml). ${VAR} references in credentials and endpoints are expanded
// from the environment.
func LoadProvidersFile(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file FileConfig
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	for name, p := range file.Providers {
		p.APIKey = os.ExpandEnv(p.APIKey)
		p.APIBase = os.ExpandEnv(p.APIBase)
		for k, val := range p.ExtraHeaders {
			p.ExtraHeaders[k] = os.ExpandEnv(val)
		}
		file.Providers[name] = p
	}
	return &file, nil
}
