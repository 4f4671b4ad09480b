package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config holds the model-layer configuration: the backend descriptor table,
// the default backend, and the ordered fallback chain. Chain order is data,
// not code.
type Config struct {
	Default  string       `koanf:"default"`
	Chain    []string     `koanf:"chain"`
	Backends []Descriptor `koanf:"backends"`
}

// DefaultConfig returns the built-in backend table and chain order. Every
// field can be overridden by a config file or PRAXIS_-prefixed environment
// variables.
func DefaultConfig() Config {
	return Config{
		Default: "gh",
		Chain:   []string{"gh", "gemini", "vertex", "openai", "anthropic", "ollama"},
		Backends: []Descriptor{
			{
				ID: "gh", Dialect: DialectOpenAI, Model: "gpt-4o",
				Tier: "standard", ContextWindowTokens: 128000,
				SupportsNativeTools: true, CostWeight: 0,
				CredentialEnv: "GITHUB_TOKEN",
				BaseURL:       "https://models.github.ai/inference",
			},
			{
				ID: "gemini", Dialect: DialectGemini, Model: "gemini-2.0-flash",
				Tier: "standard", ContextWindowTokens: 1048576,
				SupportsNativeTools: true, CostWeight: 0.15,
				CredentialEnv: "GEMINI_API_KEY",
			},
			{
				ID: "vertex", Dialect: DialectGemini, Model: "gemini-1.5-pro",
				Tier: "premium", ContextWindowTokens: 1048576,
				SupportsNativeTools: true, CostWeight: 1.25,
				CredentialEnv: "GOOGLE_API_KEY",
			},
			{
				ID: "openai", Dialect: DialectOpenAI, Model: "gpt-4o-mini",
				Tier: "standard", ContextWindowTokens: 128000,
				SupportsNativeTools: true, CostWeight: 0.6,
				CredentialEnv: "OPENAI_API_KEY",
			},
			{
				ID: "anthropic", Dialect: DialectAnthropic, Model: "claude-sonnet-4-5",
				Tier: "premium", ContextWindowTokens: 200000,
				SupportsNativeTools: true, CostWeight: 3.0,
				CredentialEnv: "ANTHROPIC_API_KEY",
			},
			{
				ID: "ollama", Dialect: DialectOllama, Model: "qwen2.5-coder",
				Tier: "local", ContextWindowTokens: 32768,
				SupportsNativeTools: false, CostWeight: 0,
			},
		},
	}
}

// LoadConfig loads configuration with precedence defaults < YAML file < env.
// path may be empty or point at a missing file, in which case only defaults
// and environment apply.
//
// Environment variables use the PRAXIS_ prefix with underscores as key
// delimiters, e.g. PRAXIS_DEFAULT=anthropic.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := k.Load(env.Provider("PRAXIS_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "PRAXIS_")), "_", ".")
	}), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	ids := make(map[string]bool, len(c.Backends))
	for _, d := range c.Backends {
		if d.ID == "" {
			return fmt.Errorf("backend with empty id")
		}
		if ids[d.ID] {
			return fmt.Errorf("duplicate backend id %q", d.ID)
		}
		ids[d.ID] = true
	}
	if c.Default != "" && !ids[c.Default] {
		return fmt.Errorf("default backend %q is not in the backend table", c.Default)
	}
	for _, id := range c.Chain {
		if !ids[id] {
			return fmt.Errorf("chain entry %q is not in the backend table", id)
		}
	}
	return nil
}
