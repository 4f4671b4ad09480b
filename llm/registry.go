package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Dialect names the wire-protocol family a backend speaks.
type Dialect string

const (
	DialectOpenAI    Dialect = "openai"
	DialectAnthropic Dialect = "anthropic"
	DialectGemini    Dialect = "gemini"
	DialectOllama    Dialect = "ollama"
	DialectGollm     Dialect = "gollm"
)

// Descriptor is the static, read-only configuration of one backend.
type Descriptor struct {
	ID                  string  `koanf:"id" json:"id"`
	Dialect             Dialect `koanf:"dialect" json:"dialect"`
	Provider            string  `koanf:"provider" json:"provider,omitempty"` // gollm dialect only
	Model               string  `koanf:"model" json:"model"`
	Tier                string  `koanf:"tier" json:"tier"`
	ContextWindowTokens int     `koanf:"context_window_tokens" json:"context_window_tokens"`
	SupportsNativeTools bool    `koanf:"supports_native_tools" json:"supports_native_tools"`
	CostWeight          float64 `koanf:"cost_weight" json:"cost_weight"`
	CredentialEnv       string  `koanf:"credential_env" json:"credential_env,omitempty"`
	BaseURL             string  `koanf:"base_url" json:"base_url,omitempty"`
}

// CredentialResolver resolves the one secret a backend needs. It is a narrow
// seam to the secret-storage collaborator; this package ships only the
// environment-backed default.
type CredentialResolver interface {
	// Credential returns the secret for a backend and whether it exists.
	Credential(d Descriptor) (string, bool)
}

// EnvResolver resolves credentials from environment variables named by each
// descriptor's CredentialEnv. Backends with no CredentialEnv need no secret.
type EnvResolver struct{}

func (EnvResolver) Credential(d Descriptor) (string, bool) {
	if d.CredentialEnv == "" {
		return "", true
	}
	v := os.Getenv(d.CredentialEnv)
	return v, v != ""
}

// Registry holds the backend descriptor table and constructs adapters
// lazily: no credential or network work happens until the first request
// needs a given backend. Initialization is serialized by a mutex while use
// of already-initialized adapters proceeds concurrently.
type Registry struct {
	descriptors []Descriptor
	resolver    CredentialResolver
	logger      *slog.Logger

	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a Registry over a descriptor table. A nil resolver
// defaults to EnvResolver; a nil logger discards.
func NewRegistry(descriptors []Descriptor, resolver CredentialResolver, logger *slog.Logger) *Registry {
	if resolver == nil {
		resolver = EnvResolver{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		descriptors: descriptors,
		resolver:    resolver,
		logger:      logger,
		adapters:    make(map[string]Adapter),
	}
}

// Descriptors returns a copy of the full descriptor table.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Lookup returns the descriptor for a backend ID.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	for _, d := range r.descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Available returns the descriptors whose credential resolves. A missing
// credential removes the backend from routing rather than failing anything.
func (r *Registry) Available() []Descriptor {
	var out []Descriptor
	for _, d := range r.descriptors {
		if _, ok := r.resolver.Credential(d); ok {
			out = append(out, d)
		} else {
			r.logger.Debug("backend skipped, no credential", "backend", d.ID, "env", d.CredentialEnv)
		}
	}
	return out
}

// Adapter returns the adapter for a backend, constructing it on first use.
func (r *Registry) Adapter(ctx context.Context, id string) (Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[id]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[id]; ok {
		return a, nil
	}

	d, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", id)
	}
	cred, ok := r.resolver.Credential(d)
	if !ok {
		return nil, newAuthError(id, "no credential available", nil)
	}

	a, err := r.buildAdapter(ctx, d, cred)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("backend initialized", "backend", id, "dialect", string(d.Dialect))
	r.adapters[id] = a
	return a, nil
}

func (r *Registry) buildAdapter(ctx context.Context, d Descriptor, cred string) (Adapter, error) {
	switch d.Dialect {
	case DialectOpenAI:
		return NewOpenAIAdapter(d.ID, d.Model, cred, d.BaseURL), nil
	case DialectAnthropic:
		return NewAnthropicAdapter(d.ID, d.Model, cred), nil
	case DialectGemini:
		return NewGeminiAdapter(ctx, d.ID, d.Model, cred)
	case DialectOllama:
		return NewOllamaAdapter(d.ID, d.Model, d.BaseURL)
	case DialectGollm:
		return NewGollmAdapter(d.ID, d.Provider, d.Model, cred)
	default:
		return nil, fmt.Errorf("unknown dialect %q for backend %q", d.Dialect, d.ID)
	}
}

// Register installs a pre-built adapter, bypassing lazy construction.
// Used by tests and by hosts embedding custom backends.
func (r *Registry) Register(d Descriptor, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Lookup(d.ID); !ok {
		r.descriptors = append(r.descriptors, d)
	}
	r.adapters[d.ID] = a
}

// Close releases resources held by initialized adapters.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, a := range r.adapters {
		if c, ok := a.(Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
