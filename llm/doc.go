// Package llm provides a backend-agnostic model layer for agent runtimes:
// uniform request/response shapes, a typed error taxonomy, per-backend
// adapters, and a router that walks a configured fallback chain.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Adapter: one implementation per wire dialect (OpenAI-compatible,
//     Anthropic, Gemini, Ollama, gollm), owning request translation,
//     streaming, and error classification for its family.
//   - Registry: the backend descriptor table with lazy adapter construction
//     and credential resolution.
//   - Router: backend selection and fallback. The chain order is
//     configuration, never hardcoded; a backend is tried at most once per
//     logical call.
//   - Config: the descriptor table and chain, loadable from YAML and
//     PRAXIS_-prefixed environment variables.
//
// # Quick Start
//
//	cfg, _ := llm.LoadConfig("")
//	registry := llm.NewRegistry(cfg.Backends, llm.EnvResolver{}, logger)
//	defer registry.Close()
//	router := llm.NewRouter(registry, cfg.Default, cfg.Chain, logger)
//
//	resp, err := router.Send(ctx, llm.Request{
//	    Messages: []llm.Message{llm.UserMessage("Hello")},
//	}, "")
//
// # Error Taxonomy
//
// Backend failures classify into Auth, RateLimit, Timeout, Network, and
// MalformedResponse, each a concrete type embedding BackendError. IsRetryable
// decides whether the router advances the chain; auth failures surface
// immediately because retrying them elsewhere cannot help. An exhausted chain
// yields AllBackendsExhausted carrying the backends tried and the last error.
package llm
