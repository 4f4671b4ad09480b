package llm

import "context"

// Adapter is implemented once per backend. Each adapter owns the full mapping
// between the uniform Request/Response shapes and one provider's wire dialect,
// including that provider's native function-calling format where it has one.
//
// An adapter makes exactly one outbound call per Send or Stream invocation and
// classifies every failure into the BackendError taxonomy so the Router can
// make retry decisions.
type Adapter interface {
	// Name returns the backend identifier (e.g. "openai", "anthropic").
	Name() string

	// Send performs one blocking completion call.
	Send(ctx context.Context, req Request) (*Response, error)

	// Stream performs one completion call delivered as incremental chunks.
	// The channel is closed after the final chunk (Done=true) or an error
	// chunk. Adapters for backends without a streaming API emit the whole
	// completion as a single chunk.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)

	// SupportsNativeTools reports whether the backend has a structured
	// function-calling channel. When false, tool use relies entirely on
	// text-path extraction downstream.
	SupportsNativeTools() bool
}

// Closer is implemented by adapters holding connections that need teardown.
type Closer interface {
	Close() error
}
