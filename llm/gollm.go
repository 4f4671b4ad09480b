package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"
)

// GollmAdapter serves any additional provider gollm supports (groq, mistral,
// and friends) through plain-text completion. Like Ollama it belongs to the
// no-native-tools dialect family.
type GollmAdapter struct {
	id  string
	llm gollm.LLM
}

// NewGollmAdapter creates a text-completion adapter backed by gollm.
func NewGollmAdapter(id, provider, model, apiKey string) (*GollmAdapter, error) {
	opts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxRetries(0), // the Router owns retry decisions
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		opts = append(opts, gollm.SetAPIKey(apiKey))
	}
	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("gollm init for %s: %w", provider, err)
	}
	return &GollmAdapter{id: id, llm: llm}, nil
}

func (a *GollmAdapter) Name() string              { return a.id }
func (a *GollmAdapter) SupportsNativeTools() bool { return false }

func (a *GollmAdapter) Send(ctx context.Context, req Request) (*Response, error) {
	text, err := a.llm.Generate(ctx, a.translatePrompt(req))
	if err != nil {
		return nil, classifyTransportErr(a.id, err)
	}
	return &Response{Backend: a.id, Model: req.Model, Text: text}, nil
}

// Stream emits the whole completion as a single chunk: gollm's streaming
// support is provider-dependent and the consumer contract only requires
// incremental delivery, not token granularity.
func (a *GollmAdapter) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	ch := make(chan Chunk, 2)
	go func() {
		defer close(ch)
		resp, err := a.Send(ctx, req)
		if err != nil {
			ch <- Chunk{Err: err}
			return
		}
		if resp.Text != "" {
			ch <- Chunk{Text: resp.Text}
		}
		ch <- Chunk{Done: true, Final: resp}
	}()
	return ch, nil
}

func (a *GollmAdapter) translatePrompt(req Request) *gollm.Prompt {
	system, prompt := flattenConversation(req)
	if prompt == "" {
		prompt = "Continue."
	}
	var opts []gollm.PromptOption
	if system != "" {
		opts = append(opts, gollm.WithSystemPrompt(strings.TrimSpace(system), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, gollm.WithMaxLength(req.MaxTokens))
	}
	return gollm.NewPrompt(prompt, opts...)
}
