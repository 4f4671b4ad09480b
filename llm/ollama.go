package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// OllamaAdapter speaks to a local Ollama server. It is the no-native-tools
// dialect family: the conversation is flattened into a plain-text prompt and
// tool calls, if any, must be recovered from the completion text downstream.
type OllamaAdapter struct {
	id     string
	client *ollama.Client
	model  string
}

// NewOllamaAdapter creates an adapter for an Ollama server. host may be empty
// for the default local endpoint.
func NewOllamaAdapter(id, model, host string) (*OllamaAdapter, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaAdapter{
		id:     id,
		client: ollama.NewClient(u, http.DefaultClient),
		model:  model,
	}, nil
}

func (a *OllamaAdapter) Name() string              { return a.id }
func (a *OllamaAdapter) SupportsNativeTools() bool { return false }

func (a *OllamaAdapter) Send(ctx context.Context, req Request) (*Response, error) {
	system, prompt := flattenConversation(req)

	stream := false
	var text strings.Builder
	greq := &ollama.GenerateRequest{
		Model:  a.modelFor(req),
		Prompt: prompt,
		System: system,
		Stream: &stream,
	}
	err := a.client.Generate(ctx, greq, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return nil, a.classify(err)
	}
	return &Response{Backend: a.id, Model: a.modelFor(req), Text: text.String()}, nil
}

func (a *OllamaAdapter) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	system, prompt := flattenConversation(req)

	ch := make(chan Chunk, 64)
	go func() {
		defer close(ch)

		var text strings.Builder
		greq := &ollama.GenerateRequest{
			Model:  a.modelFor(req),
			Prompt: prompt,
			System: system,
		}
		err := a.client.Generate(ctx, greq, func(gr ollama.GenerateResponse) error {
			if gr.Response != "" {
				text.WriteString(gr.Response)
				ch <- Chunk{Text: gr.Response}
			}
			return nil
		})
		if err != nil {
			ch <- Chunk{Err: a.classify(err)}
			return
		}
		ch <- Chunk{Done: true, Final: &Response{
			Backend: a.id,
			Model:   a.modelFor(req),
			Text:    text.String(),
		}}
	}()
	return ch, nil
}

func (a *OllamaAdapter) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return a.model
}

func (a *OllamaAdapter) classify(err error) error {
	var se ollama.StatusError
	if errors.As(err, &se) {
		return classifyHTTPStatus(a.id, se.StatusCode, err)
	}
	return classifyTransportErr(a.id, err)
}

// flattenConversation renders a structured conversation as a single prompt
// for backends without a chat or tool interface. Tool results are labelled so
// the model can correlate them with its earlier requests.
func flattenConversation(req Request) (system string, prompt string) {
	var parts []string
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case RoleUser:
			parts = append(parts, m.Content)
		case RoleAssistant:
			text := m.Content
			if m.ToolCall != nil {
				text += "\nAction: " + m.ToolCall.Name +
					"\nAction Input: " + string(m.ToolCall.ArgumentsJSON())
			}
			if text != "" {
				parts = append(parts, "[Assistant]: "+text)
			}
		case RoleTool:
			label := "[Tool Result]"
			if m.ToolResult != nil && m.ToolResult.IsError() {
				label = "[Tool Error]"
			}
			parts = append(parts, label+": "+m.Content)
		}
	}
	return system, strings.Join(parts, "\n")
}
