package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter speaks the OpenAI chat-completion dialect with tools[]-style
// native function calling. It also serves any OpenAI-compatible endpoint via
// a custom base URL.
type OpenAIAdapter struct {
	id     string
	client *openai.Client
	model  string
}

// NewOpenAIAdapter creates an adapter for an OpenAI-compatible backend.
// baseURL may be empty for the public API.
func NewOpenAIAdapter(id, model, apiKey, baseURL string) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		id:     id,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (a *OpenAIAdapter) Name() string              { return a.id }
func (a *OpenAIAdapter) SupportsNativeTools() bool { return true }

func (a *OpenAIAdapter) Send(ctx context.Context, req Request) (*Response, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.translateRequest(req))
	if err != nil {
		return nil, a.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, newMalformedError(a.id, "response contained no choices", nil)
	}
	return a.translateResponse(req, resp.Choices[0].Message)
}

func (a *OpenAIAdapter) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	creq := a.translateRequest(req)
	creq.Stream = true
	stream, err := a.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, a.classify(err)
	}

	ch := make(chan Chunk, 64)
	go func() {
		defer close(ch)
		defer stream.Close()

		var text string
		// Partial tool-call arguments arrive as deltas keyed by index;
		// only the first call is kept, matching the uniform shape.
		var callName, callID, callArgs string

		for {
			part, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				ch <- Chunk{Err: a.classify(err)}
				return
			}
			if len(part.Choices) == 0 {
				continue
			}
			delta := part.Choices[0].Delta
			if delta.Content != "" {
				text += delta.Content
				ch <- Chunk{Text: delta.Content}
			}
			for _, tc := range delta.ToolCalls {
				if tc.ID != "" && callID == "" {
					callID = tc.ID
				}
				if tc.Function.Name != "" && callName == "" {
					callName = tc.Function.Name
				}
				callArgs += tc.Function.Arguments
			}
		}

		final := &Response{Backend: a.id, Model: a.modelFor(req), Text: text}
		if callName != "" {
			args, err := decodeArguments(callArgs)
			if err != nil {
				ch <- Chunk{Err: newMalformedError(a.id, "tool call arguments are not valid JSON", err)}
				return
			}
			final.ToolCall = &ToolCallRequest{ID: callID, Name: callName, Arguments: args, RawText: callArgs}
			final.Native = true
		}
		ch <- Chunk{Done: true, Final: final}
	}()
	return ch, nil
}

func (a *OpenAIAdapter) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return a.model
}

func (a *OpenAIAdapter) translateRequest(req Request) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: m.Content,
			})
		case RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		case RoleAssistant:
			cm := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			if m.ToolCall != nil {
				cm.ToolCalls = []openai.ToolCall{{
					ID:   m.ToolCall.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      m.ToolCall.Name,
						Arguments: string(m.ToolCall.ArgumentsJSON()),
					},
				}}
			}
			msgs = append(msgs, cm)
		case RoleTool:
			cm := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleTool,
				Content: m.Content,
			}
			if m.ToolResult != nil {
				cm.ToolCallID = m.ToolResult.CallID
				cm.Name = m.ToolResult.ToolName
				if m.ToolResult.IsError() {
					cm.Content = fmt.Sprintf("error (%s): %s", m.ToolResult.Err, m.ToolResult.Output)
				}
			}
			msgs = append(msgs, cm)
		}
	}

	var tools []openai.Tool
	for _, s := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model:     a.modelFor(req),
		Messages:  msgs,
		Tools:     tools,
		MaxTokens: req.MaxTokens,
	}
}

func (a *OpenAIAdapter) translateResponse(req Request, msg openai.ChatCompletionMessage) (*Response, error) {
	resp := &Response{Backend: a.id, Model: a.modelFor(req), Text: msg.Content}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		args, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			return nil, newMalformedError(a.id, "tool call arguments are not valid JSON", err)
		}
		resp.ToolCall = &ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
			RawText:   tc.Function.Arguments,
		}
		resp.Native = true
	}
	return resp, nil
}

func (a *OpenAIAdapter) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyHTTPStatus(a.id, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyHTTPStatus(a.id, reqErr.HTTPStatusCode, err)
	}
	return classifyTransportErr(a.id, err)
}

// decodeArguments parses a native function-call argument payload. An empty
// payload decodes to an empty map: providers emit "" for zero-argument calls.
func decodeArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}
