package llm

import (
	"context"
	"errors"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter speaks the Anthropic Messages dialect with input_schema
// native tool use.
type AnthropicAdapter struct {
	id     string
	client anthropic.Client
	model  string
}

// NewAnthropicAdapter creates an adapter for the Anthropic Messages API.
func NewAnthropicAdapter(id, model, apiKey string) *AnthropicAdapter {
	return &AnthropicAdapter{
		id:     id,
		client: anthropic.NewClient(anthropicopt.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (a *AnthropicAdapter) Name() string              { return a.id }
func (a *AnthropicAdapter) SupportsNativeTools() bool { return true }

func (a *AnthropicAdapter) Send(ctx context.Context, req Request) (*Response, error) {
	msg, err := a.client.Messages.New(ctx, a.translateRequest(req))
	if err != nil {
		return nil, a.classify(err)
	}
	return a.translateResponse(req, msg)
}

func (a *AnthropicAdapter) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.translateRequest(req))

	ch := make(chan Chunk, 64)
	go func() {
		defer close(ch)

		acc := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				ch <- Chunk{Err: newMalformedError(a.id, "stream accumulation failed", err)}
				return
			}
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
					ch <- Chunk{Text: d.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- Chunk{Err: a.classify(err)}
			return
		}

		final, err := a.translateResponse(req, &acc)
		if err != nil {
			ch <- Chunk{Err: err}
			return
		}
		ch <- Chunk{Done: true, Final: final}
	}()
	return ch, nil
}

func (a *AnthropicAdapter) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return a.model
}

func (a *AnthropicAdapter) translateRequest(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.modelFor(req)),
		MaxTokens: int64(maxTokens),
	}

	if sys := req.SystemText(); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			if m.ToolCall != nil {
				blocks = append(blocks, anthropic.NewToolUseBlock(
					m.ToolCall.ID, m.ToolCall.Arguments, m.ToolCall.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			params.Messages = append(params.Messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case RoleTool:
			if m.ToolResult == nil {
				continue
			}
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolResult.CallID, m.ToolResult.Output, m.ToolResult.IsError())))
		}
	}

	for _, s := range req.Tools {
		tp := anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(s.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: s.Parameters["properties"],
				Required:   stringSlice(s.Parameters["required"]),
			},
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &tp})
	}

	return params
}

func (a *AnthropicAdapter) translateResponse(req Request, msg *anthropic.Message) (*Response, error) {
	resp := &Response{Backend: a.id, Model: a.modelFor(req)}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += b.Text
		case anthropic.ToolUseBlock:
			if resp.ToolCall != nil {
				continue // uniform shape carries one call per step
			}
			args, err := decodeArguments(string(b.Input))
			if err != nil {
				return nil, newMalformedError(a.id, "tool_use input is not valid JSON", err)
			}
			resp.ToolCall = &ToolCallRequest{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
				RawText:   string(b.Input),
			}
			resp.Native = true
		}
	}
	return resp, nil
}

func (a *AnthropicAdapter) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyHTTPStatus(a.id, apiErr.StatusCode, err)
	}
	return classifyTransportErr(a.id, err)
}

// stringSlice coerces a JSON-schema "required" value, which may arrive as
// []string from Go-built specs or []any from decoded JSON.
func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
