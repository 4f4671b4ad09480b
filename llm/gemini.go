package llm

import (
	"context"
	"errors"
	"fmt"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiAdapter speaks the Gemini dialect with declarative-function-list
// native tool calling.
type GeminiAdapter struct {
	id     string
	client *genai.Client
	model  string
}

// NewGeminiAdapter creates an adapter for the Gemini API.
func NewGeminiAdapter(ctx context.Context, id, model, apiKey string) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiAdapter{id: id, client: client, model: model}, nil
}

func (a *GeminiAdapter) Name() string              { return a.id }
func (a *GeminiAdapter) SupportsNativeTools() bool { return true }

func (a *GeminiAdapter) Close() error { return a.client.Close() }

func (a *GeminiAdapter) Send(ctx context.Context, req Request) (*Response, error) {
	session, parts, err := a.translateRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := session.SendMessage(ctx, parts...)
	if err != nil {
		return nil, a.classify(err)
	}
	return a.translateResponse(req, resp)
}

func (a *GeminiAdapter) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	session, parts, err := a.translateRequest(req)
	if err != nil {
		return nil, err
	}
	iter := session.SendMessageStream(ctx, parts...)

	ch := make(chan Chunk, 64)
	go func() {
		defer close(ch)

		final := &Response{Backend: a.id, Model: a.modelFor(req)}
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				ch <- Chunk{Err: a.classify(err)}
				return
			}
			partial, err := a.translateResponse(req, resp)
			if err != nil {
				ch <- Chunk{Err: err}
				return
			}
			if partial.Text != "" {
				final.Text += partial.Text
				ch <- Chunk{Text: partial.Text}
			}
			if partial.ToolCall != nil && final.ToolCall == nil {
				final.ToolCall = partial.ToolCall
				final.Native = true
			}
		}
		ch <- Chunk{Done: true, Final: final}
	}()
	return ch, nil
}

func (a *GeminiAdapter) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return a.model
}

// translateRequest builds a chat session holding all but the last message as
// history, and returns the last message's parts for sending.
func (a *GeminiAdapter) translateRequest(req Request) (*genai.ChatSession, []genai.Part, error) {
	model := a.client.GenerativeModel(a.modelFor(req))

	if sys := req.SystemText(); sys != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: functionDeclarations(req.Tools)}}
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(m.Content)},
			})
		case RoleAssistant:
			var parts []genai.Part
			if m.Content != "" {
				parts = append(parts, genai.Text(m.Content))
			}
			if m.ToolCall != nil {
				parts = append(parts, genai.FunctionCall{
					Name: m.ToolCall.Name,
					Args: m.ToolCall.Arguments,
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case RoleTool:
			if m.ToolResult == nil {
				continue
			}
			response := map[string]any{"output": m.ToolResult.Output}
			if m.ToolResult.IsError() {
				response["error"] = string(m.ToolResult.Err)
			}
			contents = append(contents, &genai.Content{
				Role:  "function",
				Parts: []genai.Part{genai.FunctionResponse{Name: m.ToolResult.ToolName, Response: response}},
			})
		}
	}

	if len(contents) == 0 {
		return nil, nil, newMalformedError(a.id, "request contained no sendable messages", nil)
	}

	session := model.StartChat()
	last := contents[len(contents)-1]
	session.History = contents[:len(contents)-1]
	return session, last.Parts, nil
}

func (a *GeminiAdapter) translateResponse(req Request, resp *genai.GenerateContentResponse) (*Response, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, newMalformedError(a.id, "response contained no candidates", nil)
	}
	out := &Response{Backend: a.id, Model: a.modelFor(req)}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Text += string(p)
		case genai.FunctionCall:
			if out.ToolCall != nil {
				continue
			}
			out.ToolCall = &ToolCallRequest{
				Name:      p.Name,
				Arguments: p.Args,
				RawText:   fmt.Sprintf("%v", p.Args),
			}
			out.Native = true
		}
	}
	return out, nil
}

func (a *GeminiAdapter) classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyHTTPStatus(a.id, apiErr.Code, err)
	}
	return classifyTransportErr(a.id, err)
}

// functionDeclarations converts tool specs into Gemini's typed schema
// representation. JSON Schema arrives as loosely typed maps; only the subset
// Gemini understands is mapped.
func functionDeclarations(specs []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  toGenaiSchema(s.Parameters),
		})
	}
	return decls
}

func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{Type: genaiType(schema["type"])}
	if d, ok := schema["description"].(string); ok {
		out.Description = d
	}
	if enum, ok := schema["enum"]; ok {
		out.Enum = stringSlice(enum)
	}
	if req, ok := schema["required"]; ok {
		out.Required = stringSlice(req)
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, sub := range props {
			if subMap, ok := sub.(map[string]any); ok {
				out.Properties[name] = toGenaiSchema(subMap)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = toGenaiSchema(items)
	}
	return out
}

func genaiType(v any) genai.Type {
	s, _ := v.(string)
	switch s {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
