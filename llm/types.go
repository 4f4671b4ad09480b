package llm

import (
	"encoding/json"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolErrorKind classifies tool-side failures. These are carried as values
// inside ToolResult, never as Go errors: a failed tool call is an observation
// for the model, not a fault of the runtime.
type ToolErrorKind string

const (
	ToolErrNone          ToolErrorKind = ""
	ToolErrUnknownTool   ToolErrorKind = "unknown_tool"
	ToolErrBadArguments  ToolErrorKind = "bad_arguments"
	ToolErrPathViolation ToolErrorKind = "path_violation"
	ToolErrDenylistMatch ToolErrorKind = "denylist_match"
	ToolErrTimeout       ToolErrorKind = "timeout"
	ToolErrNonZeroExit   ToolErrorKind = "non_zero_exit"
)

// ToolSpec declares one tool available to the model. Parameters is a JSON
// Schema object. The set of specs is closed for the duration of a run.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCallRequest is a model-requested tool invocation in uniform shape.
// RawText preserves the original payload for diagnostics, since text-path
// extraction may be lossy.
type ToolCallRequest struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	RawText   string         `json:"raw_text,omitempty"`
}

// ArgumentsJSON renders the arguments map as canonical JSON.
func (t ToolCallRequest) ArgumentsJSON() json.RawMessage {
	raw, err := json.Marshal(t.Arguments)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

// ToolResult is the outcome of dispatching a ToolCallRequest.
type ToolResult struct {
	CallID   string        `json:"call_id,omitempty"`
	ToolName string        `json:"tool_name"`
	Output   string        `json:"output"`
	Err      ToolErrorKind `json:"error,omitempty"`
	ExitCode int           `json:"exit_code,omitempty"`
}

// IsError reports whether the result carries a tool error.
func (r ToolResult) IsError() bool { return r.Err != ToolErrNone }

// Message is one entry in a conversation. Exactly one of ToolCall or
// ToolResult may be set, and only on assistant and tool messages respectively.
type Message struct {
	Role       Role             `json:"role"`
	Content    string           `json:"content"`
	ToolCall   *ToolCallRequest `json:"tool_call,omitempty"`
	ToolResult *ToolResult      `json:"tool_result,omitempty"`
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message with text content.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// AssistantToolCallMessage creates an assistant Message carrying a tool call.
func AssistantToolCallMessage(text string, call ToolCallRequest) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCall: &call}
}

// ToolResultMessage creates a tool Message carrying a tool result.
func ToolResultMessage(result ToolResult) Message {
	return Message{Role: RoleTool, Content: result.Output, ToolResult: &result}
}

// Conversation is an append-only ordered message log. It is owned by exactly
// one run; callers receive copies, never the backing slice.
type Conversation struct {
	messages []Message
}

// Append adds messages to the end of the log.
func (c *Conversation) Append(msgs ...Message) {
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the log.
func (c *Conversation) Len() int { return len(c.messages) }

// Last returns the most recent message, or a zero Message if empty.
func (c *Conversation) Last() Message {
	if len(c.messages) == 0 {
		return Message{}
	}
	return c.messages[len(c.messages)-1]
}

// LastAssistantText returns the text of the most recent assistant message.
func (c *Conversation) LastAssistantText() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleAssistant && c.messages[i].Content != "" {
			return c.messages[i].Content
		}
	}
	return ""
}

// EstimateTokens approximates the token footprint of the conversation using
// the chars/4 heuristic. Good enough for context-window routing; exact
// tokenization is backend-specific and not worth a round trip.
func (c *Conversation) EstimateTokens() int {
	return messageChars(c.messages) / 4
}

// messageChars is the character count behind the chars/4 heuristic, shared
// with the router's per-request estimate.
func messageChars(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
		if m.ToolCall != nil {
			total += len(m.ToolCall.RawText)
		}
	}
	return total
}

// Request is the uniform input shape handed to an adapter.
type Request struct {
	Model     string     `json:"model"`
	Messages  []Message  `json:"messages"`
	Tools     []ToolSpec `json:"tools,omitempty"`
	MaxTokens int        `json:"max_tokens,omitempty"`
}

// SystemText concatenates all system message content in order.
func (r Request) SystemText() string {
	var sb strings.Builder
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(m.Content)
		}
	}
	return sb.String()
}

// Response is the uniform output shape produced by an adapter.
// Native reports whether ToolCall came from the backend's structured
// function-calling channel rather than from text extraction.
type Response struct {
	Backend  string           `json:"backend"`
	Model    string           `json:"model"`
	Text     string           `json:"text"`
	ToolCall *ToolCallRequest `json:"tool_call,omitempty"`
	Native   bool             `json:"native"`
}

// Chunk is one increment of a streaming response. Done is set on the last
// chunk, which also carries the assembled Response.
type Chunk struct {
	Text  string
	Done  bool
	Final *Response
	Err   error
}
