package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/praxisworks/praxis/llm"
)

// Tool is a named, schema-described local capability. The set of tools is
// closed once a run starts. One concrete type implements Tool per capability;
// dispatch is a name-keyed lookup over those types, with every side effect
// routed through the Sandbox.
type Tool interface {
	Name() string
	Spec() llm.ToolSpec
	Run(ctx context.Context, args map[string]any, sb *Sandbox) llm.ToolResult
}

// Registry holds the closed tool set for a run and dispatches calls.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool. Registration happens before a run
// starts; the registry is read-only afterwards.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Specs returns the tool specs in stable name order.
func (r *Registry) Specs() []llm.ToolSpec {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	specs := make([]llm.ToolSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

// Dispatch validates and executes a tool call. Unknown tool names yield an
// UnknownTool result without invoking anything; all other errors come back
// as ToolResult values from the tool itself.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCallRequest, sb *Sandbox) llm.ToolResult {
	t, ok := r.tools[call.Name]
	if !ok {
		return llm.ToolResult{
			CallID:   call.ID,
			ToolName: call.Name,
			Output:   fmt.Sprintf("unknown tool %q", call.Name),
			Err:      llm.ToolErrUnknownTool,
		}
	}
	result := t.Run(ctx, call.Arguments, sb)
	result.CallID = call.ID
	if result.ToolName == "" {
		result.ToolName = call.Name
	}
	return result
}

// Argument access helpers shared by the concrete tools.

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func badArguments(tool, msg string) llm.ToolResult {
	return llm.ToolResult{
		ToolName: tool,
		Output:   msg,
		Err:      llm.ToolErrBadArguments,
	}
}
