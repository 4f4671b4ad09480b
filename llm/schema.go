package llm

// Tool schema export. Each ToolSpec is renderable into the three documented
// JSON shapes used by the backend families. Field names are part of each
// backend's public wire contract and must not drift.

// OpenAIToolsSchema renders specs as the OpenAI-style tools[] array:
//
//	[{"type":"function","function":{"name":...,"description":...,"parameters":{...}}}]
func OpenAIToolsSchema(specs []ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        s.Name,
				"description": s.Description,
				"parameters":  s.Parameters,
			},
		})
	}
	return out
}

// AnthropicToolsSchema renders specs as the Anthropic input_schema shape:
//
//	[{"name":...,"description":...,"input_schema":{...}}]
func AnthropicToolsSchema(specs []ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		out = append(out, map[string]any{
			"name":         s.Name,
			"description":  s.Description,
			"input_schema": s.Parameters,
		})
	}
	return out
}

// FunctionDeclarationsSchema renders specs as the declarative-function-list
// shape used by the Gemini family:
//
//	{"function_declarations":[{"name":...,"description":...,"parameters":{...}}]}
func FunctionDeclarationsSchema(specs []ToolSpec) map[string]any {
	decls := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters":  s.Parameters,
		})
	}
	return map[string]any{"function_declarations": decls}
}
