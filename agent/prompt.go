package agent

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"
)

// BuildSystemPrompt assembles the system message for a run. Backends with
// native tool support get the base instructions plus environment context;
// everything else additionally gets the textual tool-calling protocol with
// the full tool catalog inlined, since those backends never see the tool
// schemas on the wire.
func BuildSystemPrompt(sb *Sandbox, tools *Registry, nativeTools bool) string {
	var b strings.Builder
	b.WriteString(baseInstructions)
	b.WriteString("\n\n")
	b.WriteString(environmentContext(sb))
	if !nativeTools {
		b.WriteString("\n\n")
		b.WriteString(textProtocolInstructions(tools))
	}
	return b.String()
}

const baseInstructions = `You are a software engineering agent operating on a workspace. ` +
	`Work step by step: inspect before you modify, make the smallest change that solves the task, ` +
	`and verify your work with the tools available. ` +
	`All file paths are relative to the workspace root; you cannot read or write outside it. ` +
	`When the task is complete, state your final answer as plain text with no tool call.`

func environmentContext(sb *Sandbox) string {
	var b strings.Builder
	b.WriteString("<environment>\n")
	fmt.Fprintf(&b, "Working directory: %s\n", sb.Root())
	fmt.Fprintf(&b, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if host, err := os.Hostname(); err == nil {
		fmt.Fprintf(&b, "Host: %s\n", host)
	}
	fmt.Fprintf(&b, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	b.WriteString("</environment>")
	return b.String()
}

// textProtocolInstructions renders the tool catalog and the Action / Action
// Input calling convention for backends without native tool support.
func textProtocolInstructions(tools *Registry) string {
	var b strings.Builder
	b.WriteString("You can call tools. To call one, end your message with exactly this format:\n\n")
	b.WriteString("Action: <tool_name>\n")
	b.WriteString("Action Input: {<JSON object with the tool's arguments>}\n\n")
	b.WriteString("Call at most one tool per message. The tool's output will arrive in the next message. ")
	b.WriteString("If you do not need a tool, reply with your answer and no Action line.\n\n")
	b.WriteString("Available tools:\n")
	for _, spec := range tools.Specs() {
		fmt.Fprintf(&b, "\n## %s\n%s\n", spec.Name, spec.Description)
		if params := describeParameters(spec.Parameters); params != "" {
			b.WriteString(params)
		}
	}
	return b.String()
}

func describeParameters(parameters map[string]any) string {
	props, ok := parameters["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return ""
	}
	required := map[string]bool{}
	switch req := parameters["required"].(type) {
	case []string:
		for _, r := range req {
			required[r] = true
		}
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	var b strings.Builder
	b.WriteString("Arguments:\n")
	for _, name := range sortedKeys(props) {
		prop, _ := props[name].(map[string]any)
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		marker := "optional"
		if required[name] {
			marker = "required"
		}
		fmt.Fprintf(&b, "- %s (%s, %s): %s\n", name, typ, marker, desc)
	}
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
