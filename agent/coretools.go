package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/praxisworks/praxis/llm"
)

// RegisterCoreTools installs the standard tool set on a Registry.
func RegisterCoreTools(reg *Registry) {
	reg.Register(ReadFileTool{})
	reg.Register(WriteFileTool{})
	reg.Register(EditFileTool{})
	reg.Register(ListDirTool{})
	reg.Register(GrepTool{})
	reg.Register(GlobTool{})
	reg.Register(ShellTool{})
	reg.Register(EvaluateTool{})
}

func pathViolation(tool, path string, err error) llm.ToolResult {
	return llm.ToolResult{
		ToolName: tool,
		Output:   fmt.Sprintf("path rejected: %v", err),
		Err:      llm.ToolErrPathViolation,
		ExitCode: 0,
	}
}

// ReadFileTool reads a file inside the workspace, returning line-numbered
// content.
type ReadFileTool struct{}

func (ReadFileTool) Name() string { return "read_file" }

func (ReadFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "read_file",
		Description: "Read a file from the workspace. Returns line-numbered content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":   map[string]any{"type": "string", "description": "Path relative to the workspace root."},
				"offset": map[string]any{"type": "integer", "description": "1-based line to start from."},
				"limit":  map[string]any{"type": "integer", "description": "Maximum lines to return. Default: 2000."},
			},
			"required": []string{"path"},
		},
	}
}

func (t ReadFileTool) Run(_ context.Context, args map[string]any, sb *Sandbox) llm.ToolResult {
	path, ok := stringArg(args, "path")
	if !ok || path == "" {
		return badArguments(t.Name(), "path is required")
	}
	resolved, err := sb.ResolvePath(path)
	if err != nil {
		return pathViolation(t.Name(), path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return llm.ToolResult{ToolName: t.Name(), Output: err.Error(), Err: llm.ToolErrNonZeroExit, ExitCode: 1}
	}

	offset, _ := intArg(args, "offset")
	limit, ok := intArg(args, "limit")
	if !ok || limit <= 0 {
		limit = 2000
	}

	lines := strings.Split(string(data), "\n")
	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start >= len(lines) {
		return llm.ToolResult{ToolName: t.Name(), Output: ""}
	}
	end := len(lines)
	if start+limit < end {
		end = start + limit
	}

	var out strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&out, "%d | %s\n", i+1, lines[i])
	}
	return llm.ToolResult{ToolName: t.Name(), Output: out.String()}
}

// WriteFileTool writes a file inside the workspace, creating parent
// directories as needed.
type WriteFileTool struct{}

func (WriteFileTool) Name() string { return "write_file" }

func (WriteFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "write_file",
		Description: "Write content to a workspace file, creating it and parent directories if needed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "Path relative to the workspace root."},
				"content": map[string]any{"type": "string", "description": "Full file content to write."},
			},
			"required": []string{"path", "content"},
		},
	}
}

func (t WriteFileTool) Run(_ context.Context, args map[string]any, sb *Sandbox) llm.ToolResult {
	path, ok := stringArg(args, "path")
	if !ok || path == "" {
		return badArguments(t.Name(), "path is required")
	}
	content, ok := stringArg(args, "content")
	if !ok {
		return badArguments(t.Name(), "content is required")
	}
	resolved, err := sb.ResolvePath(path)
	if err != nil {
		return pathViolation(t.Name(), path, err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return llm.ToolResult{ToolName: t.Name(), Output: err.Error(), Err: llm.ToolErrNonZeroExit, ExitCode: 1}
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return llm.ToolResult{ToolName: t.Name(), Output: err.Error(), Err: llm.ToolErrNonZeroExit, ExitCode: 1}
	}
	return llm.ToolResult{ToolName: t.Name(), Output: fmt.Sprintf("wrote %d bytes to %s", len(content), path)}
}

// EditFileTool replaces an exact string occurrence in a workspace file.
type EditFileTool struct{}

func (EditFileTool) Name() string { return "edit_file" }

func (EditFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "edit_file",
		Description: "Replace an exact string occurrence in a file. old_string must be unique unless replace_all is true.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":        map[string]any{"type": "string", "description": "Path relative to the workspace root."},
				"old_string":  map[string]any{"type": "string", "description": "Exact text to find."},
				"new_string":  map[string]any{"type": "string", "description": "Replacement text."},
				"replace_all": map[string]any{"type": "boolean", "description": "Replace all occurrences. Default: false."},
			},
			"required": []string{"path", "old_string", "new_string"},
		},
	}
}

func (t EditFileTool) Run(_ context.Context, args map[string]any, sb *Sandbox) llm.ToolResult {
	path, ok := stringArg(args, "path")
	if !ok || path == "" {
		return badArguments(t.Name(), "path is required")
	}
	oldString, ok := stringArg(args, "old_string")
	if !ok || oldString == "" {
		return badArguments(t.Name(), "old_string is required")
	}
	newString, _ := stringArg(args, "new_string")
	replaceAll := boolArg(args, "replace_all")

	resolved, err := sb.ResolvePath(path)
	if err != nil {
		return pathViolation(t.Name(), path, err)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return llm.ToolResult{ToolName: t.Name(), Output: err.Error(), Err: llm.ToolErrNonZeroExit, ExitCode: 1}
	}
	content := string(data)

	count := strings.Count(content, oldString)
	if count == 0 {
		return llm.ToolResult{ToolName: t.Name(), Output: fmt.Sprintf("old_string not found in %s", path), Err: llm.ToolErrNonZeroExit, ExitCode: 1}
	}
	if count > 1 && !replaceAll {
		return llm.ToolResult{
			ToolName: t.Name(),
			Output:   fmt.Sprintf("old_string found %d times in %s; provide more context or set replace_all", count, path),
			Err:      llm.ToolErrNonZeroExit, ExitCode: 1,
		}
	}

	if replaceAll {
		content = strings.ReplaceAll(content, oldString, newString)
	} else {
		content = strings.Replace(content, oldString, newString, 1)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return llm.ToolResult{ToolName: t.Name(), Output: err.Error(), Err: llm.ToolErrNonZeroExit, ExitCode: 1}
	}

	replaced := 1
	if replaceAll {
		replaced = count
	}
	return llm.ToolResult{ToolName: t.Name(), Output: fmt.Sprintf("replaced %d occurrence(s) in %s", replaced, path)}
}

// ListDirTool lists a workspace directory.
type ListDirTool struct{}

func (ListDirTool) Name() string { return "list_dir" }

func (ListDirTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "list_dir",
		Description: "List the entries of a workspace directory.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Directory path relative to the workspace root. Default: the root."},
			},
		},
	}
}

func (t ListDirTool) Run(_ context.Context, args map[string]any, sb *Sandbox) llm.ToolResult {
	path, _ := stringArg(args, "path")
	if path == "" {
		path = "."
	}
	resolved, err := sb.ResolvePath(path)
	if err != nil {
		return pathViolation(t.Name(), path, err)
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return llm.ToolResult{ToolName: t.Name(), Output: err.Error(), Err: llm.ToolErrNonZeroExit, ExitCode: 1}
	}
	var out strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&out, "%s/\n", e.Name())
		} else {
			fmt.Fprintf(&out, "%s\n", e.Name())
		}
	}
	return llm.ToolResult{ToolName: t.Name(), Output: out.String()}
}

// GrepTool searches file contents by pattern, preferring ripgrep when
// available.
type GrepTool struct{}

func (GrepTool) Name() string { return "grep" }

func (GrepTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "grep",
		Description: "Search workspace file contents for a regular expression.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern":          map[string]any{"type": "string", "description": "Regular expression to search for."},
				"path":             map[string]any{"type": "string", "description": "Directory or file to search. Default: the workspace root."},
				"case_insensitive": map[string]any{"type": "boolean", "description": "Case-insensitive matching. Default: false."},
			},
			"required": []string{"pattern"},
		},
	}
}

func (t GrepTool) Run(ctx context.Context, args map[string]any, sb *Sandbox) llm.ToolResult {
	pattern, ok := stringArg(args, "pattern")
	if !ok || pattern == "" {
		return badArguments(t.Name(), "pattern is required")
	}
	path, _ := stringArg(args, "path")
	if path == "" {
		path = "."
	}
	resolved, err := sb.ResolvePath(path)
	if err != nil {
		return pathViolation(t.Name(), path, err)
	}

	if rg, err := exec.LookPath("rg"); err == nil {
		argv := []string{rg, "--line-number", "--no-heading"}
		if boolArg(args, "case_insensitive") {
			argv = append(argv, "-i")
		}
		argv = append(argv, "--", pattern, resolved)
		result := sb.ExecArgv(ctx, t.Name(), argv...)
		// rg exits 1 on no matches, which is not a tool failure.
		if result.Err == llm.ToolErrNonZeroExit && result.ExitCode == 1 {
			result.Err = llm.ToolErrNone
			result.ExitCode = 0
		}
		return result
	}

	argv := []string{"grep", "-rn"}
	if boolArg(args, "case_insensitive") {
		argv = append(argv, "-i")
	}
	argv = append(argv, "--", pattern, resolved)
	result := sb.ExecArgv(ctx, t.Name(), argv...)
	if result.Err == llm.ToolErrNonZeroExit && result.ExitCode == 1 {
		result.Err = llm.ToolErrNone
		result.ExitCode = 0
	}
	return result
}

// GlobTool finds workspace files by name pattern.
type GlobTool struct{}

func (GlobTool) Name() string { return "glob" }

func (GlobTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "glob",
		Description: "Find workspace files matching a glob pattern.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{"type": "string", "description": "Glob pattern relative to the workspace root."},
			},
			"required": []string{"pattern"},
		},
	}
}

func (t GlobTool) Run(_ context.Context, args map[string]any, sb *Sandbox) llm.ToolResult {
	pattern, ok := stringArg(args, "pattern")
	if !ok || pattern == "" {
		return badArguments(t.Name(), "pattern is required")
	}
	if strings.Contains(pattern, "../") || filepath.IsAbs(pattern) {
		return pathViolation(t.Name(), pattern, fmt.Errorf("pattern must stay inside the workspace"))
	}
	matches, err := filepath.Glob(filepath.Join(sb.Root(), pattern))
	if err != nil {
		return badArguments(t.Name(), fmt.Sprintf("bad pattern: %v", err))
	}
	var out strings.Builder
	for _, m := range matches {
		rel, err := filepath.Rel(sb.Root(), m)
		if err != nil {
			rel = m
		}
		out.WriteString(rel)
		out.WriteByte('\n')
	}
	return llm.ToolResult{ToolName: t.Name(), Output: out.String()}
}

// ShellTool runs a shell command through the sandbox. Pipes and redirection
// are allowed; the sandbox's path, denylist, and timeout guards apply.
type ShellTool struct{}

func (ShellTool) Name() string { return "shell" }

func (ShellTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "shell",
		Description: "Run a shell command in the workspace root. Output is combined stdout and stderr.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string", "description": "The command to run."},
			},
			"required": []string{"command"},
		},
	}
}

func (t ShellTool) Run(ctx context.Context, args map[string]any, sb *Sandbox) llm.ToolResult {
	command, ok := stringArg(args, "command")
	if !ok || command == "" {
		return badArguments(t.Name(), "command is required")
	}
	return sb.Exec(ctx, t.Name(), command)
}

// EvaluateTool runs a short Python script. The script family gets an
// abstract-syntax check on top of the usual sandbox policies: dynamic
// evaluation primitives are rejected before the interpreter ever starts.
type EvaluateTool struct{}

func (EvaluateTool) Name() string { return "evaluate" }

func (EvaluateTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "evaluate",
		Description: "Run a short Python script in the workspace root and return its output.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"code": map[string]any{"type": "string", "description": "The script to run."},
			},
			"required": []string{"code"},
		},
	}
}

func (t EvaluateTool) Run(ctx context.Context, args map[string]any, sb *Sandbox) llm.ToolResult {
	code, ok := stringArg(args, "code")
	if !ok || code == "" {
		return badArguments(t.Name(), "code is required")
	}
	if err := sb.CheckScript(code); err != nil {
		return llm.ToolResult{
			ToolName: t.Name(),
			Output:   err.Error(),
			Err:      llm.ToolErrDenylistMatch,
		}
	}
	return sb.ExecArgv(ctx, t.Name(), "python3", "-c", code)
}
