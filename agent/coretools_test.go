package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/praxisworks/praxis/llm"
)

func coreToolsFixture(t *testing.T) (*Registry, *Sandbox) {
	t.Helper()
	sb := testSandbox(t)
	reg := NewRegistry()
	RegisterCoreTools(reg)
	return reg, sb
}

func writeFixture(t *testing.T, sb *Sandbox, rel, content string) {
	t.Helper()
	path := filepath.Join(sb.Root(), rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func dispatch(t *testing.T, reg *Registry, sb *Sandbox, name string, args map[string]any) llm.ToolResult {
	t.Helper()
	return reg.Dispatch(context.Background(), llm.ToolCallRequest{ID: "c1", Name: name, Arguments: args}, sb)
}

func TestRegisterCoreTools(t *testing.T) {
	reg, _ := coreToolsFixture(t)
	for _, name := range []string{"read_file", "write_file", "edit_file", "list_dir", "grep", "glob", "shell", "evaluate"} {
		found := false
		for _, spec := range reg.Specs() {
			if spec.Name == name {
				found = true
			}
		}
		if !found {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	reg, sb := coreToolsFixture(t)
	result := dispatch(t, reg, sb, "teleport", nil)
	if result.Err != llm.ToolErrUnknownTool {
		t.Fatalf("Err = %q, want unknown_tool", result.Err)
	}
	if result.CallID != "c1" {
		t.Errorf("CallID = %q", result.CallID)
	}
	if !strings.Contains(result.Output, "teleport") {
		t.Errorf("output should name the tool: %q", result.Output)
	}
}

func TestReadFileTool(t *testing.T) {
	reg, sb := coreToolsFixture(t)
	writeFixture(t, sb, "notes.txt", "alpha\nbeta\ngamma\n")

	result := dispatch(t, reg, sb, "read_file", map[string]any{"path": "notes.txt"})
	if result.IsError() {
		t.Fatalf("read_file: %+v", result)
	}
	if !strings.Contains(result.Output, "1 | alpha") || !strings.Contains(result.Output, "3 | gamma") {
		t.Errorf("output = %q, want line numbers", result.Output)
	}

	// Offset and limit select a window. Argument numbers arrive as float64
	// after JSON decoding.
	result = dispatch(t, reg, sb, "read_file", map[string]any{"path": "notes.txt", "offset": float64(2), "limit": float64(1)})
	if strings.Contains(result.Output, "alpha") || !strings.Contains(result.Output, "2 | beta") {
		t.Errorf("windowed output = %q", result.Output)
	}

	result = dispatch(t, reg, sb, "read_file", map[string]any{"path": "../outside.txt"})
	if result.Err != llm.ToolErrPathViolation {
		t.Errorf("Err = %q, want path_violation", result.Err)
	}

	result = dispatch(t, reg, sb, "read_file", map[string]any{})
	if result.Err != llm.ToolErrBadArguments {
		t.Errorf("Err = %q, want bad_arguments", result.Err)
	}
}

func TestWriteFileToolCreatesParents(t *testing.T) {
	reg, sb := coreToolsFixture(t)

	result := dispatch(t, reg, sb, "write_file", map[string]any{"path": "deep/nested/file.txt", "content": "hello"})
	if result.IsError() {
		t.Fatalf("write_file: %+v", result)
	}
	data, err := os.ReadFile(filepath.Join(sb.Root(), "deep/nested/file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}
}

func TestEditFileTool(t *testing.T) {
	reg, sb := coreToolsFixture(t)
	writeFixture(t, sb, "code.go", "x := old\ny := old\n")

	// Ambiguous match without replace_all is refused.
	result := dispatch(t, reg, sb, "edit_file", map[string]any{
		"path": "code.go", "old_string": "old", "new_string": "new",
	})
	if !result.IsError() {
		t.Fatal("ambiguous replacement should fail")
	}

	result = dispatch(t, reg, sb, "edit_file", map[string]any{
		"path": "code.go", "old_string": "old", "new_string": "new", "replace_all": true,
	})
	if result.IsError() {
		t.Fatalf("edit_file: %+v", result)
	}
	data, _ := os.ReadFile(filepath.Join(sb.Root(), "code.go"))
	if strings.Contains(string(data), "old") {
		t.Errorf("content = %q", data)
	}

	result = dispatch(t, reg, sb, "edit_file", map[string]any{
		"path": "code.go", "old_string": "absent", "new_string": "x",
	})
	if !result.IsError() {
		t.Error("missing old_string should fail")
	}
}

func TestListDirTool(t *testing.T) {
	reg, sb := coreToolsFixture(t)
	writeFixture(t, sb, "a.txt", "")
	writeFixture(t, sb, "sub/b.txt", "")

	result := dispatch(t, reg, sb, "list_dir", nil)
	if result.IsError() {
		t.Fatalf("list_dir: %+v", result)
	}
	if !strings.Contains(result.Output, "a.txt") || !strings.Contains(result.Output, "sub/") {
		t.Errorf("output = %q", result.Output)
	}
}

func TestGlobTool(t *testing.T) {
	reg, sb := coreToolsFixture(t)
	writeFixture(t, sb, "a.go", "")
	writeFixture(t, sb, "b.txt", "")

	result := dispatch(t, reg, sb, "glob", map[string]any{"pattern": "*.go"})
	if result.IsError() {
		t.Fatalf("glob: %+v", result)
	}
	if !strings.Contains(result.Output, "a.go") || strings.Contains(result.Output, "b.txt") {
		t.Errorf("output = %q", result.Output)
	}

	result = dispatch(t, reg, sb, "glob", map[string]any{"pattern": "../*"})
	if result.Err != llm.ToolErrPathViolation {
		t.Errorf("Err = %q, want path_violation", result.Err)
	}
}

func TestGrepTool(t *testing.T) {
	reg, sb := coreToolsFixture(t)
	writeFixture(t, sb, "data.txt", "needle here\nnothing there\n")

	result := dispatch(t, reg, sb, "grep", map[string]any{"pattern": "needle"})
	if result.IsError() {
		t.Fatalf("grep: %+v", result)
	}
	if !strings.Contains(result.Output, "needle here") {
		t.Errorf("output = %q", result.Output)
	}

	// No matches is an empty success, not a failure.
	result = dispatch(t, reg, sb, "grep", map[string]any{"pattern": "absent_string_xyz"})
	if result.IsError() {
		t.Errorf("no matches: %+v", result)
	}
}

func TestEvaluateToolBlocksDynamicEval(t *testing.T) {
	reg, sb := coreToolsFixture(t)

	result := dispatch(t, reg, sb, "evaluate", map[string]any{"code": "__import__('os').system('ls')"})
	if result.Err != llm.ToolErrDenylistMatch {
		t.Fatalf("Err = %q, want denylist_match", result.Err)
	}
}
