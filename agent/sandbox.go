package agent

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"go.starlark.net/syntax"

	"github.com/praxisworks/praxis/llm"
)

// DefaultExecTimeout bounds every external process invocation.
const DefaultExecTimeout = 120 * time.Second

// commandDenylist holds substrings that short-circuit command execution.
// Substring matching only: the sandbox is a tripwire for obviously
// destructive requests, not a full shell analyzer.
var commandDenylist = []string{
	"rm -rf /",
	"rm -fr /",
	"mkfs",
	"dd if=",
	":(){",
	"> /dev/sd",
	"sudo ",
	"shutdown",
	"reboot",
	"chmod -R 777 /",
}

// dynamicEvalPrimitives are blocked in the script tool family via an
// abstract-syntax check rather than substring matching, so they cannot be
// smuggled through string building.
var dynamicEvalPrimitives = map[string]bool{
	"eval":       true,
	"exec":       true,
	"compile":    true,
	"getattr":    true,
	"setattr":    true,
	"__import__": true,
}

// Sandbox enforces path confinement, command validation, and timeouts before
// any tool side effect happens. Policies are evaluated in order and any
// failure short-circuits with a descriptive ToolResult error and no partial
// execution.
type Sandbox struct {
	repoRoot    string
	execTimeout time.Duration
	logger      *slog.Logger
}

// NewSandbox creates a Sandbox confined to repoRoot. A zero timeout uses
// DefaultExecTimeout; a nil logger discards.
func NewSandbox(repoRoot string, execTimeout time.Duration, logger *slog.Logger) (*Sandbox, error) {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}
	if execTimeout <= 0 {
		execTimeout = DefaultExecTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sandbox{repoRoot: abs, execTimeout: execTimeout, logger: logger}, nil
}

// Root returns the confinement root.
func (s *Sandbox) Root() string { return s.repoRoot }

// ResolvePath normalizes a path argument and verifies it stays inside the
// repo root. Relative paths resolve against the root; traversal sequences and
// absolute paths outside the root are rejected.
func (s *Sandbox) ResolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.repoRoot, resolved)
	}
	resolved = filepath.Clean(resolved)
	if resolved != s.repoRoot && !strings.HasPrefix(resolved, s.repoRoot+string(filepath.Separator)) {
		s.logger.Warn("path rejected", "path", path, "resolved", resolved)
		return "", fmt.Errorf("path %q resolves outside the workspace", path)
	}
	return resolved, nil
}

// CheckCommand validates a shell command string against the path and
// denylist policies. Pipes and redirection stay available to the shell tool;
// these checks run before any process is spawned.
func (s *Sandbox) CheckCommand(command string) llm.ToolErrorKind {
	lower := strings.ToLower(command)
	for _, bad := range commandDenylist {
		if strings.Contains(lower, bad) {
			s.logger.Warn("command rejected by denylist", "match", bad)
			return llm.ToolErrDenylistMatch
		}
	}
	for _, field := range strings.Fields(command) {
		field = strings.Trim(field, `"'`)
		if strings.Contains(field, "../") {
			s.logger.Warn("command rejected, traversal sequence", "field", field)
			return llm.ToolErrPathViolation
		}
		if filepath.IsAbs(field) && looksLikePath(field) {
			if _, err := s.ResolvePath(field); err != nil {
				return llm.ToolErrPathViolation
			}
		}
	}
	return llm.ToolErrNone
}

// looksLikePath filters out absolute-path-shaped fields that are really
// standard tool locations, so `/bin/ls` and `/usr/bin/env` stay usable.
func looksLikePath(field string) bool {
	for _, prefix := range []string{"/bin/", "/usr/", "/opt/homebrew/", "/sbin/"} {
		if strings.HasPrefix(field, prefix) {
			return false
		}
	}
	return true
}

// CheckScript parses code as a Python-syntax script and rejects it if it
// references any dynamic-evaluation primitive.
func (s *Sandbox) CheckScript(code string) error {
	f, err := scriptOptions.Parse("script", code, 0)
	if err != nil {
		return fmt.Errorf("script does not parse: %w", err)
	}
	var blocked string
	for _, stmt := range f.Stmts {
		syntax.Walk(stmt, func(n syntax.Node) bool {
			if blocked != "" {
				return false
			}
			if id, ok := n.(*syntax.Ident); ok && dynamicEvalPrimitives[id.Name] {
				blocked = id.Name
				return false
			}
			return true
		})
	}
	if blocked != "" {
		s.logger.Warn("script rejected, dynamic evaluation primitive", "primitive", blocked)
		return fmt.Errorf("script uses blocked primitive %q", blocked)
	}
	return nil
}

var scriptOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Exec runs a shell command with the working directory pinned to the repo
// root, bounded by the sandbox's wall-clock timeout. On timeout the process
// group is killed and a Timeout tool error is returned.
func (s *Sandbox) Exec(ctx context.Context, toolName, command string) llm.ToolResult {
	if kind := s.CheckCommand(command); kind != llm.ToolErrNone {
		return llm.ToolResult{
			ToolName: toolName,
			Output:   fmt.Sprintf("command rejected by sandbox policy (%s)", kind),
			Err:      kind,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.execTimeout)
	defer cancel()

	shell, shellArg := "/bin/bash", "-c"
	if runtime.GOOS == "windows" {
		shell, shellArg = "cmd.exe", "/c"
	}

	return s.run(ctx, toolName, shell, shellArg, command)
}

// ExecArgv runs a program directly with an argument vector, bypassing shell
// interpretation but keeping the timeout, working-directory, and environment
// policies. Used by tool families that must not expose quoting surface.
func (s *Sandbox) ExecArgv(ctx context.Context, toolName string, argv ...string) llm.ToolResult {
	if len(argv) == 0 {
		return llm.ToolResult{ToolName: toolName, Output: "empty argv", Err: llm.ToolErrBadArguments}
	}
	ctx, cancel := context.WithTimeout(ctx, s.execTimeout)
	defer cancel()
	return s.run(ctx, toolName, argv[0], argv[1:]...)
}

func (s *Sandbox) run(ctx context.Context, toolName, program string, args ...string) llm.ToolResult {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = s.repoRoot
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = filteredEnvironment()
	// On deadline, kill the whole process group, not just the direct child.
	// Backgrounded children inherit the output pipes, and Wait blocks until
	// every writer is gone, so they must die at the deadline too.
	cmd.Cancel = func() error {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		return cmd.Process.Kill()
	}
	// Backstop for children that left the group (setsid daemons): stop
	// waiting on their pipe output and let Wait return.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += stderr.String()
	}

	result := llm.ToolResult{ToolName: toolName, Output: output}

	// A fired deadline is a timeout even when the direct child exited on its
	// own, because a lingering grandchild held the run open to the bound.
	if ctx.Err() == context.DeadlineExceeded {
		result.Output = fmt.Sprintf("command timed out after %s", s.execTimeout)
		result.Err = llm.ToolErrTimeout
		result.ExitCode = -1
		return result
	}
	if err == nil {
		return result
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.Err = llm.ToolErrNonZeroExit
		result.ExitCode = exitErr.ExitCode()
		return result
	}
	result.Output = fmt.Sprintf("command failed to start: %v", err)
	result.Err = llm.ToolErrNonZeroExit
	result.ExitCode = -1
	return result
}

// sensitiveEnvSuffixes name environment variables withheld from spawned
// processes.
var sensitiveEnvSuffixes = []string{
	"_API_KEY", "_SECRET", "_TOKEN", "_PASSWORD", "_CREDENTIAL",
}

var alwaysSafeEnv = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"GOPATH": true, "GOROOT": true,
}

func filteredEnvironment() []string {
	var out []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if alwaysSafeEnv[name] {
			out = append(out, kv)
			continue
		}
		sensitive := false
		upper := strings.ToUpper(name)
		for _, suffix := range sensitiveEnvSuffixes {
			if strings.HasSuffix(upper, suffix) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			out = append(out, kv)
		}
	}
	return out
}
