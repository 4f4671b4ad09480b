package agent

import (
	"strings"
	"testing"
)

func TestBuildSystemPromptNative(t *testing.T) {
	sb := testSandbox(t)
	reg := NewRegistry()
	RegisterCoreTools(reg)

	prompt := BuildSystemPrompt(sb, reg, true)
	if !strings.Contains(prompt, sb.Root()) {
		t.Error("prompt should state the working directory")
	}
	if strings.Contains(prompt, "Action Input:") {
		t.Error("native backends must not receive the textual protocol")
	}
}

func TestBuildSystemPromptTextProtocol(t *testing.T) {
	sb := testSandbox(t)
	reg := NewRegistry()
	RegisterCoreTools(reg)

	prompt := BuildSystemPrompt(sb, reg, false)
	for _, want := range []string{"Action:", "Action Input:", "## read_file", "## shell", "path (string, required)"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
