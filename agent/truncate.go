package agent

import (
	"fmt"
	"strings"
)

// TruncationMode selects which part of oversized output survives.
type TruncationMode string

const (
	// TruncateHeadTail keeps the beginning and the end of the output.
	TruncateHeadTail TruncationMode = "head_tail"
	// TruncateTail keeps only the end of the output.
	TruncateTail TruncationMode = "tail"
)

// Per-tool character budgets for output fed back into the conversation.
// The full output still reaches the event stream untruncated.
var toolCharLimits = map[string]int{
	"read_file":  50000,
	"shell":      30000,
	"grep":       20000,
	"glob":       20000,
	"edit_file":  10000,
	"write_file": 1000,
	"list_dir":   10000,
	"evaluate":   30000,
}

var toolTruncationModes = map[string]TruncationMode{
	"read_file": TruncateHeadTail,
	"shell":     TruncateHeadTail,
	"grep":      TruncateTail,
	"glob":      TruncateTail,
	"evaluate":  TruncateHeadTail,
}

// Line caps applied after the character pass, for tools whose output is
// line-oriented.
var toolLineLimits = map[string]int{
	"shell":    256,
	"grep":     200,
	"glob":     500,
	"list_dir": 500,
}

const fallbackCharLimit = 30000

// truncateChars drops the middle (or the head) of output exceeding maxChars,
// leaving a marker that says how much was removed.
func truncateChars(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	if mode == TruncateTail {
		return fmt.Sprintf("[output truncated: first %d characters removed]\n\n", removed) +
			output[len(output)-maxChars:]
	}

	half := maxChars / 2
	return output[:half] +
		fmt.Sprintf("\n\n[output truncated: %d characters removed from the middle; re-run the tool with narrower parameters to see them]\n\n", removed) +
		output[len(output)-half:]
}

// truncateLines caps output at maxLines using a head/tail split.
func truncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}
	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - head - tail
	return strings.Join(lines[:head], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tail:], "\n")
}

// truncateToolOutput applies the character pass then the line pass for a
// given tool.
func truncateToolOutput(output, toolName string) string {
	maxChars, ok := toolCharLimits[toolName]
	if !ok {
		maxChars = fallbackCharLimit
	}
	mode, ok := toolTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}
	out := truncateChars(output, maxChars, mode)
	if maxLines, ok := toolLineLimits[toolName]; ok {
		out = truncateLines(out, maxLines)
	}
	return out
}
