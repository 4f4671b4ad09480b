package agent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/praxisworks/praxis/llm"
)

// Action is the typed outcome of parsing one model response: either a final
// answer or a tool call, never both.
type Action struct {
	FinalAnswer string
	ToolCall    *llm.ToolCallRequest
}

// IsToolCall reports whether the action requests a tool invocation.
func (a Action) IsToolCall() bool { return a.ToolCall != nil }

// Parser extracts typed actions from backend responses. Model output is
// untrusted and often malformed; every text-path failure degrades to a
// FinalAnswer, which cannot execute anything.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser. A nil logger discards.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

var actionRe = regexp.MustCompile(`(?m)^[ \t]*Action:[ \t]*([A-Za-z][A-Za-z0-9_.\-]*)[ \t]*$`)

// Parse applies the parsing strategies in priority order:
//  1. native structured call from the backend, used verbatim;
//  2. Action: block located in free text, payload extracted by balanced-brace
//     counting, decoded as strict JSON;
//  3. same payload decoded by the safe literal evaluator (Python dialect);
//  4. the entire raw text as a FinalAnswer.
func (p *Parser) Parse(resp *llm.Response) Action {
	if resp.Native && resp.ToolCall != nil {
		return Action{ToolCall: resp.ToolCall}
	}

	name, payload, ok := findActionBlock(resp.Text)
	if ok {
		args, err := decodePayload(payload)
		if err == nil {
			return Action{ToolCall: &llm.ToolCallRequest{
				Name:      name,
				Arguments: args,
				RawText:   payload,
			}}
		}
		p.logger.Debug("action payload rejected, degrading to final answer",
			"tool", name, "error", err)
	}

	return Action{FinalAnswer: resp.Text}
}

// findActionBlock locates an Action: header and the argument payload that
// follows it. The payload starts at the first opening brace after the header
// and runs to its balanced closing brace.
func findActionBlock(text string) (name, payload string, ok bool) {
	loc := actionRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", "", false
	}
	name = text[loc[2]:loc[3]]
	rest := text[loc[1]:]

	payload, ok = extractBraced(rest)
	if !ok {
		// A bare Action with no payload is a zero-argument call.
		return name, "{}", true
	}
	return name, payload, true
}

// extractBraced returns the first balanced {...} region of s. Brace counting
// honors double- and single-quoted string literals with backslash escapes, so
// braces and quotes inside strings do not terminate extraction early.
func extractBraced(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// decodePayload turns an extracted payload into an argument map. Strict JSON
// is tried first; the literal evaluator accepts the Python dialect
// (single-quoted strings, True/False/None) and normalizes it to the same
// shapes strict JSON would have produced.
func decodePayload(payload string) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(payload), &args); err == nil {
		return args, nil
	}

	v, err := EvalLiteral(payload)
	if err != nil {
		return nil, err
	}
	args, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("payload is not an object")
	}
	return args, nil
}
