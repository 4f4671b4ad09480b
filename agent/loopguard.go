package agent

import (
	"crypto/sha256"
	"fmt"

	"github.com/praxisworks/praxis/llm"
)

// defaultLoopWindow is how many recent tool calls the repetition check
// inspects.
const defaultLoopWindow = 6

// callSignature is a deterministic fingerprint of a tool call: name plus a
// hash of the canonical JSON arguments.
func callSignature(call *llm.ToolCallRequest) string {
	raw := call.ArgumentsJSON()
	if len(raw) == 0 {
		raw = []byte(call.RawText)
	}
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", call.Name, h[:8])
}

// recentCallSignatures returns the signatures of the last count tool calls in
// the conversation, oldest first.
func recentCallSignatures(conv *llm.Conversation, count int) []string {
	msgs := conv.Messages()
	var sigs []string
	for i := len(msgs) - 1; i >= 0 && len(sigs) < count; i-- {
		if msgs[i].Role == llm.RoleAssistant && msgs[i].ToolCall != nil {
			sigs = append(sigs, callSignature(msgs[i].ToolCall))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// detectLoop reports whether the last window tool calls form a repeating
// pattern of length 1, 2, or 3. Fewer than window calls never count as a
// loop.
func detectLoop(conv *llm.Conversation, window int) bool {
	sigs := recentCallSignatures(conv, window)
	if len(sigs) < window {
		return false
	}
	for patternLen := 1; patternLen <= 3; patternLen++ {
		if window%patternLen != 0 {
			continue
		}
		match := true
	outer:
		for i := patternLen; i < window; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != sigs[j] {
					match = false
					break outer
				}
			}
		}
		if match {
			return true
		}
	}
	return false
}

// loopSteeringObservation is injected as a tool-result observation when a
// repetition pattern is detected, nudging the model off the cycle instead of
// aborting the run.
const loopSteeringObservation = "You appear to be repeating the same tool calls without making progress. " +
	"Step back, reconsider the approach, and either try a different tool or produce your final answer."
