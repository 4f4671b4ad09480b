package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/praxisworks/praxis/llm"
)

// scriptedAdapter returns a fixed sequence of responses, then repeats the
// last one.
type scriptedAdapter struct {
	responses []*llm.Response
	calls     int
}

func (a *scriptedAdapter) Name() string              { return "scripted" }
func (a *scriptedAdapter) SupportsNativeTools() bool { return true }

func (a *scriptedAdapter) Send(_ context.Context, _ llm.Request) (*llm.Response, error) {
	i := a.calls
	a.calls++
	if i >= len(a.responses) {
		i = len(a.responses) - 1
	}
	return a.responses[i], nil
}

func (a *scriptedAdapter) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	resp, err := a.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.Chunk, 2)
	ch <- llm.Chunk{Text: resp.Text}
	ch <- llm.Chunk{Done: true, Final: resp}
	close(ch)
	return ch, nil
}

func toolCallResponse(name string, args map[string]any) *llm.Response {
	return &llm.Response{
		Backend:  "scripted",
		ToolCall: &llm.ToolCallRequest{ID: "call", Name: name, Arguments: args},
		Native:   true,
	}
}

func finalResponse(text string) *llm.Response {
	return &llm.Response{Backend: "scripted", Text: text}
}

func testOrchestrator(t *testing.T, adapter *scriptedAdapter) (*Orchestrator, *Sandbox) {
	t.Helper()
	reg := llm.NewRegistry(nil, llm.EnvResolver{}, nil)
	reg.Register(llm.Descriptor{
		ID: "scripted", Dialect: llm.DialectOpenAI,
		ContextWindowTokens: 1 << 20, SupportsNativeTools: true,
	}, adapter)
	router := llm.NewRouter(reg, "scripted", []string{"scripted"}, nil)

	sb := testSandbox(t)
	tools := NewRegistry()
	RegisterCoreTools(tools)
	return NewOrchestrator(router, reg, tools, sb, nil), sb
}

func TestRunImmediateFinalAnswer(t *testing.T) {
	adapter := &scriptedAdapter{responses: []*llm.Response{finalResponse("done")}}
	orch, _ := testOrchestrator(t, adapter)

	state, err := orch.Run(context.Background(), "say done", Options{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Status != StatusFinished {
		t.Errorf("status = %q", state.Status)
	}
	if state.FinalAnswer != "done" {
		t.Errorf("answer = %q", state.FinalAnswer)
	}
	if state.StepCount != 0 {
		t.Errorf("steps = %d, want 0", state.StepCount)
	}
}

func TestRunDispatchesToolThenFinishes(t *testing.T) {
	adapter := &scriptedAdapter{responses: []*llm.Response{
		toolCallResponse("write_file", map[string]any{"path": "out.txt", "content": "hi"}),
		finalResponse("written"),
	}}
	orch, sb := testOrchestrator(t, adapter)

	sink := NewEventSink("", 64)
	state, err := orch.Run(context.Background(), "write a file", Options{}, sink)
	sink.Close()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Status != StatusFinished || state.StepCount != 1 {
		t.Errorf("status = %q, steps = %d", state.Status, state.StepCount)
	}

	data, err := os.ReadFile(filepath.Join(sb.Root(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hi" {
		t.Errorf("content = %q", data)
	}

	var sawTool, sawFinal bool
	for ev := range sink.Events() {
		switch ev.Type {
		case EventToolResult:
			sawTool = true
			if ev.Payload["tool"] != "write_file" {
				t.Errorf("tool = %v", ev.Payload["tool"])
			}
		case EventFinalAnswer:
			sawFinal = true
		}
	}
	if !sawTool || !sawFinal {
		t.Errorf("events: tool=%v final=%v", sawTool, sawFinal)
	}
}

func TestRunUnknownToolContinues(t *testing.T) {
	adapter := &scriptedAdapter{responses: []*llm.Response{
		toolCallResponse("teleport", nil),
		finalResponse("recovered"),
	}}
	orch, _ := testOrchestrator(t, adapter)

	state, err := orch.Run(context.Background(), "task", Options{}, nil)
	if err != nil {
		t.Fatalf("an unknown tool is an observation, not a run failure: %v", err)
	}
	if state.Status != StatusFinished || state.StepCount != 1 {
		t.Errorf("status = %q, steps = %d", state.Status, state.StepCount)
	}

	// The failure was fed back to the model as a tool message.
	var fedBack bool
	for _, m := range state.Conversation.Messages() {
		if m.Role == llm.RoleTool && strings.Contains(m.Content, "teleport") {
			fedBack = true
		}
	}
	if !fedBack {
		t.Error("unknown-tool observation missing from the conversation")
	}
}

func TestRunStepBudget(t *testing.T) {
	// Endless distinct tool calls, never a final answer.
	var responses []*llm.Response
	for i := 0; i < 20; i++ {
		responses = append(responses, toolCallResponse("list_dir", map[string]any{"path": ".", "i": float64(i)}))
	}
	adapter := &scriptedAdapter{responses: responses}
	orch, _ := testOrchestrator(t, adapter)

	state, err := orch.Run(context.Background(), "task", Options{MaxSteps: 10}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Status != StatusExceeded {
		t.Errorf("status = %q, want exceeded", state.Status)
	}
	if state.StepCount != 10 {
		t.Errorf("steps = %d, want exactly the budget", state.StepCount)
	}
	if adapter.calls != 10 {
		t.Errorf("model calls = %d, want 10: no call after the budget is spent", adapter.calls)
	}
	if !strings.Contains(state.FinalAnswer, "step budget") {
		t.Errorf("answer should carry a visible warning: %q", state.FinalAnswer)
	}
}

func TestRunLoopGuardSteers(t *testing.T) {
	var responses []*llm.Response
	for i := 0; i < defaultLoopWindow; i++ {
		responses = append(responses, toolCallResponse("list_dir", map[string]any{"path": "."}))
	}
	responses = append(responses, finalResponse("done"))
	adapter := &scriptedAdapter{responses: responses}
	orch, _ := testOrchestrator(t, adapter)

	state, err := orch.Run(context.Background(), "task", Options{MaxSteps: 20}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var steered bool
	for _, m := range state.Conversation.Messages() {
		if m.Role == llm.RoleUser && strings.Contains(m.Content, "repeating the same tool calls") {
			steered = true
		}
	}
	if !steered {
		t.Error("expected a steering observation after repeated identical calls")
	}
	if state.Status != StatusFinished {
		t.Errorf("status = %q: steering must not abort the run", state.Status)
	}
}

// refusingAdapter fails every call with a non-retryable auth error.
type refusingAdapter struct{}

func (refusingAdapter) Name() string              { return "refusing" }
func (refusingAdapter) SupportsNativeTools() bool { return true }

func (refusingAdapter) Send(context.Context, llm.Request) (*llm.Response, error) {
	return nil, &llm.AuthError{BackendError: llm.BackendError{
		Backend: "refusing", Kind: llm.KindAuth, Message: "bad key",
	}}
}

func (refusingAdapter) Stream(context.Context, llm.Request) (<-chan llm.Chunk, error) {
	return nil, &llm.AuthError{BackendError: llm.BackendError{
		Backend: "refusing", Kind: llm.KindAuth, Message: "bad key",
	}}
}

func TestRunBackendFailureIsFailedNotAborted(t *testing.T) {
	reg := llm.NewRegistry(nil, llm.EnvResolver{}, nil)
	reg.Register(llm.Descriptor{
		ID: "refusing", Dialect: llm.DialectOpenAI,
		ContextWindowTokens: 1 << 20, SupportsNativeTools: true,
	}, refusingAdapter{})
	router := llm.NewRouter(reg, "refusing", []string{"refusing"}, nil)
	tools := NewRegistry()
	RegisterCoreTools(tools)
	orch := NewOrchestrator(router, reg, tools, testSandbox(t), nil)

	state, err := orch.Run(context.Background(), "task", Options{}, nil)
	if err == nil {
		t.Fatal("expected the backend failure to surface")
	}
	if state.Status != StatusFailed {
		t.Errorf("status = %q, want failed: aborted is reserved for host cancellation", state.Status)
	}
}

func TestRunContextCancellation(t *testing.T) {
	adapter := &scriptedAdapter{responses: []*llm.Response{finalResponse("unreached")}}
	orch, _ := testOrchestrator(t, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state, err := orch.Run(ctx, "task", Options{}, nil)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	if state.Status != StatusAborted {
		t.Errorf("status = %q, want aborted", state.Status)
	}
}

func TestRunStreaming(t *testing.T) {
	adapter := &scriptedAdapter{responses: []*llm.Response{finalResponse("streamed answer")}}
	orch, _ := testOrchestrator(t, adapter)

	sink := NewEventSink("", 64)
	state, err := orch.Run(context.Background(), "task", Options{Stream: true}, sink)
	sink.Close()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.FinalAnswer != "streamed answer" {
		t.Errorf("answer = %q", state.FinalAnswer)
	}

	var console strings.Builder
	for ev := range sink.Events() {
		if ev.Type == EventConsole {
			if text, ok := ev.Payload["text"].(string); ok {
				console.WriteString(text)
			}
		}
	}
	if console.String() != "streamed answer" {
		t.Errorf("console stream = %q", console.String())
	}
}

func TestRunStampsRunID(t *testing.T) {
	adapter := &scriptedAdapter{responses: []*llm.Response{finalResponse("ok")}}
	orch, _ := testOrchestrator(t, adapter)

	sink := NewEventSink("", 8)
	state, err := orch.Run(context.Background(), "task", Options{}, sink)
	sink.Close()
	if err != nil {
		t.Fatal(err)
	}
	if state.RunID == "" {
		t.Fatal("missing run id")
	}
	for ev := range sink.Events() {
		if ev.RunID != state.RunID {
			t.Errorf("event run id = %q, want %q", ev.RunID, state.RunID)
		}
	}
}
