package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/praxisworks/praxis/llm"
)

// RunStatus is the terminal (or in-flight) state of an agent run.
type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusFinished RunStatus = "finished"
	// StatusAborted means the host canceled the run from outside.
	StatusAborted RunStatus = "aborted"
	// StatusFailed means the model layer gave out, e.g. every backend in the
	// chain failed.
	StatusFailed   RunStatus = "failed"
	StatusExceeded RunStatus = "exceeded"
)

// DefaultMaxSteps bounds how many tool dispatches a run may perform.
const DefaultMaxSteps = 10

const defaultMaxTokens = 4096

// RunState is the observable state of a single run. StepCount counts tool
// dispatches and never exceeds the configured step budget.
type RunState struct {
	RunID        string
	Conversation *llm.Conversation
	StepCount    int
	Status       RunStatus
	FinalAnswer  string
}

// Options tunes a run.
type Options struct {
	// MaxSteps caps tool dispatches per run. Zero means DefaultMaxSteps.
	MaxSteps int
	// PreferredTier biases backend selection without overriding chain order.
	PreferredTier string
	// Stream requests token streaming from the backend; streamed text is
	// forwarded as console events.
	Stream bool
	// MaxTokens is the per-completion output cap. Zero means a default.
	MaxTokens int
}

// Orchestrator drives the agentic loop: ask the model, parse its reply,
// dispatch at most one tool per step, feed the observation back, repeat until
// the model answers in plain text or the step budget runs out.
type Orchestrator struct {
	router  *llm.Router
	reg     *llm.Registry
	tools   *Registry
	sandbox *Sandbox
	parser  *Parser
	logger  *slog.Logger
}

// NewOrchestrator wires a loop over a router, a tool registry, and a sandbox.
// A nil logger discards.
func NewOrchestrator(router *llm.Router, reg *llm.Registry, tools *Registry, sandbox *Sandbox, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		router:  router,
		reg:     reg,
		tools:   tools,
		sandbox: sandbox,
		parser:  NewParser(logger),
		logger:  logger,
	}
}

// Run executes one task to completion. Events are emitted on sink as the run
// progresses; a nil sink drops them. The returned RunState is always
// populated, including on error.
func (o *Orchestrator) Run(ctx context.Context, task string, opts Options, sink *EventSink) (*RunState, error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	runID := uuid.NewString()
	if sink == nil {
		sink = NewEventSink(runID, 1)
		defer sink.Close()
	}
	sink.setRunID(runID)

	state := &RunState{
		RunID:        runID,
		Conversation: &llm.Conversation{},
		Status:       StatusRunning,
	}
	state.Conversation.Append(
		llm.SystemMessage(BuildSystemPrompt(o.sandbox, o.tools, o.allBackendsNative())),
		llm.UserMessage(task),
	)
	logger := o.logger.With("run_id", runID)
	logger.Info("run started", "task_chars", len(task), "max_steps", maxSteps)

	for {
		if err := ctx.Err(); err != nil {
			state.Status = StatusAborted
			return state, err
		}
		if state.StepCount >= maxSteps {
			return o.exceed(state, sink, logger, maxSteps)
		}

		resp, err := o.complete(ctx, state, maxTokens, opts, sink)
		if err != nil {
			if ctx.Err() != nil {
				state.Status = StatusAborted
			} else {
				state.Status = StatusFailed
			}
			logger.Error("completion failed", "error", err)
			return state, err
		}

		action := o.parser.Parse(resp)
		if !action.IsToolCall() {
			state.Conversation.Append(llm.AssistantMessage(action.FinalAnswer))
			state.Status = StatusFinished
			state.FinalAnswer = action.FinalAnswer
			sink.Emit(EventFinalAnswer, map[string]any{"text": action.FinalAnswer})
			logger.Info("run finished", "steps", state.StepCount)
			return state, nil
		}

		call := *action.ToolCall
		state.StepCount++
		state.Conversation.Append(llm.AssistantToolCallMessage(resp.Text, call))

		result := o.tools.Dispatch(ctx, call, o.sandbox)
		sink.Emit(EventToolResult, map[string]any{
			"tool":      result.ToolName,
			"call_id":   result.CallID,
			"output":    result.Output,
			"error":     string(result.Err),
			"exit_code": result.ExitCode,
		})
		logger.Info("tool dispatched",
			"step", state.StepCount, "tool", call.Name, "error", string(result.Err))

		// The conversation gets a bounded view of the output; the event
		// above carried all of it.
		result.Output = truncateToolOutput(result.Output, call.Name)
		state.Conversation.Append(llm.ToolResultMessage(result))

		if detectLoop(state.Conversation, defaultLoopWindow) {
			logger.Warn("repetition detected, steering", "step", state.StepCount)
			state.Conversation.Append(llm.UserMessage(loopSteeringObservation))
		}
	}
}

// complete performs one model call, streaming if requested.
func (o *Orchestrator) complete(ctx context.Context, state *RunState, maxTokens int, opts Options, sink *EventSink) (*llm.Response, error) {
	req := llm.Request{
		Messages:  state.Conversation.Messages(),
		Tools:     o.tools.Specs(),
		MaxTokens: maxTokens,
	}
	if !opts.Stream {
		return o.router.Send(ctx, req, opts.PreferredTier)
	}

	ch, err := o.router.Stream(ctx, req, opts.PreferredTier)
	if err != nil {
		return nil, err
	}
	var final *llm.Response
	for chunk := range ch {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		if chunk.Text != "" {
			sink.Emit(EventConsole, map[string]any{"text": chunk.Text})
		}
		if chunk.Done {
			final = chunk.Final
		}
	}
	if final == nil {
		return nil, &llm.MalformedResponseError{BackendError: llm.BackendError{
			Kind:    llm.KindMalformedResponse,
			Message: "stream ended without a final response",
		}}
	}
	return final, nil
}

// exceed finalizes a run that hit its step budget. The last assistant text, if
// any, is surfaced as a best-effort answer with an explicit warning.
func (o *Orchestrator) exceed(state *RunState, sink *EventSink, logger *slog.Logger, maxSteps int) (*RunState, error) {
	state.Status = StatusExceeded
	warning := fmt.Sprintf("[run stopped: step budget of %d reached before a final answer]", maxSteps)
	if last := state.Conversation.LastAssistantText(); last != "" {
		state.FinalAnswer = last + "\n\n" + warning
	} else {
		state.FinalAnswer = warning
	}
	sink.Emit(EventFinalAnswer, map[string]any{"text": state.FinalAnswer, "exceeded": true})
	logger.Warn("step budget exhausted", "steps", state.StepCount)
	return state, nil
}

// allBackendsNative reports whether every available backend speaks native
// tool calls, which decides if the system prompt must carry the textual
// protocol.
func (o *Orchestrator) allBackendsNative() bool {
	for _, d := range o.reg.Available() {
		if !d.SupportsNativeTools {
			return false
		}
	}
	return true
}
