// Package agent implements the agentic orchestration loop: parsing model
// output into typed actions, dispatching tool calls through a sandbox, and
// driving a bounded send/parse/dispatch state machine.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Orchestrator: the run state machine. One model call per iteration, at
//     most one tool dispatch per step, a hard step budget, and cooperative
//     cancellation through context.
//   - Parser: recovers a typed Action from a backend response. Native tool
//     calls win; otherwise an Action:/Action Input: block is extracted from
//     free text with balanced-brace counting, decoded as strict JSON and
//     then as a Python-dialect literal. Anything unparseable degrades to a
//     FinalAnswer, which cannot execute.
//   - Sandbox: path confinement, command denylisting, script screening,
//     environment filtering, and wall-clock timeouts for every side effect.
//   - Registry and the core tools: file inspection and mutation, search,
//     shell, and script evaluation, all routed through the Sandbox.
//   - EventSink: a non-blocking typed event stream for host integration.
//
// # Quick Start
//
//	sandbox, _ := agent.NewSandbox("/path/to/project", 0, logger)
//	tools := agent.NewRegistry()
//	agent.RegisterCoreTools(tools)
//
//	orch := agent.NewOrchestrator(router, registry, tools, sandbox, logger)
//	state, err := orch.Run(ctx, "Create a hello.py file", agent.Options{}, sink)
//	fmt.Println(state.FinalAnswer)
package agent
