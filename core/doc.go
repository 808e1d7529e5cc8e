// Package core provides the foundational domain types shared by every layer
// of agentflow:
//
//   - Messages, their tagged Content variant and the closed Part set
//   - CapabilityCall (a model-requested tool invocation)
//   - ConversationState (the append-only history threaded through one run)
//   - Extract, which normalizes any message content into plain text
//   - The error taxonomy used by loops and coordinators
//   - ToolContext, the scoped surface handed to tool implementations
//
// The package is intentionally free of orchestration logic; flows, stages and
// coordinators live in the flow and agent packages.
package core
