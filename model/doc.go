// Package model defines the provider-agnostic abstraction of the reasoning
// service (the "ReasoningPort") plus a scripted test double.
//
// Core goals:
//   - One synchronous Generate call: history + instructions + available
//     capabilities in, next assistant message out
//   - Normalize capability call representation (ToolDefinition, core.CapabilityCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate deterministic stubbing for tests (ScriptedModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface in sub-packages
// so loops and coordinators remain decoupled from vendor SDKs.
package model
