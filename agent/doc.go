// Package agent composes tool-call loops into multi-stage workflows.
// The package focuses on three concerns:
//
//  1. Stage: a named, immutable reasoning unit (model + instructions +
//     capability subset) built by NewStage and run with a fresh
//     conversation per invocation
//  2. SequentialPipeline: stages run in strict order, each seeing the input
//     and every prior stage's labelled output; the first failure aborts
//  3. FanOut: independent stages run concurrently, failures degrade to
//     fallback text, and one synthesis stage combines the outcomes
//
// Design principles:
//   - No ambient global state: stages are values passed into coordinators
//   - Coordinators operate on captured outcomes, never on unwinding errors
//   - Observability: dotted log events, Prometheus metrics, OpenTelemetry spans
package agent
