// Package executor runs a batch of tool-call steps with dependency-aware
// parallelism.
//
// Planning builds each step's dependency set from its explicit DependsOn
// list, the implicit rules registered for its step kind, and resource
// conflicts (two mutating steps touching the same target never share a
// parallel group). Steps whose dependencies are satisfied form a ready
// set; read-only or non-colliding steps run as one parallel batch, the
// rest become single-step sequential batches. When no step is ready but
// steps remain, the cycle is broken by forcibly scheduling one remaining
// step — a lossy tie-break that is logged, not silent.
//
// Execution dispatches each batch in chunks of at most MaxParallel
// concurrent steps, races every step against its own timeout, and retries
// failures with a linear backoff. A failed step is isolated to its own
// ToolResult and never halts siblings in the same chunk.
package executor
