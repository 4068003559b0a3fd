// Package agent implements the bounded conversational loop that alternates
// between asking a chat-completion model and running the tools it requests,
// terminating on a well-defined stop condition. The package focuses on three
// concerns:
//
//  1. The loop engine itself (Agent.Converse / Agent.ConverseStream)
//  2. Tool dispatch with sequential and order-preserving parallel paths
//  3. Injected policies for blocking tool calls and detecting stalled runs
//
// Design principles:
//   - No hidden global state; all configuration is explicit at construction
//   - Tool failures are data: lookup misses, blocked calls and execution
//     errors become in-band error tool-results, never loop aborts
//   - Model/API failures are fatal to the current Converse call and
//     propagate to the caller, who decides fallback behavior
//   - The iteration cap is the cancellation mechanism; runaway loops
//     self-terminate with best-available text or a fixed fallback
//
// Conversation history and the tool ResultStore are owned exclusively by one
// Agent instance and must not be shared across concurrent runs.
package agent
