// Package creator implements the coach creation agent: a fixed multi-step
// workflow (load requirements, select personality and methodology templates,
// generate a profile, assemble, validate, optionally normalize, persist)
// driven purely through tool declarations and a system prompt.
//
// The workflow order is advisory. The model is trusted to sequence steps
// according to its instructions; the one safety-critical transition,
// persisting only a validated config, is enforced in code through the
// agent's blocking policy. A stalled run (the model asking a clarifying
// question in a fire-and-forget job nobody reads) is retried exactly once
// with a stronger prompt, preserving completed tool results.
package creator
