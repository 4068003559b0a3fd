// Package coach contains the shared domain types of the coaching product:
// coach-creator session requirements, template choices, assembled coach
// configurations, logged workouts and conversational memories.
//
// The types live here rather than in the orchestration packages so that
// store implementations and both agents can depend on them without cycles.
// Tool inputs and outputs are concrete structs, not open maps; every field
// the model is expected to supply carries a JSON tag and a description.
package coach
