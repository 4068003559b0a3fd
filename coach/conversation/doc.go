// Package conversation implements the conversational coaching agent: the
// same bounded loop as the creation workflow, with tools oriented around
// logging workouts and saving or recalling durable user memories, plus a
// streaming variant that forwards partial text to the caller as it becomes
// available.
//
// End users never see raw tool or model errors; when the agent cannot
// produce a usable answer the layer substitutes a graceful fallback
// message. After every reply a detached memory-extraction job is fired;
// its failure is logged and never observed by the caller.
package conversation
