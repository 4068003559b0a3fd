// Package store defines the persistence collaborators the coaching agents
// depend on, plus volatile in-memory implementations.
//
// The agents treat persistence as opaque: they read and write parsed domain
// objects by id and receive ErrNotFound when a record does not exist. The
// in-memory implementations are safe for concurrent access and clone data on
// the way in and out; they suit tests, examples and single-process
// prototypes. Production deployments substitute durable backends behind the
// same interfaces.
package store
