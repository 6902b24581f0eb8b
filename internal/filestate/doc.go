// Package filestate defines the statuses a file record moves through and the
// transitions between them.
//
// The package performs no I/O. Callers that mutate the metadata store consult
// CanTransition before issuing a conditional update so that an illegal or
// stale transition becomes a false result instead of an error.
package filestate
