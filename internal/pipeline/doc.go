// Package pipeline runs configured pipelines for a triggered record.
//
// A pipeline is an ordered list of lifecycle-wrapped stages plus the status
// the triggering record receives when they all succeed. Failure of any stage
// always moves the record to failed.
package pipeline
