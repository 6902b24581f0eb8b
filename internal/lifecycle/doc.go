// Package lifecycle wraps stage bodies in a uniform
// extract, execute, load and cleanup contract.
//
// Failures surface as one of four typed errors, so callers can tell missing
// inputs from tool failures from registration conflicts with errors.As.
// Temp paths are always released, whatever the outcome.
package lifecycle
