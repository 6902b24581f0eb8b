// Package services defines shared utilities consumed by pipeline stages and
// runtime adapters.
//
// Key responsibilities:
//   - Context helpers that stamp record IDs, stage and pipeline names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from external
//     tools and runtimes read the same way in logs and CLI output.
package services
