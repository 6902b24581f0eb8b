// Package metadata is the client for the shared metadata store.
//
// Every artifact the pipeline touches is a row in the file table keyed by
// product type, acquisition time and area. Stages discover inputs with
// selector strings (Extract), register outputs (Load) and move records
// through the file state machine with conditional updates (UpdateStatus).
//
// Three SQL dialects are supported: sqlite (modernc.org/sqlite, the default
// and the one tests run against), mysql and postgres. Artifact bytes live
// behind an artifact.Store; the database only records their location and
// multihash.
package metadata
