// Command satpipe is the operator CLI for the satellite data pipeline.
//
// It runs the watcher (`watch` in the foreground, `poll` for a single tick),
// executes pipelines and single stages as the workflow engine's task
// entrypoint, and inspects or repairs file records in the metadata store.
package main
