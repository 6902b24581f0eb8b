// Package trigger adapts workflow engines to the watcher's Runtime
// interface. The temporal adapter starts workflows through the Temporal SDK,
// the command adapter shells out to an engine CLI such as Airflow's, and the
// log adapter only records what would have been triggered.
package trigger
