// Package daemon supervises satpipe's background loops: the watcher poll
// loop, the sweeper that removes abandoned temp paths and the monitor that
// warns about records stuck in processing. A file lock in the state
// directory keeps a second daemon from polling the same configuration.
package daemon
