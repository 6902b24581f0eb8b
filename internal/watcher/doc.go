// Package watcher polls the metadata store for records waiting in to_load,
// claims each one with a conditional status update, and asks the runtime to
// start the pipelines its watch group names.
//
// Coordination between watcher processes happens only through the store:
// UpdateStatus(to_load, processing) succeeds for exactly one caller, so a
// record is dispatched once no matter how many watchers poll it. A trigger
// that fails after the claim leaves the record in processing; operators find
// such records with `satpipe files stuck`.
package watcher
