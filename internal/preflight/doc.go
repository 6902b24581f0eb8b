// Package preflight provides readiness checks for the filesystem paths,
// stores and external binaries satpipe depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and refuses to poll when a check
//     fails, so records are not claimed by a process that cannot run them.
//   - `satpipe doctor` prints every result.
package preflight
