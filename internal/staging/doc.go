// Package staging owns the temp paths stages work in.
//
// Every path has the form <root>/<prefix>_<stage>_<runTS>_<run>_<key>, where
// runTS is the run's execution timestamp and run names the invocation, so two
// records sharing an execution date never collide. Removal is refused for
// anything that is not strictly beneath the root.
package staging
