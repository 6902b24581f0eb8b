// Package placeholder renders {{ name }} templates used in stage selectors,
// output metadata and command lines.
package placeholder
