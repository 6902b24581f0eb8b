// Package command runs domain tools as opaque subprocess stage bodies.
package command
