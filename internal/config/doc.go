// Package config loads, normalizes, and validates satpipe configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for
// credentials such as SATPIPE_STORE_DSN. The Config type centralizes every
// knob the daemon and CLI need, from store drivers to watch groups and
// pipeline stage definitions.
package config
