// Package config loads, validates, and normalizes shuttle's TOML
// configuration.
//
// Load resolves the config file (explicit path, then
// ~/.config/shuttle/config.toml, then ./shuttle.toml), layers it on top of
// Default(), expands every path field to an absolute path, and validates the
// result. Derived locations (queue database, daemon socket, lock and pid
// files, spool subdirectories) are exposed as methods so callers never join
// path fragments themselves.
package config
