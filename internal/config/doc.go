// Package config loads, validates, and normalizes Sherpa configuration.
//
// Configuration lives in a TOML file (default ~/.config/sherpa/config.toml,
// with ./sherpa.toml as a project-local fallback). Load applies defaults for
// anything the file omits, expands ~ in path fields, and rejects values the
// daemon cannot operate with. The judge API key may come from the environment
// instead of the file so credentials stay out of dotfiles.
package config
