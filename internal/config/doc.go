// Package config loads, normalizes, and validates clipforge configuration.
//
// Configuration is stored as TOML. Load resolves the file location, applies
// repository defaults for anything unset, expands user paths, and validates
// the result so the rest of the program can trust every field.
package config
