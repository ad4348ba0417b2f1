// Package config defines the sentinel settings and managed component
// definitions, with helpers to load, validate and save them in YAML format.
//
// Validation applies defaults in place (timeouts, paths, listen address) and
// enforces component requirements: unique names, absolute binary paths, a
// service name, and well-formed URLs where provided.
package config
