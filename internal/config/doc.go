// Package config defines launcher settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type describes where the vendored application lives, how its
// repository is updated, and how the bundled server is installed and started.
package config
