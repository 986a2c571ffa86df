// Package config holds objdetect's configuration: defaults, the optional
// YAML config file, validation, and XDG directory locations.
package config
