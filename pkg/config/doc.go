// Package config loads the YAML configuration files of cfgd and cfgctl.
//
// Durations are written as Go duration strings ("30s", "20m"). Fields
// left out keep the value of DefaultServerFile or DefaultClientFile, and
// command-line flags override the file.
package config
