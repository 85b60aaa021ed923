// Package config provides termmark's typed configuration.
//
// Settings are resolved in layers, lowest priority first: built-in
// defaults, an optional TOML or YAML file, then TERMMARK_ environment
// variables. The merged map is decoded into a Config and validated.
//
//	cfg, err := config.Load(config.WithFile("termmark.toml"))
//
// A Watcher reloads the file on change and hands the new Config to a
// callback; see NewWatcher.
package config
