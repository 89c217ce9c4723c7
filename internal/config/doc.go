// Package config provides configuration structures and utilities for perflens.
// It defines analysis deadlines, sampling settings, tool path overrides and
// export destinations, loads the optional .perflens YAML file and derives the
// per-worker RunConfig.
package config
