// Package config loads runtime settings from a YAML or JSON file and TASKRT_* environment
// variables.
//
// Precedence, lowest first: Default(), the file given to Load, then FromEnv.
package config
