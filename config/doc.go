// Package config loads bobber settings from defaults, an optional YAML file
// and BOBBER_* environment variables, in increasing order of precedence.
package config
