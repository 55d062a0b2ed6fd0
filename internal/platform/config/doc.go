// Package config centralizes environment parsing and fatal-exit helpers
// shared by service entry points.
package config
