// Package buildinfo carries version information stamped at build time.
package buildinfo

// Version is overridden via -ldflags on release builds.
var Version = "dev"
