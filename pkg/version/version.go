// Package version holds the symbolic version of the running code.
package version

// Version is overridden at build time with -ldflags "-X ...".
var Version = "v0.1.0"
