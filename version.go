// Package dynamicmcp provides the version information for dynamic-mcp.
package dynamicmcp

// Version is the current version of dynamic-mcp.
var Version = "0.1.0"

// Commit is the VCS revision the binary was built from, set via -ldflags.
var Commit = "unknown"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
