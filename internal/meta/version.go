// Package meta holds build metadata shared by the server and the CLI.
package meta

var (
	// Version is the gomdmcp release version.
	// Set at build time with -ldflags "-X .../internal/meta.Version=...".
	Version = "0.0.0-dev"
)
