// Package pipelinego provides the version information for pipeline-go.
package pipelinego

// Version is the current version of pipeline-go.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
