// Package cli parses command-line arguments into the application
// configuration and defines the ExitError used to carry exit codes to the
// entrypoint.
package cli
