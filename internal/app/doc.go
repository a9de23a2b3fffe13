// Package app wires the application together: it loads and resolves the
// configuration, populates and validates the script registry, and runs the
// pipeline orchestrator. Construction failures are fatal startup errors and
// panic; the entrypoint recovers them into a clean exit.
package app
