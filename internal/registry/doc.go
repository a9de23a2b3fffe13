// Package registry maps the script names declared in the configuration's
// per-phase lists to their PhaseScript implementations.
//
// Go-native scripts are registered explicitly at startup; every configured
// name without a Go handler falls back to an exec-backed script located
// under `<scripts_root>/<phase>/<name>`. Registration of a duplicate name is
// a programmer error and panics.
package registry
