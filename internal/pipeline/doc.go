// Package pipeline contains the top-level orchestrator that sequences the
// diagnostics phases.
//
// A single control goroutine drives the run: time-series extraction (twice
// in baseline mode), external tool launch, climatology, the observation
// gate, regridding, analysis, plotting and report assembly, finishing by
// joining the retained coupled-diagnostics tool. Concurrency exists only at
// the external tool boundary; in-process phases are strictly sequential and
// share nothing but the read-only resolved configuration.
package pipeline
