// Package exttool launches and tracks the long-running external analysis
// tools that run alongside the in-process pipeline.
//
// Both known tools share the Handle type but differ in lifecycle: the
// coupled diagnostics tool is launched early, retained, and joined after all
// in-process phases complete, while the secondary statistics engine is
// fire-and-forget — started, released, and never waited on. A non-zero exit
// from a joined tool is reported but never fails the run.
package exttool
