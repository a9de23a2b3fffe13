// Package config loads the declarative diagnostics configuration and
// resolves it into the typed, read-only model consumed by the rest of the
// application.
//
// Loading happens in three steps: the YAML document is parsed into a tree of
// cty values, `${name}` / `${section.name}` interpolation tokens are resolved
// against a section-scoped symbol table, and the fully-resolved tree is
// decoded into the `Resolved` view. The `Resolved` value is the single source
// of truth for the pipeline, registry and exttool packages and is never
// mutated after construction.
package config
