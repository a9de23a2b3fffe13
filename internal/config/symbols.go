package config

import "github.com/zclconf/go-cty/cty"

// symbolTable indexes every leaf value in the document by its name, scoped
// to the top-level section it appears under. It is rebuilt on each
// resolution pass so substituted values become visible to later passes.
type symbolTable struct {
	// qualified maps "section.name" to the leaf value.
	qualified map[string]cty.Value
	// sections maps a bare leaf name to the set of sections declaring it,
	// used to detect ambiguous bare references.
	sections map[string][]string
	// conflicted marks names that appear more than once within a single
	// section; even a qualified lookup of such a name is ambiguous.
	conflicted map[string]bool
}

// buildSymbols flattens the document tree into a symbol table. Leaves are
// all attributes whose value is not a nested mapping; list values are
// indexed too and may be referenced by whole-scalar tokens.
func buildSymbols(root cty.Value) *symbolTable {
	t := &symbolTable{
		qualified:  make(map[string]cty.Value),
		sections:   make(map[string][]string),
		conflicted: make(map[string]bool),
	}
	for section, sv := range root.AsValueMap() {
		if !sv.Type().IsObjectType() {
			// A scalar directly at the top level is its own symbol.
			t.add(section, section, sv)
			continue
		}
		t.walk(section, sv)
	}
	return t
}

func (t *symbolTable) walk(section string, v cty.Value) {
	for name, av := range v.AsValueMap() {
		if av.Type().IsObjectType() {
			t.walk(section, av)
			continue
		}
		t.add(section, name, av)
	}
}

func (t *symbolTable) add(section, name string, v cty.Value) {
	key := section + "." + name
	if _, dup := t.qualified[key]; dup {
		t.conflicted[key] = true
	}
	t.qualified[key] = v
	t.sections[name] = append(t.sections[name], section)
}

// lookup resolves a token reference. A qualified reference selects the
// section directly; a bare reference succeeds only when exactly one section
// declares the name.
func (t *symbolTable) lookup(section, name string) (cty.Value, error) {
	if section != "" {
		key := section + "." + name
		if t.conflicted[key] {
			return cty.NilVal, newErrorf("variable %q appears more than once under section %q", name, section)
		}
		v, ok := t.qualified[key]
		if !ok {
			return cty.NilVal, newErrorf("unknown variable %q in section %q", name, section)
		}
		return v, nil
	}

	declaring := t.sections[name]
	switch len(declaring) {
	case 0:
		return cty.NilVal, newErrorf("unknown variable %q", name)
	case 1:
		return t.lookup(declaring[0], name)
	default:
		return cty.NilVal, newErrorf("variable %q is ambiguous: declared under sections %v; use a section-qualified reference", name, declaring)
	}
}
