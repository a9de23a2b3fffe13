package config

import (
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// maxResolvePasses bounds the interpolation fixed point. Documents that
// still contain tokens after this many passes hold a reference cycle.
const maxResolvePasses = 10

var (
	tokenPattern = regexp.MustCompile(`\$\{([^{}]*)\}`)
	namePattern  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Resolve replaces every `${name}` / `${section.name}` token in the document
// with its literal value and returns the typed, read-only configuration view.
//
// Resolution iterates to a fixed point: each pass rebuilds the symbol table
// from the current tree and substitutes one level of references, so a token
// whose target itself contains a token settles on a later pass. A document
// without tokens resolves to itself. Cycles exhaust the pass budget and fail
// with a ConfigError instead of looping.
func Resolve(doc *Document) (*Resolved, error) {
	root := doc.root
	for pass := 0; pass < maxResolvePasses; pass++ {
		if !hasTokens(root) {
			return newResolved(root)
		}
		table := buildSymbols(root)
		next, err := substituteValue(root, table)
		if err != nil {
			return nil, err
		}
		root = next
	}
	if hasTokens(root) {
		return nil, newErrorf("interpolation did not settle after %d passes; the document contains a self-referential token cycle", maxResolvePasses)
	}
	return newResolved(root)
}

// hasTokens reports whether any string leaf still contains token syntax.
func hasTokens(v cty.Value) bool {
	ty := v.Type()
	switch {
	case ty.IsObjectType() || ty.IsTupleType():
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if hasTokens(ev) {
				return true
			}
		}
		return false
	case ty == cty.String && !v.IsNull():
		return tokenPattern.MatchString(v.AsString())
	default:
		return false
	}
}

// substituteValue rebuilds the tree with one substitution pass applied to
// every string leaf.
func substituteValue(v cty.Value, table *symbolTable) (cty.Value, error) {
	ty := v.Type()
	switch {
	case ty.IsObjectType():
		attrs := make(map[string]cty.Value, len(v.AsValueMap()))
		for name, av := range v.AsValueMap() {
			nv, err := substituteValue(av, table)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[name] = nv
		}
		if len(attrs) == 0 {
			return cty.EmptyObjectVal, nil
		}
		return cty.ObjectVal(attrs), nil
	case ty.IsTupleType():
		if v.LengthInt() == 0 {
			return v, nil
		}
		elems := make([]cty.Value, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			nv, err := substituteValue(ev, table)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, nv)
		}
		return cty.TupleVal(elems), nil
	case ty == cty.String && !v.IsNull():
		return substituteString(v.AsString(), table)
	default:
		return v, nil
	}
}

// substituteString resolves the tokens inside one scalar. When the scalar is
// exactly one token the referenced value is returned as-is, preserving its
// original type; otherwise each token is stringified into the surrounding
// text.
func substituteString(s string, table *symbolTable) (cty.Value, error) {
	matches := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return cty.StringVal(s), nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		section, name, err := parseToken(s[matches[0][2]:matches[0][3]])
		if err != nil {
			return cty.NilVal, err
		}
		return table.lookup(section, name)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		section, name, err := parseToken(s[m[2]:m[3]])
		if err != nil {
			return cty.NilVal, err
		}
		v, err := table.lookup(section, name)
		if err != nil {
			return cty.NilVal, err
		}
		text, err := stringify(v)
		if err != nil {
			return cty.NilVal, newErrorf("cannot substitute %q into %q: %v", s[m[0]:m[1]], s, err)
		}
		b.WriteString(text)
		last = m[1]
	}
	b.WriteString(s[last:])
	return cty.StringVal(b.String()), nil
}

// parseToken splits a token reference into its optional section qualifier
// and variable name. Names must be lowercase identifiers.
func parseToken(ref string) (section, name string, err error) {
	parts := strings.Split(ref, ".")
	switch len(parts) {
	case 1:
		section, name = "", parts[0]
	case 2:
		section, name = parts[0], parts[1]
	default:
		return "", "", newErrorf("invalid token reference %q: at most one section qualifier is allowed", ref)
	}
	for _, p := range parts {
		if !namePattern.MatchString(p) {
			return "", "", newErrorf("invalid token reference %q: names must be lowercase identifiers", ref)
		}
	}
	return section, name, nil
}
