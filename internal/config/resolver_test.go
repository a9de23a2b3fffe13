package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func mustParse(t *testing.T, doc string) *Document {
	t.Helper()
	parsed, err := Parse([]byte(doc))
	require.NoError(t, err)
	return parsed
}

// minimal valid skeleton the resolver tests build on
const skeleton = `
basic_info:
  output_root: /data/diag
  compare_obs: true
simulation:
  case_name: control
observations:
  obs_path: /data/obs
`

func TestResolve_NoTokensIsIdentity(t *testing.T) {
	doc := mustParse(t, skeleton+`
extra:
  plain: hello
  years: 20
  flag: true
  names: [a, b, a]
`)

	resolved, err := Resolve(doc)
	require.NoError(t, err)

	assert.True(t, doc.Root().RawEquals(resolved.Root()), "a document without tokens must resolve to itself")
}

func TestResolve_QualifiedToken(t *testing.T) {
	doc := mustParse(t, skeleton+`
paths:
  climo: "${basic_info.output_root}/climo"
`)

	resolved, err := Resolve(doc)
	require.NoError(t, err)

	v := resolved.Root().GetAttr("paths").GetAttr("climo")
	assert.Equal(t, "/data/diag/climo", v.AsString())
}

func TestResolve_WholeTokenPreservesType(t *testing.T) {
	doc := mustParse(t, skeleton+`
numbers:
  start_year: 1979
  enabled: true
  vars: [TS, PSL]
derived:
  year: "${numbers.start_year}"
  flag: "${numbers.enabled}"
  copy: "${numbers.vars}"
  text: "year ${numbers.start_year}"
`)

	resolved, err := Resolve(doc)
	require.NoError(t, err)
	derived := resolved.Root().GetAttr("derived")

	year := derived.GetAttr("year")
	assert.Equal(t, cty.Number, year.Type(), "whole-token scalar keeps the numeric type")
	i, _ := year.AsBigFloat().Int64()
	assert.EqualValues(t, 1979, i)

	assert.Equal(t, cty.Bool, derived.GetAttr("flag").Type())
	assert.True(t, derived.GetAttr("copy").Type().IsTupleType(), "whole-token scalar keeps the list type")

	// Embedded in a longer string the number is stringified.
	assert.Equal(t, "year 1979", derived.GetAttr("text").AsString())
}

func TestResolve_BareTokenUniqueAcrossSections(t *testing.T) {
	doc := mustParse(t, skeleton+`
derived:
  root_copy: "${output_root}"
`)

	resolved, err := Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, "/data/diag", resolved.Root().GetAttr("derived").GetAttr("root_copy").AsString())
}

func TestResolve_AmbiguousBareTokenFails(t *testing.T) {
	// case_name is declared by both simulation and baseline.
	doc := mustParse(t, `
basic_info:
  output_root: /data/diag
  compare_obs: false
simulation:
  case_name: control
baseline:
  case_name: reference
derived:
  name: "${case_name}"
`)

	_, err := Resolve(doc)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestResolve_UnknownReferenceFails(t *testing.T) {
	doc := mustParse(t, skeleton+`
derived:
  missing: "${no_such_variable}"
`)

	_, err := Resolve(doc)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "unknown variable")
}

func TestResolve_UnknownSectionFails(t *testing.T) {
	doc := mustParse(t, skeleton+`
derived:
  missing: "${nowhere.output_root}"
`)

	_, err := Resolve(doc)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolve_UppercaseTokenFails(t *testing.T) {
	doc := mustParse(t, skeleton+`
derived:
  bad: "${basic_info.Output_Root}"
`)

	_, err := Resolve(doc)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "lowercase")
}

func TestResolve_CycleFailsInsteadOfLooping(t *testing.T) {
	doc := mustParse(t, skeleton+`
cycle:
  a: "${cycle.b}"
  b: "${cycle.a}"
`)

	_, err := Resolve(doc)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "cycle")
}

func TestResolve_ChainedTokensSettle(t *testing.T) {
	doc := mustParse(t, skeleton+`
chain:
  first: /base
  second: "${chain.first}/mid"
  third: "${chain.second}/leaf"
`)

	resolved, err := Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, "/base/mid/leaf", resolved.Root().GetAttr("chain").GetAttr("third").AsString())
}

func TestResolve_ListIntoStringFails(t *testing.T) {
	doc := mustParse(t, skeleton+`
lists:
  vars: [TS, PSL]
derived:
  bad: "prefix ${lists.vars}"
`)

	_, err := Resolve(doc)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolve_TokensInsideLists(t *testing.T) {
	doc := mustParse(t, skeleton+`
derived:
  roots: ["${basic_info.output_root}/a", "${basic_info.output_root}/b"]
`)

	resolved, err := Resolve(doc)
	require.NoError(t, err)
	roots := resolved.Root().GetAttr("derived").GetAttr("roots")
	first := roots.Index(cty.NumberIntVal(0))
	assert.Equal(t, "/data/diag/a", first.AsString())
}

func TestParse_RejectsNonMappingRoot(t *testing.T) {
	_, err := Parse([]byte(`[a, b]`))
	require.Error(t, err)
}

func TestParse_RejectsEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(``))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
