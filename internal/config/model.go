package config

import (
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gopkg.in/yaml.v3"
)

// Phase identifies one ordered stage of the diagnostics pipeline.
type Phase string

const (
	PhaseTimeAveraging Phase = "time_averaging"
	PhaseRegridding    Phase = "regridding"
	PhaseAnalysis      Phase = "analysis"
	PhasePlotting      Phase = "plotting"
)

// Phases returns all pipeline phases in macro-execution order.
func Phases() []Phase {
	return []Phase{PhaseTimeAveraging, PhaseRegridding, PhaseAnalysis, PhasePlotting}
}

// ScriptListKey is the top-level section holding the phase's script list.
func (p Phase) ScriptListKey() string {
	return string(p) + "_scripts"
}

// FailPolicy controls how a phase reacts to a failing script.
type FailPolicy int

const (
	// FailFast aborts the remaining scripts of the phase and the run.
	FailFast FailPolicy = iota
	// CollectErrors records the failure and continues with the next script.
	CollectErrors
)

// defaultPolicy reflects that climatology correctness is a precondition for
// everything downstream, while analysis and plotting outputs are independent
// per-variable artifacts.
func defaultPolicy(p Phase) FailPolicy {
	switch p {
	case PhaseAnalysis, PhasePlotting:
		return CollectErrors
	default:
		return FailFast
	}
}

// Known external tool instance names.
const (
	ToolCoupledDiag = "coupled_diag"
	ToolStatsEngine = "stats_engine"
)

// BasicInfo carries the run-wide settings from the basic_info section.
type BasicInfo struct {
	CaseName       string
	OutputRoot     string
	ScriptsRoot    string
	CompareObs     bool
	GenerateReport bool
	OverwriteTS    bool
	OverwriteClimo bool
}

// Case describes one simulation (the model case or the baseline case).
type Case struct {
	CaseName    string
	HistoryPath string
	TSPath      string
	ClimoPath   string
	StartYear   int
	EndYear     int
}

// Observations describes where to look for observational reference data.
type Observations struct {
	ObsPath   string
	Variables []string
}

// Tool holds the launch parameters for one external analysis tool.
// Params carries every free-form scalar from the tool's section; it is
// forwarded verbatim into the generated tool configuration.
type Tool struct {
	Name        string
	Enabled     bool
	Executable  string
	WorkDir     string
	JoinTimeout time.Duration
	Params      map[string]cty.Value
}

// Resolved is the fully-interpolated, typed configuration. It is read-only
// for the remainder of the run and safe for concurrent reads.
type Resolved struct {
	root cty.Value

	BasicInfo    BasicInfo
	Simulation   Case
	Baseline     *Case
	Observations Observations
	Tools        map[string]Tool

	scripts    map[Phase][]string
	scriptArgs map[string]map[string]cty.Value
	policies   map[Phase]FailPolicy
}

// newResolved decodes the fully-substituted tree into the typed view.
func newResolved(root cty.Value) (*Resolved, error) {
	r := &Resolved{
		root:       root,
		Tools:      make(map[string]Tool),
		scripts:    make(map[Phase][]string),
		scriptArgs: make(map[string]map[string]cty.Value),
		policies:   make(map[Phase]FailPolicy),
	}

	basic, ok := attr(root, "basic_info")
	if !ok {
		return nil, newErrorf("missing required section %q", "basic_info")
	}
	if err := r.decodeBasicInfo(basic); err != nil {
		return nil, err
	}

	sim, ok := attr(root, "simulation")
	if !ok {
		return nil, newErrorf("missing required section %q", "simulation")
	}
	simCase, err := decodeCase("simulation", sim)
	if err != nil {
		return nil, err
	}
	r.Simulation = simCase

	if base, ok := attr(root, "baseline"); ok {
		baseCase, err := decodeCase("baseline", base)
		if err != nil {
			return nil, err
		}
		r.Baseline = &baseCase
	}

	if obs, ok := attr(root, "observations"); ok {
		if err := r.decodeObservations(obs); err != nil {
			return nil, err
		}
	}

	if tools, ok := attr(root, "external_tools"); ok {
		if err := r.decodeTools(tools); err != nil {
			return nil, err
		}
	}

	for _, p := range Phases() {
		r.policies[p] = defaultPolicy(p)
		list, ok := attr(root, p.ScriptListKey())
		if !ok {
			continue
		}
		names, err := stringList(p.ScriptListKey(), list)
		if err != nil {
			return nil, err
		}
		r.scripts[p] = names
	}

	if args, ok := attr(root, "script_args"); ok {
		if err := r.decodeScriptArgs(args); err != nil {
			return nil, err
		}
	}

	if pol, ok := attr(root, "phase_policy"); ok {
		if err := r.decodePhasePolicy(pol); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Root returns the resolved value tree.
func (r *Resolved) Root() cty.Value {
	return r.root
}

// ScriptsFor returns the ordered script names configured for a phase. An
// absent list yields an empty slice and the phase becomes a no-op.
func (r *Resolved) ScriptsFor(p Phase) []string {
	return r.scripts[p]
}

// PolicyFor returns the effective failure policy for a phase.
func (r *Resolved) PolicyFor(p Phase) FailPolicy {
	return r.policies[p]
}

// ArgsFor returns the configured keyword-argument overlay for a script, or
// nil when none is declared.
func (r *Resolved) ArgsFor(script string) map[string]cty.Value {
	return r.scriptArgs[script]
}

// Validate performs the semantic checks that cannot be expressed during
// decoding. It must pass before any pipeline phase runs.
func (r *Resolved) Validate() error {
	if !r.BasicInfo.CompareObs && r.Baseline == nil {
		return newErrorf("compare_obs is false but no baseline section is configured; one comparison target is required")
	}
	if r.BasicInfo.CompareObs && r.Observations.ObsPath == "" {
		return newErrorf("compare_obs is true but observations.obs_path is not set")
	}
	for name, tool := range r.Tools {
		if tool.Enabled && tool.Executable == "" {
			return newErrorf("external tool %q is enabled but has no executable", name)
		}
	}
	return nil
}

// ExportYAML renders the resolved tree back to YAML, the format handed to
// exec-backed scripts.
func (r *Resolved) ExportYAML() ([]byte, error) {
	return yaml.Marshal(toGo(r.root))
}

// --- decoding helpers ---

func attr(v cty.Value, name string) (cty.Value, bool) {
	if !v.Type().IsObjectType() || !v.Type().HasAttribute(name) {
		return cty.NilVal, false
	}
	av := v.GetAttr(name)
	if av.IsNull() {
		return cty.NilVal, false
	}
	return av, true
}

func getString(section string, v cty.Value, name, def string) (string, error) {
	av, ok := attr(v, name)
	if !ok {
		return def, nil
	}
	s, err := convert.Convert(av, cty.String)
	if err != nil {
		return "", newErrorf("%s.%s: expected a string, got %s", section, name, av.Type().FriendlyName())
	}
	return s.AsString(), nil
}

func getBool(section string, v cty.Value, name string, def bool) (bool, error) {
	av, ok := attr(v, name)
	if !ok {
		return def, nil
	}
	b, err := convert.Convert(av, cty.Bool)
	if err != nil {
		return false, newErrorf("%s.%s: expected a boolean, got %s", section, name, av.Type().FriendlyName())
	}
	return b.True(), nil
}

func getInt(section string, v cty.Value, name string, def int) (int, error) {
	av, ok := attr(v, name)
	if !ok {
		return def, nil
	}
	n, err := convert.Convert(av, cty.Number)
	if err != nil {
		return 0, newErrorf("%s.%s: expected a number, got %s", section, name, av.Type().FriendlyName())
	}
	i, _ := n.AsBigFloat().Int64()
	return int(i), nil
}

func stringList(section string, v cty.Value) ([]string, error) {
	if !v.Type().IsTupleType() && !v.Type().IsListType() {
		return nil, newErrorf("%s: expected a list, got %s", section, v.Type().FriendlyName())
	}
	out := make([]string, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		s, err := convert.Convert(ev, cty.String)
		if err != nil {
			return nil, newErrorf("%s: list elements must be scalars, got %s", section, ev.Type().FriendlyName())
		}
		out = append(out, s.AsString())
	}
	return out, nil
}

func (r *Resolved) decodeBasicInfo(v cty.Value) error {
	var err error
	b := &r.BasicInfo
	if b.CaseName, err = getString("basic_info", v, "case_name", ""); err != nil {
		return err
	}
	if b.OutputRoot, err = getString("basic_info", v, "output_root", ""); err != nil {
		return err
	}
	if b.ScriptsRoot, err = getString("basic_info", v, "scripts_root", "scripts"); err != nil {
		return err
	}
	if b.CompareObs, err = getBool("basic_info", v, "compare_obs", false); err != nil {
		return err
	}
	if b.GenerateReport, err = getBool("basic_info", v, "generate_report", false); err != nil {
		return err
	}
	if b.OverwriteTS, err = getBool("basic_info", v, "overwrite_ts", false); err != nil {
		return err
	}
	if b.OverwriteClimo, err = getBool("basic_info", v, "overwrite_climo", false); err != nil {
		return err
	}
	if b.OutputRoot == "" {
		return newErrorf("basic_info.output_root is required")
	}
	return nil
}

func decodeCase(section string, v cty.Value) (Case, error) {
	var c Case
	var err error
	if c.CaseName, err = getString(section, v, "case_name", ""); err != nil {
		return c, err
	}
	if c.CaseName == "" {
		return c, newErrorf("%s.case_name is required", section)
	}
	if c.HistoryPath, err = getString(section, v, "history_path", ""); err != nil {
		return c, err
	}
	if c.TSPath, err = getString(section, v, "ts_path", ""); err != nil {
		return c, err
	}
	if c.ClimoPath, err = getString(section, v, "climo_path", ""); err != nil {
		return c, err
	}
	if c.StartYear, err = getInt(section, v, "start_year", 0); err != nil {
		return c, err
	}
	if c.EndYear, err = getInt(section, v, "end_year", 0); err != nil {
		return c, err
	}
	if c.EndYear < c.StartYear {
		return c, newErrorf("%s: end_year %d precedes start_year %d", section, c.EndYear, c.StartYear)
	}
	return c, nil
}

func (r *Resolved) decodeObservations(v cty.Value) error {
	var err error
	if r.Observations.ObsPath, err = getString("observations", v, "obs_path", ""); err != nil {
		return err
	}
	if list, ok := attr(v, "variables"); ok {
		if r.Observations.Variables, err = stringList("observations.variables", list); err != nil {
			return err
		}
	}
	return nil
}

// toolKnownKeys are consumed by the supervisor itself; everything else in a
// tool section is a free-form parameter forwarded to the tool config.
var toolKnownKeys = map[string]bool{
	"enabled":      true,
	"executable":   true,
	"work_dir":     true,
	"join_timeout": true,
}

func (r *Resolved) decodeTools(v cty.Value) error {
	if !v.Type().IsObjectType() {
		return newErrorf("external_tools: expected a mapping, got %s", v.Type().FriendlyName())
	}
	for name, tv := range v.AsValueMap() {
		if !tv.Type().IsObjectType() {
			return newErrorf("external_tools.%s: expected a mapping, got %s", name, tv.Type().FriendlyName())
		}
		section := "external_tools." + name
		tool := Tool{Name: name, Params: make(map[string]cty.Value)}
		var err error
		if tool.Enabled, err = getBool(section, tv, "enabled", false); err != nil {
			return err
		}
		if tool.Executable, err = getString(section, tv, "executable", ""); err != nil {
			return err
		}
		if tool.WorkDir, err = getString(section, tv, "work_dir", ""); err != nil {
			return err
		}
		secs, err := getInt(section, tv, "join_timeout", 0)
		if err != nil {
			return err
		}
		tool.JoinTimeout = time.Duration(secs) * time.Second
		for k, pv := range tv.AsValueMap() {
			if !toolKnownKeys[k] {
				tool.Params[k] = pv
			}
		}
		r.Tools[name] = tool
	}
	return nil
}

func (r *Resolved) decodeScriptArgs(v cty.Value) error {
	if !v.Type().IsObjectType() {
		return newErrorf("script_args: expected a mapping, got %s", v.Type().FriendlyName())
	}
	for script, sv := range v.AsValueMap() {
		if !sv.Type().IsObjectType() {
			return newErrorf("script_args.%s: expected a mapping, got %s", script, sv.Type().FriendlyName())
		}
		args := sv
		// Accept both the flat form and an explicit kwargs wrapper.
		if kw, ok := attr(sv, "kwargs"); ok {
			if !kw.Type().IsObjectType() {
				return newErrorf("script_args.%s.kwargs: expected a mapping, got %s", script, kw.Type().FriendlyName())
			}
			args = kw
		}
		r.scriptArgs[script] = args.AsValueMap()
	}
	return nil
}

func (r *Resolved) decodePhasePolicy(v cty.Value) error {
	if !v.Type().IsObjectType() {
		return newErrorf("phase_policy: expected a mapping, got %s", v.Type().FriendlyName())
	}
	valid := make(map[string]Phase, 4)
	for _, p := range Phases() {
		valid[string(p)] = p
	}
	for name, pv := range v.AsValueMap() {
		p, ok := valid[name]
		if !ok {
			return newErrorf("phase_policy: unknown phase %q", name)
		}
		mode, err := convert.Convert(pv, cty.String)
		if err != nil {
			return newErrorf("phase_policy.%s: expected a string", name)
		}
		switch mode.AsString() {
		case "fail":
			r.policies[p] = FailFast
		case "continue":
			r.policies[p] = CollectErrors
		default:
			return newErrorf("phase_policy.%s: must be %q or %q, got %q", name, "fail", "continue", mode.AsString())
		}
	}
	return nil
}
