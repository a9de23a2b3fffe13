package config

import (
	"encoding/json"

	"github.com/zclconf/go-cty/cty"
)

// ArgsJSON renders a keyword-argument overlay as JSON for handoff to an
// exec-backed script via the environment.
func ArgsJSON(args map[string]cty.Value) ([]byte, error) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = toGo(v)
	}
	return json.Marshal(out)
}
