package exttool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/climadiag/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// writeToolConfig translates the tool's parameter subset of the resolved
// configuration into the tool's own HCL configuration format and writes it
// to `<workDir>/<tool>.hcl`, returning the path.
func writeToolConfig(workDir string, tool config.Tool, cfg *config.Resolved) (string, error) {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("case_name", cty.StringVal(cfg.Simulation.CaseName))
	body.SetAttributeValue("history_path", cty.StringVal(cfg.Simulation.HistoryPath))
	body.SetAttributeValue("output_root", cty.StringVal(cfg.BasicInfo.OutputRoot))
	body.SetAttributeValue("start_year", cty.NumberIntVal(int64(cfg.Simulation.StartYear)))
	body.SetAttributeValue("end_year", cty.NumberIntVal(int64(cfg.Simulation.EndYear)))

	if cfg.Baseline != nil {
		body.AppendNewline()
		block := body.AppendNewBlock("baseline", nil)
		bb := block.Body()
		bb.SetAttributeValue("case_name", cty.StringVal(cfg.Baseline.CaseName))
		bb.SetAttributeValue("history_path", cty.StringVal(cfg.Baseline.HistoryPath))
		bb.SetAttributeValue("start_year", cty.NumberIntVal(int64(cfg.Baseline.StartYear)))
		bb.SetAttributeValue("end_year", cty.NumberIntVal(int64(cfg.Baseline.EndYear)))
	}

	if len(tool.Params) > 0 {
		body.AppendNewline()
		// Deterministic attribute order keeps the generated file diffable.
		keys := make([]string, 0, len(tool.Params))
		for k := range tool.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			body.SetAttributeValue(k, tool.Params[k])
		}
	}

	path := filepath.Join(workDir, tool.Name+".hcl")
	if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
