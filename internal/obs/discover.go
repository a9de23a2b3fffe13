// Package obs discovers observational reference datasets on disk for the
// variables requested by the configuration.
//
// Discovery feeds the orchestrator's observation gate: in
// model-vs-observation mode an empty result short-circuits the comparison
// phases as a valid empty-intersection outcome, not a failure.
package obs

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/climadiag/internal/ctxlog"
	"github.com/vk/climadiag/internal/fsutil"
)

// netCDF is the dataset file extension the obs collections use.
const netCDF = ".nc"

// Dataset is one discovered observation file matched to a requested variable.
type Dataset struct {
	Variable string
	Path     string
}

// Discover walks the obs directory and matches files to the requested
// variables by the underscore-delimited fields of their base names (the
// collection convention, e.g. "ERAI_TS_climo.nc" matches variable "TS").
// A missing directory or zero matches both yield an empty slice.
func Discover(ctx context.Context, obsPath string, variables []string) ([]Dataset, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(obsPath, netCDF)
	if err != nil {
		return nil, err
	}
	logger.Debug("Scanned observation directory.", "path", obsPath, "files_found", len(files))

	var datasets []Dataset
	for _, variable := range variables {
		for _, file := range files {
			if fileMatchesVariable(file, variable) {
				datasets = append(datasets, Dataset{Variable: variable, Path: file})
			}
		}
	}

	sort.Slice(datasets, func(i, j int) bool {
		if datasets[i].Variable != datasets[j].Variable {
			return datasets[i].Variable < datasets[j].Variable
		}
		return datasets[i].Path < datasets[j].Path
	})

	logger.Debug("Observation discovery finished.", "datasets_matched", len(datasets))
	return datasets, nil
}

// fileMatchesVariable checks whether the variable appears as a whole field
// of the file's base name, so "TS" does not match "TSMN_climo.nc".
func fileMatchesVariable(path, variable string) bool {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, netCDF)
	for _, field := range strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '.' || r == '-'
	}) {
		if field == variable {
			return true
		}
	}
	return false
}
