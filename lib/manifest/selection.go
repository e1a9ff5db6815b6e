// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"log/slog"
	"slices"
	"strings"
)

// CustomEvalset names the synthetic set holding individually selected
// sequences.
const CustomEvalset = "custom"

// Evalset is one CI job's worth of datasets.
type Evalset struct {
	Name     string
	Datasets []string
}

// SplitSelection splits a comma-separated selection. Empty entries are
// kept so that Select can report them.
func SplitSelection(selection string) []string {
	return strings.Split(selection, ",")
}

// Select resolves a selection against description. Names of evalsets
// are kept in selection order. Names of sequences are gathered, in
// order, into a [CustomEvalset] appended last; it replaces any evalset
// of that name in the description. Other names are logged and dropped.
// A name selected twice produces one job.
func Select(description *Description, selection []string, logger *slog.Logger) []Evalset {
	var selected []Evalset
	var custom []string
	seen := make(map[string]bool)

	for _, name := range selection {
		if seen[name] {
			continue
		}
		seen[name] = true

		if datasets, ok := description.Evalsets[name]; ok {
			selected = append(selected, Evalset{Name: name, Datasets: slices.Clone(datasets)})
			continue
		}
		if description.Sequences.Contains(name) {
			custom = append(custom, name)
			continue
		}
		logger.Warn("ignoring invalid evalset or sequence", "name", name)
	}

	if len(custom) > 0 {
		selected = slices.DeleteFunc(selected, func(evalset Evalset) bool {
			return evalset.Name == CustomEvalset
		})
		selected = append(selected, Evalset{Name: CustomEvalset, Datasets: custom})
	}
	return selected
}
