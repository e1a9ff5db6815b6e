// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// JobOptions are the fields shared by every rendered job.
type JobOptions struct {
	Stage   string
	Tags    []string
	Needs   []string
	Extends string
}

// DefaultJobOptions returns the options of the evaluation pipeline.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		Stage:   "evalsets",
		Tags:    []string{"basalt-evaluation"},
		Needs:   []string{"build"},
		Extends: ".run-dataset",
	}
}

// RenderJob renders one evalset as a CI job with a parallel matrix
// over its datasets.
func RenderJob(evalset Evalset, options JobOptions) string {
	needs := make([]string, len(options.Needs))
	for i, need := range options.Needs {
		needs[i] = strconv.Quote(need)
	}

	var job strings.Builder
	fmt.Fprintf(&job, "%s:\n", evalset.Name)
	fmt.Fprintf(&job, "  stage: %s\n", options.Stage)
	fmt.Fprintf(&job, "  tags: [%s]\n", strings.Join(options.Tags, ", "))
	fmt.Fprintf(&job, "  needs: [%s]\n", strings.Join(needs, ", "))
	fmt.Fprintf(&job, "  extends: %s\n", options.Extends)
	fmt.Fprintf(&job, "  parallel:\n")
	fmt.Fprintf(&job, "      matrix:\n")
	fmt.Fprintf(&job, "        - DATASET: [%s]", strings.Join(evalset.Datasets, ", "))
	return job.String()
}

// RenderJobs renders every evalset, separated by blank lines, and
// checks that the result parses as a YAML mapping with one key per
// evalset in order.
func RenderJobs(evalsets []Evalset, options JobOptions) (string, error) {
	jobs := make([]string, len(evalsets))
	for i, evalset := range evalsets {
		jobs[i] = RenderJob(evalset, options)
	}
	rendered := strings.Join(jobs, "\n\n")

	if err := checkJobs(rendered, evalsets); err != nil {
		return "", err
	}
	return rendered, nil
}

func checkJobs(rendered string, evalsets []Evalset) error {
	if len(evalsets) == 0 {
		return nil
	}
	var document yaml.Node
	if err := yaml.Unmarshal([]byte(rendered), &document); err != nil {
		return fmt.Errorf("rendered jobs are not valid YAML: %w", err)
	}
	if len(document.Content) != 1 || document.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("rendered jobs are not a YAML mapping")
	}
	mapping := document.Content[0]
	if len(mapping.Content) != 2*len(evalsets) {
		return fmt.Errorf("rendered %d jobs but YAML has %d keys", len(evalsets), len(mapping.Content)/2)
	}
	for i, evalset := range evalsets {
		if key := mapping.Content[2*i].Value; key != evalset.Name {
			return fmt.Errorf("job %d: YAML key %q does not match evalset %q", i, key, evalset.Name)
		}
	}
	return nil
}
