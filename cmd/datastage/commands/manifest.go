// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/datastage/cmd/datastage/cli"
	"github.com/bureau-foundation/datastage/lib/manifest"
)

const manifestUsage = "datastage manifest <description> <evalsets> <template> <output> [flags]"

type manifestParams struct {
	Deterministic int      `flag:"deterministic" desc:"value of {deterministic} in the template" default:"1"`
	Stage         string   `flag:"stage" desc:"CI stage of every job" default:"evalsets"`
	Tags          []string `flag:"tag" desc:"runner tags of every job" default:"basalt-evaluation"`
	Needs         []string `flag:"needs" desc:"jobs every evaluation job depends on" default:"build"`
	Extends       string   `flag:"extends" desc:"template job every evaluation job extends" default:".run-dataset"`
	Verbose       bool     `flag:"verbose,v" desc:"log debug diagnostics"`
}

func manifestCommand(streams Streams) *cli.Command {
	var params manifestParams
	return &cli.Command{
		Name:    "manifest",
		Summary: "Generate the CI manifest for selected evaluation sets",
		Description: `Generate a CI manifest with one parallel job per selected evaluation set.

<description> is a JSON file (comments and trailing commas allowed) with
"evalsets" mapping set names to datasets and "sequences" listing datasets
that may be selected alone. <evalsets> is a comma-separated selection;
individually selected sequences are gathered into a "custom" set.
<template> may use {evalset_list}, {evalsets_jobs} and {deterministic};
write {{ and }} for literal braces.`,
		Usage: manifestUsage,
		Examples: []cli.Example{
			{
				Description: "Evaluate two sets plus one extra sequence",
				Command:     "datastage manifest .ci/evalsets.json euroc-v1,quickset1,V2_03_difficult .ci/eval.yml.in eval.yml",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("manifest", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs("manifest", args, 4, manifestUsage); err != nil {
				return err
			}
			return manifest.Generate(manifest.Request{
				DescriptionPath: args[0],
				Selection:       args[1],
				TemplatePath:    args[2],
				OutputPath:      args[3],
				Deterministic:   params.Deterministic,
				Jobs: manifest.JobOptions{
					Stage:   params.Stage,
					Tags:    params.Tags,
					Needs:   params.Needs,
					Extends: params.Extends,
				},
			}, newLogger(streams, "manifest", params.Verbose))
		},
	}
}
