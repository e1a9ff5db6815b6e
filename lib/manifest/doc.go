// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest generates the CI manifest that fans dataset
// evaluations out into parallel jobs.
//
// The inputs are a description file listing named evaluation sets and
// the individual sequences that may be requested on their own, a
// comma-separated selection, and a text template. The flow:
//
//  1. [ReadDescription]: JSONC (JSON with comments and trailing
//     commas) → [Description]
//  2. [Select]: selection string → ordered [Evalset] list, with
//     individually requested sequences gathered into a "custom" set
//  3. [RenderJobs]: one CI job per evalset, checked to parse as YAML
//  4. [Format]: fill {evalset_list}, {evalsets_jobs} and
//     {deterministic} into the template
//
// [Generate] runs all four and writes the output atomically.
package manifest
