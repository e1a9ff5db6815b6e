// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Request names the inputs and output of one generation.
type Request struct {
	DescriptionPath string

	// Selection is the raw comma-separated selection. It is also the
	// value of {evalset_list}.
	Selection string

	TemplatePath string
	OutputPath   string

	// Deterministic fills {deterministic}.
	Deterministic int

	Jobs JobOptions
}

// Generate renders the manifest described by request and writes it to
// request.OutputPath.
func Generate(request Request, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	description, err := ReadDescription(request.DescriptionPath)
	if err != nil {
		return err
	}
	template, err := os.ReadFile(request.TemplatePath)
	if err != nil {
		return fmt.Errorf("reading template: %w", err)
	}

	evalsets := Select(description, SplitSelection(request.Selection), logger)
	jobs, err := RenderJobs(evalsets, request.Jobs)
	if err != nil {
		return err
	}

	contents, err := Format(string(template), map[string]string{
		"evalset_list":  request.Selection,
		"evalsets_jobs": jobs,
		"deterministic": strconv.Itoa(request.Deterministic),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", request.TemplatePath, err)
	}

	if err := writeAtomic(request.OutputPath, []byte(contents)); err != nil {
		return err
	}
	logger.Info("wrote CI manifest", "output", request.OutputPath, "jobs", len(evalsets))
	return nil
}

// writeAtomic writes data to a temporary file beside path, syncs it and
// renames it into place. Readers never see a partial manifest.
func writeAtomic(path string, data []byte) error {
	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary manifest: %w", err)
	}
	temporaryPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary manifest: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary manifest: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary manifest: %w", err)
	}
	if err := os.Chmod(temporaryPath, 0o644); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("setting manifest mode: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming manifest into place: %w", err)
	}
	return nil
}
