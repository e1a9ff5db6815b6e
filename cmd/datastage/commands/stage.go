// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/datastage/cmd/datastage/cli"
	"github.com/bureau-foundation/datastage/lib/config"
	"github.com/bureau-foundation/datastage/lib/diskspace"
	"github.com/bureau-foundation/datastage/lib/extract"
	"github.com/bureau-foundation/datastage/lib/mount"
	"github.com/bureau-foundation/datastage/lib/stagelock"
	"github.com/bureau-foundation/datastage/lib/staging"
)

const stageUsage = "datastage stage <dataset_path> <working_dir> [flags]"

type stageParams struct {
	cli.JSONOutput
	LockFile string `flag:"lock-file" desc:"staging lock shared by concurrent jobs (default $TMPDIR/uncompression.lock)"`
	Config   string `flag:"config" desc:"YAML configuration file (default $DATASTAGE_CONFIG)"`
	Padding  string `flag:"padding" desc:"free space required beyond the archive size, e.g. 50GiB"`
	DryRun   bool   `flag:"dry-run" desc:"print the staging decision without locking or extracting"`
	Verbose  bool   `flag:"verbose,v" desc:"log debug diagnostics"`
}

// stageResult is the --json output of a stage run.
type stageResult struct {
	Path   string `json:"path"`
	Staged bool   `json:"staged"`
}

// stagePlan is the --json output of a dry run.
type stagePlan struct {
	Action       string `json:"action"`
	Path         string `json:"path"`
	Archive      string `json:"archive,omitempty"`
	ArchiveBytes int64  `json:"archive_bytes,omitempty"`
	RequiredKB   uint64 `json:"required_kb,omitempty"`
	LockFile     string `json:"lock_file"`
	LockHolder   string `json:"lock_holder,omitempty"`
}

func stageCommand(streams Streams) *cli.Command {
	var params stageParams
	return &cli.Command{
		Name:    "stage",
		Summary: "Make a dataset available on the working storage",
		Description: `Resolve a dataset stem to a directory the job can read from fast storage.

If <dataset_path>.zip exists, it is extracted into <working_dir> under
the staging lock once enough space is free, and the extracted directory
is printed. Otherwise, if <dataset_path> is already on the same storage
as <working_dir>, it is printed unchanged. Otherwise the command exits 1
without printing a path.`,
		Usage: stageUsage,
		Examples: []cli.Example{
			{
				Description: "Stage a EuRoC sequence from the NAS onto local scratch",
				Command:     "datastage stage /data/euroc/MH_01_easy /scratch/datasets",
			},
			{
				Description: "Use a project-specific lock and show what would happen",
				Command:     "datastage stage --lock_file /tmp/basalt.lock --dry-run /data/euroc/V1_01_easy .",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("stage", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs("stage", args, 2, stageUsage); err != nil {
				return err
			}
			return runStage(ctx, streams, &params, args[0], args[1])
		},
	}
}

func runStage(ctx context.Context, streams Streams, params *stageParams, datasetPath, workingDir string) error {
	cfg, err := loadStageConfig(params)
	if err != nil {
		return err
	}
	logger := newLogger(streams, "stage", params.Verbose)

	coordinator, err := newCoordinator(cfg, logger)
	if err != nil {
		return err
	}

	if params.DryRun {
		return planStage(ctx, streams, params, cfg, coordinator, datasetPath, workingDir, logger)
	}

	result, err := coordinator.Run(ctx, datasetPath, workingDir)
	if errors.Is(err, staging.ErrUnresolvableLocation) {
		logger.Error("cannot stage dataset", "dataset", datasetPath, "working_dir", workingDir, "error", err)
		return &cli.ExitError{Code: 1}
	}
	if err != nil {
		return err
	}

	if done, err := params.EmitJSON(streams.Stdout, stageResult{Path: result.Path, Staged: result.Staged}); done {
		return err
	}
	_, err = fmt.Fprintln(streams.Stdout, result.Path)
	return err
}

// loadStageConfig loads the configuration file, then applies flags.
func loadStageConfig(params *stageParams) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if params.Config != "" {
		cfg, err = config.LoadFile(params.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if params.LockFile != "" {
		cfg.Lock.Path = params.LockFile
	}
	if params.Padding != "" {
		padding, err := config.ParseSize(params.Padding)
		if err != nil {
			return nil, fmt.Errorf("--padding: %w", err)
		}
		cfg.Space.Padding = padding
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newCoordinator(cfg *config.Config, logger *slog.Logger) (*staging.Coordinator, error) {
	resolver, err := mount.New(cfg.Mount.Resolver)
	if err != nil {
		return nil, err
	}
	probe, err := diskspace.New(cfg.Space.Probe)
	if err != nil {
		return nil, err
	}
	extractor, err := extract.New(cfg.Extract.Tool, cfg.Extract.Binary)
	if err != nil {
		return nil, err
	}

	paddingKB := cfg.Space.Padding.KB()
	return staging.New(staging.Options{
		Mounts:    resolver,
		Space:     probe,
		Extractor: extractor,
		Lock: stagelock.New(cfg.Lock.Path, stagelock.Options{
			PollInterval: cfg.Lock.PollInterval.Std(),
			Deadline:     cfg.Lock.Deadline.Std(),
			Logger:       logger,
		}),
		Extensions:        cfg.Archive.Extensions,
		PaddingKB:         &paddingKB,
		SpacePollInterval: cfg.Space.PollInterval.Std(),
		SpaceDeadline:     cfg.Space.Deadline.Std(),
		ProgressStepKB:    cfg.Space.ProgressStep.KB(),
		Logger:            logger,
	})
}

// planStage prints what a stage run would do, including who holds the
// lock right now.
func planStage(ctx context.Context, streams Streams, params *stageParams, cfg *config.Config,
	coordinator *staging.Coordinator, datasetPath, workingDir string, logger *slog.Logger) error {

	decision, err := coordinator.Resolve(ctx, datasetPath, workingDir)
	if errors.Is(err, staging.ErrUnresolvableLocation) {
		logger.Error("cannot stage dataset", "dataset", datasetPath, "working_dir", workingDir, "error", err)
		return &cli.ExitError{Code: 1}
	}
	if err != nil {
		return err
	}

	plan := stagePlan{
		Action:   decision.Action.String(),
		Path:     decision.DatasetPath,
		LockFile: cfg.Lock.Path,
	}
	if decision.Action == staging.Stage {
		plan.Path, err = staging.StagedPath(datasetPath, workingDir)
		if err != nil {
			return err
		}
		plan.Archive = decision.ArchivePath
		plan.ArchiveBytes = decision.ArchiveBytes
		plan.RequiredKB = staging.RequiredKB(decision.ArchiveBytes, cfg.Space.Padding.KB())
	}
	holder, held, err := stagelock.Inspect(cfg.Lock.Path)
	if err != nil {
		return err
	}
	if held {
		plan.LockHolder = holder.String()
	}

	if done, err := params.EmitJSON(streams.Stdout, plan); done {
		return err
	}

	fmt.Fprintf(streams.Stdout, "action:  %s\n", plan.Action)
	fmt.Fprintf(streams.Stdout, "path:    %s\n", plan.Path)
	if plan.Archive != "" {
		fmt.Fprintf(streams.Stdout, "archive: %s (%s, needs %s free)\n", plan.Archive,
			humanize.IBytes(uint64(plan.ArchiveBytes)), humanize.IBytes(plan.RequiredKB*1024))
	}
	lockState := "free"
	if held {
		lockState = "held by " + plan.LockHolder
	}
	_, err = fmt.Fprintf(streams.Stdout, "lock:    %s (%s)\n", cfg.Lock.Path, lockState)
	return err
}
