// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/datastage/lib/clock"
	"github.com/bureau-foundation/datastage/lib/diskspace"
	"github.com/bureau-foundation/datastage/lib/extract"
	"github.com/bureau-foundation/datastage/lib/mount"
	"github.com/bureau-foundation/datastage/lib/stagelock"
)

// DefaultExtensions are the archive extensions tried after a dataset
// stem when none are configured.
var DefaultExtensions = []string{".zip"}

// ErrUnresolvableLocation means there is no archive to stage and the
// uncompressed dataset is not on the working directory's storage.
var ErrUnresolvableLocation = errors.New("no archive to stage and dataset is not on the working storage")

// ExtractionError reports a failed extraction. The staging lock has
// already been released when a caller sees it.
type ExtractionError struct {
	Archive     string
	Destination string
	Err         error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s into %s: %v", e.Archive, e.Destination, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Options configures a Coordinator. Mounts, Space, Extractor and Lock
// are required.
type Options struct {
	Mounts    mount.Resolver
	Space     diskspace.Probe
	Extractor extract.Extractor
	Lock      *stagelock.Lock

	// Extensions are appended to the dataset stem, in order, to find
	// an archive. Default DefaultExtensions.
	Extensions []string

	// PaddingKB is added to the archive size to get the required free
	// space. Nil selects DefaultPaddingKB; zero is a valid padding.
	PaddingKB *uint64

	// SpacePollInterval is the delay between free-space checks.
	// Default DefaultSpacePollInterval.
	SpacePollInterval time.Duration

	// SpaceDeadline bounds the free-space wait. Zero waits forever.
	SpaceDeadline time.Duration

	// ProgressStepKB is the growth that triggers another progress
	// diagnostic. Default DefaultProgressStepKB.
	ProgressStepKB uint64

	Clock  clock.Clock
	Logger *slog.Logger
}

// Coordinator stages datasets. Construct with New.
type Coordinator struct {
	mounts    mount.Resolver
	space     diskspace.Probe
	extractor extract.Extractor
	lock      *stagelock.Lock

	extensions        []string
	paddingKB         uint64
	spacePollInterval time.Duration
	spaceDeadline     time.Duration
	progressStepKB    uint64

	clock  clock.Clock
	logger *slog.Logger

	// stat looks up archive candidates. Replaced in tests to present
	// archives far larger than a test filesystem can hold.
	stat func(string) (fs.FileInfo, error)
}

// New validates options and returns a Coordinator.
func New(options Options) (*Coordinator, error) {
	switch {
	case options.Mounts == nil:
		return nil, errors.New("staging: mount resolver is required")
	case options.Space == nil:
		return nil, errors.New("staging: space probe is required")
	case options.Extractor == nil:
		return nil, errors.New("staging: extractor is required")
	case options.Lock == nil:
		return nil, errors.New("staging: lock is required")
	}

	coordinator := &Coordinator{
		mounts:            options.Mounts,
		space:             options.Space,
		extractor:         options.Extractor,
		lock:              options.Lock,
		extensions:        options.Extensions,
		paddingKB:         DefaultPaddingKB,
		spacePollInterval: options.SpacePollInterval,
		spaceDeadline:     options.SpaceDeadline,
		progressStepKB:    options.ProgressStepKB,
		clock:             options.Clock,
		logger:            options.Logger,
		stat:              os.Stat,
	}
	if len(coordinator.extensions) == 0 {
		coordinator.extensions = DefaultExtensions
	}
	if options.PaddingKB != nil {
		coordinator.paddingKB = *options.PaddingKB
	}
	if coordinator.spacePollInterval <= 0 {
		coordinator.spacePollInterval = DefaultSpacePollInterval
	}
	if coordinator.progressStepKB == 0 {
		coordinator.progressStepKB = DefaultProgressStepKB
	}
	if coordinator.clock == nil {
		coordinator.clock = clock.Real()
	}
	if coordinator.logger == nil {
		coordinator.logger = slog.Default()
	}
	return coordinator, nil
}

// Action is what a Decision calls for.
type Action int

const (
	// InPlace means the uncompressed dataset is already on the working
	// storage and is used as is.
	InPlace Action = iota
	// Stage means an archive must be extracted into the working
	// directory.
	Stage
)

func (a Action) String() string {
	switch a {
	case InPlace:
		return "in-place"
	case Stage:
		return "stage"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Decision is the outcome of Resolve.
type Decision struct {
	Action Action

	// DatasetPath is the stem as given.
	DatasetPath string

	// ArchivePath and ArchiveBytes describe the archive to extract.
	// Set only for Stage.
	ArchivePath  string
	ArchiveBytes int64

	// Mount identities consulted while deciding. WorkingMount is empty
	// for Stage decisions, which do not need it.
	DatasetMount mount.Identity
	WorkingMount mount.Identity
}

// Result is the outcome of a successful Run.
type Result struct {
	// Path is the dataset directory the job should use.
	Path string

	// Staged reports whether an archive was extracted.
	Staged bool

	// Archive is the archive that was extracted, if any.
	Archive string
}

// Resolve decides whether datasetPath must be staged into workingDir.
func (c *Coordinator) Resolve(ctx context.Context, datasetPath, workingDir string) (Decision, error) {
	archivePath, info, err := c.findArchive(datasetPath)
	if err != nil {
		return Decision{}, err
	}

	if info != nil {
		archiveMount, err := c.mounts.Identity(ctx, archivePath)
		if err != nil {
			return Decision{}, err
		}
		c.logger.Debug("found archive", "archive", archivePath, "archive_mount", string(archiveMount))
		return Decision{
			Action:       Stage,
			DatasetPath:  datasetPath,
			ArchivePath:  archivePath,
			ArchiveBytes: info.Size(),
			DatasetMount: archiveMount,
		}, nil
	}

	workingMount, err := c.mounts.Identity(ctx, workingDir)
	if err != nil {
		return Decision{}, err
	}
	datasetMount, err := c.mounts.Identity(ctx, datasetPath)
	if err != nil {
		return Decision{}, err
	}
	c.logger.Debug("no archive found, comparing mounts",
		"dataset_mount", string(datasetMount),
		"working_mount", string(workingMount),
	)

	if datasetMount != workingMount {
		return Decision{}, fmt.Errorf("%w: %s is on %s, %s is on %s",
			ErrUnresolvableLocation, datasetPath, datasetMount, workingDir, workingMount)
	}
	return Decision{
		Action:       InPlace,
		DatasetPath:  datasetPath,
		DatasetMount: datasetMount,
		WorkingMount: workingMount,
	}, nil
}

// findArchive returns the first existing archive for the stem, or a nil
// FileInfo when there is none.
func (c *Coordinator) findArchive(datasetPath string) (string, fs.FileInfo, error) {
	stem := filepath.Clean(datasetPath)
	for _, extension := range c.extensions {
		candidate := stem + extension
		info, err := c.stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("checking for archive %s: %w", candidate, err)
		}
		if !info.Mode().IsRegular() {
			return "", nil, fmt.Errorf("archive %s is not a regular file", candidate)
		}
		return candidate, info, nil
	}
	return "", nil, nil
}

// Run resolves datasetPath and stages it into workingDir if needed.
func (c *Coordinator) Run(ctx context.Context, datasetPath, workingDir string) (Result, error) {
	decision, err := c.Resolve(ctx, datasetPath, workingDir)
	if err != nil {
		return Result{}, err
	}

	if decision.Action == InPlace {
		c.logger.Info("dataset is already on the working storage",
			"dataset", datasetPath,
			"mount", string(decision.DatasetMount),
		)
		return Result{Path: datasetPath}, nil
	}

	path, err := c.StageArchive(ctx, decision, workingDir)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: path, Staged: true, Archive: decision.ArchivePath}, nil
}

// StageArchive extracts the archive named by decision into workingDir
// under the staging lock and returns the extracted dataset's path.
func (c *Coordinator) StageArchive(ctx context.Context, decision Decision, workingDir string) (string, error) {
	if decision.Action != Stage {
		return "", fmt.Errorf("staging: decision for %s does not call for staging", decision.DatasetPath)
	}
	staged, err := StagedPath(decision.DatasetPath, workingDir)
	if err != nil {
		return "", err
	}
	destination := filepath.Dir(staged)
	requiredKB := RequiredKB(decision.ArchiveBytes, c.paddingKB)

	c.logger.Info("staging archive",
		"archive", decision.ArchivePath,
		"archive_size", humanize.IBytes(uint64(max(decision.ArchiveBytes, 0))),
		"working_dir", destination,
		"lock_file", c.lock.Path(),
	)

	err = c.lock.With(ctx, decision.ArchivePath, func(ctx context.Context) error {
		if err := c.WaitForSpace(ctx, destination, requiredKB); err != nil {
			return err
		}
		c.logger.Info("extracting archive", "archive", decision.ArchivePath, "destination", destination)
		if err := c.extractor.Extract(ctx, decision.ArchivePath, destination); err != nil {
			return &ExtractionError{Archive: decision.ArchivePath, Destination: destination, Err: err}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("dataset staged", "path", staged)
	return staged, nil
}

// StagedPath returns where staging datasetPath into workingDir puts the
// dataset: the absolute working directory joined with the stem's base
// name.
func StagedPath(datasetPath, workingDir string) (string, error) {
	destination, err := filepath.Abs(workingDir)
	if err != nil {
		return "", fmt.Errorf("resolving working directory %s: %w", workingDir, err)
	}
	return filepath.Join(destination, filepath.Base(filepath.Clean(datasetPath))), nil
}
