// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package staging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// DefaultPaddingKB is the free space required beyond the archive
	// size: 50 GiB, to absorb the uncompressed output growing past the
	// compressed size and concurrent use of the disk.
	DefaultPaddingKB uint64 = 50 << 20

	// DefaultProgressStepKB is the growth in available space, 1 GiB,
	// that triggers another progress diagnostic.
	DefaultProgressStepKB uint64 = 1 << 20

	// DefaultSpacePollInterval is the delay between free-space checks.
	DefaultSpacePollInterval = time.Second
)

// ErrSpaceTimeout is returned by WaitForSpace when the configured
// deadline passes before enough space is available.
var ErrSpaceTimeout = errors.New("timed out waiting for free space")

// RequiredKB returns the space needed to stage an archive of
// archiveBytes: its size in kilobytes, rounded up, plus paddingKB.
func RequiredKB(archiveBytes int64, paddingKB uint64) uint64 {
	if archiveBytes < 0 {
		archiveBytes = 0
	}
	return (uint64(archiveBytes)+1023)/1024 + paddingKB
}

// progressThrottle decides when a space-wait progress line is worth
// printing: only after available space has grown by at least stepKB
// since the last printed value. Shrinking space prints nothing and
// does not move the reference point.
type progressThrottle struct {
	stepKB         uint64
	lastReportedKB uint64
}

func (p *progressThrottle) observe(availableKB uint64) bool {
	if availableKB < p.lastReportedKB+p.stepKB {
		return false
	}
	p.lastReportedKB = availableKB
	return true
}

// WaitForSpace blocks until the filesystem holding workingDir reports
// at least requiredKB available. It never returns nil while the last
// observed value is below requiredKB.
func (c *Coordinator) WaitForSpace(ctx context.Context, workingDir string, requiredKB uint64) error {
	throttle := progressThrottle{stepKB: c.progressStepKB}
	start := c.clock.Now()

	for {
		availableKB, err := c.space.AvailableKB(ctx, workingDir)
		if err != nil {
			return fmt.Errorf("checking free space for %s: %w", workingDir, err)
		}

		if availableKB >= requiredKB {
			c.logger.Info("sufficient space available",
				"working_dir", workingDir,
				"available", humanize.IBytes(availableKB*1024),
				"required", humanize.IBytes(requiredKB*1024),
			)
			return nil
		}

		if throttle.observe(availableKB) {
			c.logger.Info("waiting for free space",
				"working_dir", workingDir,
				"progress", fmt.Sprintf("%.2f%%", 100*float64(availableKB)/float64(requiredKB)),
				"available", humanize.IBytes(availableKB*1024),
				"required", humanize.IBytes(requiredKB*1024),
			)
		}

		if c.spaceDeadline > 0 && c.clock.Now().Sub(start) >= c.spaceDeadline {
			return fmt.Errorf("%w after %s: %s has %s, needs %s", ErrSpaceTimeout, c.spaceDeadline,
				workingDir, humanize.IBytes(availableKB*1024), humanize.IBytes(requiredKB*1024))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.spacePollInterval):
		}
	}
}
