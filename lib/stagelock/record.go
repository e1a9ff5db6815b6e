// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stagelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Record is the advisory content of a lock file.
type Record struct {
	// Label identifies what the holder is staging, usually the archive
	// path.
	Label string `json:"label"`

	// PID and Hostname identify the holding process.
	PID      int    `json:"pid"`
	Hostname string `json:"hostname"`

	// AcquiredAt is when the holder created the lock file.
	AcquiredAt time.Time `json:"acquired_at"`
}

func newRecord(label string, now time.Time) Record {
	hostname, _ := os.Hostname()
	return Record{
		Label:      label,
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: now.UTC(),
	}
}

func (r Record) encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling lock record: %w", err)
	}
	return append(data, '\n'), nil
}

// String renders the record for diagnostics. A record holding only a
// Label (unparseable contents returned by Inspect) renders as the
// Label.
func (r Record) String() string {
	if r.PID == 0 && r.Hostname == "" && r.AcquiredAt.IsZero() {
		return r.Label
	}
	return fmt.Sprintf("%s (pid %d on %s since %s)",
		r.Label, r.PID, r.Hostname, r.AcquiredAt.Format(time.RFC3339))
}

// describe renders lock file contents for a wait diagnostic. Contents
// that are not a Record (a lock written by an older tool, or a file
// caught mid-write) are shown verbatim.
func describe(contents []byte) string {
	var record Record
	if err := json.Unmarshal(contents, &record); err != nil || record.Label == "" {
		return string(contents)
	}
	return record.String()
}

// Inspect reads the lock file at path. It returns the parsed record and
// true when the lock is held, or a zero Record and false when the file
// does not exist. Contents that do not parse as a Record are returned
// in Label so callers can still show something.
func Inspect(path string) (Record, bool, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("reading lock file: %w", err)
	}

	var record Record
	if err := json.Unmarshal(contents, &record); err != nil {
		return Record{Label: string(contents)}, true, nil
	}
	return record, true, nil
}
