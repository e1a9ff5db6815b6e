// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/tidwall/jsonc"
)

// Description lists the evaluation sets and sequences available to a
// selection.
type Description struct {
	// Evalsets maps a set name to its datasets, in job order.
	Evalsets map[string][]string `json:"evalsets"`

	// Sequences are the dataset names that may be selected
	// individually. In the file this is either an array of names or
	// an object keyed by name.
	Sequences Sequences `json:"sequences"`
}

// Sequences is a set of selectable dataset names.
type Sequences []string

// UnmarshalJSON accepts an array of names or an object whose keys are
// the names.
func (s *Sequences) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return err
		}
		names := make([]string, 0, len(keyed))
		for name := range keyed {
			names = append(names, name)
		}
		slices.Sort(names)
		*s = names
		return nil
	}
	var names []string
	if err := json.Unmarshal(trimmed, &names); err != nil {
		return fmt.Errorf("sequences must be an array of names or an object: %w", err)
	}
	*s = names
	return nil
}

// Contains reports whether name is a selectable sequence.
func (s Sequences) Contains(name string) bool {
	return slices.Contains(s, name)
}

// ParseDescription strips JSONC comments and trailing commas from data
// and decodes the result.
func ParseDescription(data []byte) (*Description, error) {
	var description Description
	if err := json.Unmarshal(jsonc.ToJSON(data), &description); err != nil {
		return nil, fmt.Errorf("parsing description: %w", err)
	}
	if description.Evalsets == nil {
		return nil, fmt.Errorf("parsing description: missing \"evalsets\"")
	}
	return &description, nil
}

// ReadDescription reads and parses the description file at path.
func ReadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	description, err := ParseDescription(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return description, nil
}
