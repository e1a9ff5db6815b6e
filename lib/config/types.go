// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written in YAML as a Go duration string.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Size is a byte count written in YAML as a human-readable size.
type Size int64

// ParseSize parses strings like "50GiB", "512m" or "1048576". Units
// are binary whatever their spelling.
func ParseSize(text string) (Size, error) {
	bytes, err := units.RAMInBytes(text)
	if err != nil {
		return 0, err
	}
	return Size(bytes), nil
}

// KB returns the size in kilobytes, rounded down.
func (s Size) KB() uint64 {
	if s < 0 {
		return 0
	}
	return uint64(s) / 1024
}

func (s Size) String() string { return units.BytesSize(float64(s)) }

// UnmarshalYAML implements yaml.Unmarshaler. Bare integers are bytes.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("line %d: size must be a scalar: %w", node.Line, err)
	}
	parsed, err := ParseSize(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Size) MarshalYAML() (any, error) { return s.String(), nil }
