// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable [Load] reads.
const EnvVar = "DATASTAGE_CONFIG"

// Known collaborator names, accepted by Validate.
var (
	Probes     = []string{"statfs", "df"}
	Resolvers  = []string{"findmnt", "device"}
	Extractors = []string{"7z", "native"}
)

// Config is the complete datastage configuration.
type Config struct {
	// Lock configures the staging lock shared by concurrent jobs.
	Lock LockConfig `yaml:"lock"`

	// Space configures the free-space wait before extraction.
	Space SpaceConfig `yaml:"space"`

	// Mount selects how mount identities are computed.
	Mount MountConfig `yaml:"mount"`

	// Archive configures how archives are found next to a dataset stem.
	Archive ArchiveConfig `yaml:"archive"`

	// Extract selects the extractor.
	Extract ExtractConfig `yaml:"extract"`
}

// LockConfig configures the staging lock.
type LockConfig struct {
	// Path is the lock file. Every job that must not extract
	// concurrently uses the same path.
	// Default: $TMPDIR/uncompression.lock
	Path string `yaml:"path"`

	// PollInterval is the delay between checks while another process
	// holds the lock.
	// Default: 1s
	PollInterval Duration `yaml:"poll_interval"`

	// Deadline bounds the wait for the lock. Zero waits forever.
	// Default: 0s
	Deadline Duration `yaml:"deadline"`
}

// SpaceConfig configures the free-space wait.
type SpaceConfig struct {
	// Padding is required beyond the archive size.
	// Default: 50GiB
	Padding Size `yaml:"padding"`

	// PollInterval is the delay between free-space checks.
	// Default: 1s
	PollInterval Duration `yaml:"poll_interval"`

	// ProgressStep is how much available space must grow before
	// another progress line is logged.
	// Default: 1GiB
	ProgressStep Size `yaml:"progress_step"`

	// Deadline bounds the wait for space. Zero waits forever.
	// Default: 0s
	Deadline Duration `yaml:"deadline"`

	// Probe is "statfs" (direct syscall) or "df" (external tool).
	// Default: statfs
	Probe string `yaml:"probe"`
}

// MountConfig selects the mount identity resolver.
type MountConfig struct {
	// Resolver is "findmnt" (mount source from the mount table) or
	// "device" (st_dev of the path).
	// Default: findmnt
	Resolver string `yaml:"resolver"`
}

// ArchiveConfig configures archive lookup.
type ArchiveConfig struct {
	// Extensions are appended to the dataset stem in order; the first
	// existing file is staged.
	// Default: [".zip"]
	Extensions []string `yaml:"extensions"`
}

// ExtractConfig selects the extractor.
type ExtractConfig struct {
	// Tool is "7z" (external 7-Zip) or "native" (in-process zip and
	// tar decoders).
	// Default: 7z
	Tool string `yaml:"tool"`

	// Binary is the 7-Zip executable, looked up in PATH when not
	// absolute. Ignored for the native extractor.
	// Default: 7z
	Binary string `yaml:"binary"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Lock: LockConfig{
			Path:         filepath.Join(os.TempDir(), "uncompression.lock"),
			PollInterval: Duration(time.Second),
		},
		Space: SpaceConfig{
			Padding:      50 * units.GiB,
			PollInterval: Duration(time.Second),
			ProgressStep: units.GiB,
			Probe:        "statfs",
		},
		Mount: MountConfig{
			Resolver: "findmnt",
		},
		Archive: ArchiveConfig{
			Extensions: []string{".zip"},
		},
		Extract: ExtractConfig{
			Tool:   "7z",
			Binary: "7z",
		},
	}
}

// Load loads the file named by DATASTAGE_CONFIG, or returns Default
// when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile overlays the file at path onto Default and validates the
// result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Lock.Path = expandVars(cfg.Lock.Path, map[string]string{
		"TMPDIR": os.TempDir(),
		"HOME":   os.Getenv("HOME"),
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, consulting vars before
// the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Lock.Path == "" {
		errs = append(errs, errors.New("lock.path is required"))
	}
	if c.Lock.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("lock.poll_interval must be positive, got %s", c.Lock.PollInterval))
	}
	if c.Lock.Deadline < 0 {
		errs = append(errs, fmt.Errorf("lock.deadline must not be negative, got %s", c.Lock.Deadline))
	}

	if c.Space.Padding < 0 {
		errs = append(errs, fmt.Errorf("space.padding must not be negative, got %s", c.Space.Padding))
	}
	if c.Space.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("space.poll_interval must be positive, got %s", c.Space.PollInterval))
	}
	if c.Space.ProgressStep < units.KiB {
		errs = append(errs, fmt.Errorf("space.progress_step must be at least 1KiB, got %s", c.Space.ProgressStep))
	}
	if c.Space.Deadline < 0 {
		errs = append(errs, fmt.Errorf("space.deadline must not be negative, got %s", c.Space.Deadline))
	}
	if !slices.Contains(Probes, c.Space.Probe) {
		errs = append(errs, fmt.Errorf("space.probe must be one of %s, got %q", strings.Join(Probes, ", "), c.Space.Probe))
	}

	if !slices.Contains(Resolvers, c.Mount.Resolver) {
		errs = append(errs, fmt.Errorf("mount.resolver must be one of %s, got %q", strings.Join(Resolvers, ", "), c.Mount.Resolver))
	}

	if len(c.Archive.Extensions) == 0 {
		errs = append(errs, errors.New("archive.extensions must not be empty"))
	}
	for _, extension := range c.Archive.Extensions {
		if !strings.HasPrefix(extension, ".") || strings.ContainsRune(extension, filepath.Separator) {
			errs = append(errs, fmt.Errorf("archive.extensions: %q must start with a dot and contain no separator", extension))
		}
	}

	if !slices.Contains(Extractors, c.Extract.Tool) {
		errs = append(errs, fmt.Errorf("extract.tool must be one of %s, got %q", strings.Join(Extractors, ", "), c.Extract.Tool))
	}
	if c.Extract.Tool == "7z" && c.Extract.Binary == "" {
		errs = append(errs, errors.New("extract.binary is required for the 7z extractor"))
	}

	return errors.Join(errs...)
}
