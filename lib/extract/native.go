// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Native extracts archives without external tools. The format is
// chosen from the archive's file name.
type Native struct{}

// Format identifies an archive encoding.
type Format string

const (
	FormatZip    Format = "zip"
	FormatTar    Format = "tar"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
	FormatTarLz4 Format = "tar.lz4"
)

// DetectFormat maps an archive file name to its Format.
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(lower, ".tar.zst"):
		return FormatTarZst, nil
	case strings.HasSuffix(lower, ".tar.lz4"):
		return FormatTarLz4, nil
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, nil
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(name))
	}
}

// ErrUnsafePath is returned for archive entries that would be written
// outside the destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks archive into destination.
func (Native) Extract(ctx context.Context, archive, destination string) error {
	format, err := DetectFormat(archive)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return fmt.Errorf("creating destination %s: %w", destination, err)
	}

	if format == FormatZip {
		return extractZip(ctx, archive, destination)
	}

	file, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archive, err)
	}
	defer file.Close()

	var reader io.Reader
	switch format {
	case FormatTar:
		reader = file
	case FormatTarGz:
		gzipReader, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("reading gzip header of %s: %w", archive, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case FormatTarZst:
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("opening zstd stream of %s: %w", archive, err)
		}
		defer decoder.Close()
		reader = decoder
	case FormatTarLz4:
		reader = lz4.NewReader(file)
	}

	if err := extractTar(ctx, reader, destination); err != nil {
		return fmt.Errorf("extracting %s: %w", archive, err)
	}
	return nil
}

func extractZip(ctx context.Context, archive, destination string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening zip %s: %w", archive, err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := entryPath(destination, entry.Name)
		if err != nil {
			return err
		}

		mode := entry.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode&fs.ModeSymlink != 0:
			linkTarget, err := readZipEntry(entry)
			if err != nil {
				return err
			}
			if err := writeSymlink(destination, target, linkTarget); err != nil {
				return err
			}
		default:
			source, err := entry.Open()
			if err != nil {
				return fmt.Errorf("opening %s in %s: %w", entry.Name, archive, err)
			}
			err = writeFile(target, source, mode.Perm())
			source.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func readZipEntry(entry *zip.File) (string, error) {
	source, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer source.Close()
	data, err := io.ReadAll(source)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func extractTar(ctx context.Context, reader io.Reader, destination string) error {
	tarReader := tar.NewReader(reader)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}

		target, err := entryPath(destination, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tarReader, fs.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(destination, target, header.Linkname); err != nil {
				return err
			}
		default:
			// Hard links, devices and FIFOs have no place in a dataset.
			return fmt.Errorf("%s: unsupported tar entry type %q", header.Name, header.Typeflag)
		}
	}
}

// entryPath joins name under destination, rejecting absolute names,
// names that climb out with "..", and names whose parent directories
// pass through a symlink written by an earlier entry.
func entryPath(destination, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(destination, name)
	if !withinDirectory(destination, target) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	if err := rejectLinkedParents(destination, target); err != nil {
		return "", fmt.Errorf("%w: %s", err, name)
	}
	return target, nil
}

// rejectLinkedParents walks the directories between destination and
// target's parent and fails on the first one that is a symlink.
func rejectLinkedParents(destination, target string) error {
	relative, err := filepath.Rel(destination, filepath.Dir(target))
	if err != nil {
		return ErrUnsafePath
	}
	if relative == "." {
		return nil
	}
	current := destination
	for _, part := range strings.Split(relative, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			// Everything below is created fresh by MkdirAll.
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: parent %s is a symlink", ErrUnsafePath, current)
		}
	}
	return nil
}

func withinDirectory(directory, path string) bool {
	relative, err := filepath.Rel(directory, path)
	if err != nil {
		return false
	}
	return relative != ".." && !strings.HasPrefix(relative, ".."+string(filepath.Separator))
}

func writeFile(target string, source io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	// Remove first so a symlink left by a previous extraction is
	// replaced instead of followed.
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replacing %s: %w", target, err)
	}
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, source); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return file.Close()
}

func writeSymlink(destination, target, linkTarget string) error {
	resolved := linkTarget
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), linkTarget)
	}
	if !withinDirectory(destination, resolved) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, linkTarget)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replacing %s: %w", target, err)
	}
	return os.Symlink(linkTarget, target)
}
