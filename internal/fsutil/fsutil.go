// Package fsutil classifies paths and enumerates directory children.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the expected shape of a path on disk.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// KindFor maps the expect_directory flag used by forwards to a Kind.
func KindFor(expectDirectory bool) Kind {
	if expectDirectory {
		return KindDirectory
	}
	return KindFile
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindFile || k == KindDirectory
}

// ErrNotExist is returned by Classify when nothing lives at the path.
var ErrNotExist = errors.New("path does not exist")

// Classify stats path (following symlinks) and reports whether it is a file or a directory.
// Anything that is not a directory is treated as a file.
func Classify(path string) (Kind, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return KindDirectory, nil
	}
	return KindFile, nil
}

// Is reports whether path exists and has the given kind.
func Is(path string, kind Kind) bool {
	got, err := Classify(path)
	return err == nil && got == kind
}

// Exists reports whether anything lives at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Children returns the sorted absolute-or-joined paths of the immediate entries of dir
// that have the given kind. Symlinks are resolved when deciding the kind.
func Children(dir string, kind Kind) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var out []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			isDir = Is(path, KindDirectory)
		}
		if (kind == KindDirectory) == isDir {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

// FilesWithExt returns the sorted files of dir whose names end in ext.
// A missing dir yields no files and no error.
func FilesWithExt(dir, ext string) ([]string, error) {
	if !Is(dir, KindDirectory) {
		return nil, nil
	}
	files, err := Children(dir, KindFile)
	if err != nil {
		return nil, err
	}
	out := files[:0]
	for _, f := range files {
		if strings.HasSuffix(f, ext) {
			out = append(out, f)
		}
	}
	return out, nil
}
