package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mattjoyce/executor/internal/fsutil"
)

// IntegrityResult collects the outcome of VerifyIntegrity.
// Errors fail the check. Warnings are informational.
type IntegrityResult struct {
	Passed   bool
	Errors   []string
	Warnings []string
}

// VerifyIntegrity checks every module configuration under root against the manifest.
// A missing manifest is a warning; a modified, unlisted or vanished file is an error.
func VerifyIntegrity(root string) (*IntegrityResult, error) {
	result := &IntegrityResult{Passed: true}

	files, err := fsutil.FilesWithExt(root, ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	manifest, err := LoadChecksums(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"no %s manifest found in %s; run 'executor config lock' to enable integrity verification",
				checksumFilename, root))
			return result, nil
		}
		return nil, err
	}

	seen := make(map[string]bool, len(files))
	for _, path := range files {
		name := filepath.Base(path)
		seen[name] = true

		data, err := os.ReadFile(path)
		if err != nil {
			result.fail(fmt.Sprintf("failed to read %s: %v", name, err))
			continue
		}
		if err := manifest.verify(name, data); err != nil {
			result.fail(err.Error())
		}
	}

	var missing []string
	for name := range manifest.Hashes {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	for _, name := range missing {
		result.fail(fmt.Sprintf("%s is in checksums but missing from disk", name))
	}
	return result, nil
}

func (r *IntegrityResult) fail(msg string) {
	r.Passed = false
	r.Errors = append(r.Errors, msg)
}
