package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/executor/internal/fsutil"
)

const checksumFilename = ".checksums"

// ChecksumManifest is the on-disk record of module configuration hashes,
// keyed by file name relative to the configuration root.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// LockReport describes the outcome of GenerateChecksums.
type LockReport struct {
	Root         string
	ChecksumPath string
	Written      bool
	Hashes       map[string]string
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return hashBytes(data), nil
}

func hashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateChecksums hashes every *.json file directly under root and writes
// root/.checksums. When dryRun is true nothing is written.
func GenerateChecksums(root string, dryRun bool) (*LockReport, error) {
	files, err := fsutil.FilesWithExt(root, ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	manifest := ChecksumManifest{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hashes:      make(map[string]string, len(files)),
	}
	for _, path := range files {
		hash, err := ComputeBlake3Hash(path)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", filepath.Base(path), err)
		}
		manifest.Hashes[filepath.Base(path)] = hash
	}

	report := &LockReport{
		Root:         root,
		ChecksumPath: filepath.Join(root, checksumFilename),
		Hashes:       manifest.Hashes,
	}
	if dryRun {
		return report, nil
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checksums: %w", err)
	}
	if err := os.WriteFile(report.ChecksumPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write checksums: %w", err)
	}
	report.Written = true
	return report, nil
}

// LoadChecksums reads the .checksums manifest from root.
func LoadChecksums(root string) (*ChecksumManifest, error) {
	data, err := os.ReadFile(filepath.Join(root, checksumFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checksums file not found (run 'executor config lock'): %w", err)
		}
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}
	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}
	return &manifest, nil
}

// verify checks data for name against the manifest.
func (m *ChecksumManifest) verify(name string, data []byte) error {
	expected, ok := m.Hashes[name]
	if !ok {
		return fmt.Errorf("%s has no hash in checksums (run 'executor config lock')", name)
	}
	if actual := hashBytes(data); actual != expected {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s", name, expected, actual)
	}
	return nil
}
