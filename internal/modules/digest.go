package modules

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/executor/internal/collab"
)

// DigestCollaborator hashes source with BLAKE3 and writes a b3sum-style line to destination.
func DigestCollaborator() collab.Func {
	return func(ctx context.Context, source, destination string) error {
		sum, err := digestFile(ctx, source)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(source))
		if err := os.WriteFile(destination, []byte(line), 0o644); err != nil {
			return fmt.Errorf("write digest: %w", err)
		}
		return nil
	}
}

func digestFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, ctxReader{ctx: ctx, r: f}); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// notDigest skips digest outputs so re-running a batch does not hash them.
func notDigest(path string) bool {
	return !strings.HasSuffix(path, ".b3")
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
