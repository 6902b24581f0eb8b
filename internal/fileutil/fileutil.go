package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile streams src to dst with default permissions (0o644). Parent
// directories of dst are created as needed.
func CopyFile(src, dst string) (int64, error) {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src into a sibling temp file and renames it over dst,
// so readers never observe a partially written artifact.
func CopyFileMode(src, dst string, mode os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("copy %s: source is a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create parent of %s: %w", dst, err)
	}

	partial := dst + ".partial"
	out, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(partial)
		return 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(partial)
		return 0, err
	}
	if written != info.Size() {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if err := os.Rename(partial, dst); err != nil {
		_ = os.Remove(partial)
		return 0, err
	}
	return written, nil
}
