package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"satpipe/internal/fileutil"
)

// LocalStore archives artifacts beneath a root directory on a shared
// filesystem. Locations are absolute paths.
type LocalStore struct {
	root string
}

// NewLocalStore returns a LocalStore rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("artifact root must be set")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the archive root.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Describe() string { return "local:" + s.root }

func (s *LocalStore) Fetch(ctx context.Context, location, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := location
	if !filepath.IsAbs(src) {
		src = filepath.Join(s.root, src)
	}
	if _, err := fileutil.CopyFile(src, localPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissing, src)
		}
		return fmt.Errorf("fetch %s: %w", src, err)
	}
	return nil
}

func (s *LocalStore) Put(ctx context.Context, localPath, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := s.resolveKey(key)
	if err != nil {
		return "", err
	}
	if _, err := fileutil.CopyFile(localPath, dst); err != nil {
		return "", fmt.Errorf("archive %s: %w", localPath, err)
	}
	return dst, nil
}

func (s *LocalStore) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := location
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.root, target)
	}
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("artifact location %q is outside archive root", location)
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", target, err)
	}
	return nil
}

func (s *LocalStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("artifact root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("artifact root %s is not a directory", s.root)
	}
	return nil
}

func (s *LocalStore) resolveKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("artifact key must be set")
	}
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, dst)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("artifact key %q escapes archive root", key)
	}
	return dst, nil
}
