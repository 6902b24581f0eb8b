package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RunTimestampLayout formats the run timestamp embedded in temp paths.
const RunTimestampLayout = "20060102T150405"

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "tmp"

// ErrOutsideRoot reports an attempt to create or remove a path that is not
// strictly beneath the staging root.
var ErrOutsideRoot = errors.New("path is outside the staging root")

// Manager hands out deterministic temp paths beneath a staging root and is
// the only component allowed to delete them.
type Manager struct {
	root   string
	prefix string
}

// NewManager returns a Manager for root. An empty prefix falls back to
// DefaultPrefix.
func NewManager(root, prefix string) (*Manager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("staging root must be set")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve staging root: %w", err)
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if strings.ContainsAny(prefix, `/\`) {
		return nil, fmt.Errorf("staging prefix %q must not contain path separators", prefix)
	}
	return &Manager{root: filepath.Clean(abs), prefix: prefix}, nil
}

// Root returns the staging root.
func (m *Manager) Root() string { return m.root }

// Prefix returns the temp path prefix.
func (m *Manager) Prefix() string { return m.prefix }

// Path returns <root>/<prefix>_<stage>_<runTS>_<run>_<key>. run identifies
// one invocation of the stage; concurrent invocations must pass distinct
// values so they never share a path. The same arguments always yield the
// same path.
func (m *Manager) Path(stage string, runTS time.Time, run, key string) (string, error) {
	if err := checkSegment("stage", stage); err != nil {
		return "", err
	}
	if err := checkSegment("run", run); err != nil {
		return "", err
	}
	if err := checkSegment("key", key); err != nil {
		return "", err
	}
	name := strings.Join([]string{m.prefix, stage, runTS.UTC().Format(RunTimestampLayout), run, key}, "_")
	return filepath.Join(m.root, name), nil
}

// Provision creates path as a directory.
func (m *Manager) Provision(path string) error {
	if err := m.guard(path); err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create temp dir %s: %w", path, err)
	}
	return nil
}

// Release recursively removes path. Missing paths are not an error; paths
// that are not strictly beneath the root are refused.
func (m *Manager) Release(path string) error {
	if err := m.guard(path); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove temp path %s: %w", path, err)
	}
	return nil
}

// Contains reports whether path lies strictly beneath the root.
func (m *Manager) Contains(path string) bool {
	return m.guard(path) == nil
}

func (m *Manager) guard(path string) error {
	if strings.TrimSpace(path) == "" || !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q", ErrOutsideRoot, path)
	}
	rel, err := filepath.Rel(m.root, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return nil
}

func checkSegment(kind, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("temp path %s must be set", kind)
	}
	if strings.ContainsAny(value, `/\`) || value == "." || value == ".." {
		return fmt.Errorf("temp path %s %q must not contain path separators", kind, value)
	}
	return nil
}

// Scope records the temp paths acquired by one stage run so they can all be
// released together.
type Scope struct {
	manager *Manager
	mu      sync.Mutex
	paths   []string
}

// NewScope starts an empty scope.
func (m *Manager) NewScope() *Scope {
	return &Scope{manager: m}
}

// Path resolves a temp path and records it for release.
func (s *Scope) Path(stage string, runTS time.Time, run, key string) (string, error) {
	path, err := s.manager.Path(stage, runTS, run, key)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
	return path, nil
}

// Paths returns the recorded paths in acquisition order.
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// ReleaseAll removes every recorded path, continuing past failures. The
// scope is empty afterwards.
func (s *Scope) ReleaseAll() []CleanupError {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	var failures []CleanupError
	for _, path := range paths {
		if err := s.manager.Release(path); err != nil {
			failures = append(failures, CleanupError{Path: path, Error: err})
		}
	}
	return failures
}
