package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
}

// Store contains metadata store connection settings.
type Store struct {
	Driver          string `toml:"driver"`
	DSN             string `toml:"dsn"`
	Path            string `toml:"path"`
	QueryTimeout    int    `toml:"query_timeout"`
	VerifyMultihash bool   `toml:"verify_multihash"`
}

// Artifacts contains the artifact byte storage settings.
type Artifacts struct {
	Backend   string `toml:"backend"`
	Root      string `toml:"root"`
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Staging contains temp resource settings.
type Staging struct {
	Prefix        string `toml:"prefix"`
	MaxAgeHours   int    `toml:"max_age_hours"`
	SweepInterval int    `toml:"sweep_interval"`
}

// WatchGroup associates product types (and optionally areas) with the
// pipelines to trigger when a matching record becomes ready.
type WatchGroup struct {
	Name           string   `toml:"name"`
	ProductTypeIDs []int64  `toml:"product_type_ids"`
	AreaIDs        []int64  `toml:"area_ids"`
	Pipelines      []string `toml:"pipelines"`
}

// Watcher contains poll loop timing and the watch groups.
type Watcher struct {
	PollInterval       int          `toml:"poll_interval"`
	ErrorRetryInterval int          `toml:"error_retry_interval"`
	TriggerRate        float64      `toml:"trigger_rate"`
	TriggerBurst       int          `toml:"trigger_burst"`
	StuckAfter         int          `toml:"stuck_after"`
	Groups             []WatchGroup `toml:"groups"`
}

// Runtime selects and configures the workflow engine adapter.
type Runtime struct {
	Kind              string   `toml:"kind"`
	TemporalAddress   string   `toml:"temporal_address"`
	TemporalNamespace string   `toml:"temporal_namespace"`
	TaskQueue         string   `toml:"task_queue"`
	WorkflowTimeout   int      `toml:"workflow_timeout"`
	Command           []string `toml:"command"`
}

// Stage describes one lifecycle-wrapped step of a pipeline.
type Stage struct {
	Name     string                       `toml:"name"`
	Inputs   map[string]string            `toml:"inputs"`
	Outputs  map[string]map[string]string `toml:"outputs"`
	TempDirs []string                     `toml:"temp_dirs"`
	Command  []string                     `toml:"command"`
	Timeout  int                          `toml:"timeout"`
}

// Pipeline is a named, ordered list of stages and the status its input
// record receives when every stage succeeds.
type Pipeline struct {
	Name           string            `toml:"name"`
	TerminalStatus string            `toml:"terminal_status"`
	Params         map[string]string `toml:"params"`
	Stages         []Stage           `toml:"stages"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for satpipe.
//
// Configuration sections by subsystem:
//   - Paths: staging, log and state directories
//   - Store: metadata store driver and connection
//   - Artifacts: where artifact bytes live (local archive or S3/MinIO)
//   - Staging: temp path prefix and stale sweep
//   - Watcher: poll timing, trigger rate limits and watch groups
//   - Runtime: workflow engine adapter used to trigger pipelines
//   - Pipelines: stage definitions executed by `satpipe pipeline run`
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths      `toml:"paths"`
	Store     Store      `toml:"store"`
	Artifacts Artifacts  `toml:"artifacts"`
	Staging   Staging    `toml:"staging"`
	Watcher   Watcher    `toml:"watcher"`
	Runtime   Runtime    `toml:"runtime"`
	Pipelines []Pipeline `toml:"pipelines"`
	Logging   Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("satpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.StateDir}
	if c.Artifacts.Backend == ArtifactBackendLocal {
		dirs = append(dirs, c.Artifacts.Root)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RunLogDir is where per-run pipeline logs are written.
func (c *Config) RunLogDir() string {
	return filepath.Join(c.Paths.LogDir, "runs")
}

// LockPath is the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "satpiped.lock")
}

// Pipeline returns the pipeline definition with the given name.
func (c *Config) Pipeline(name string) (Pipeline, bool) {
	for _, p := range c.Pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return Pipeline{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
