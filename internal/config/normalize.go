package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	if err := c.normalizeArtifacts(); err != nil {
		return err
	}
	c.normalizeStaging()
	c.normalizeWatcher()
	c.normalizeRuntime()
	c.normalizePipelines()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.Driver == "postgresql" {
		c.Store.Driver = DriverPostgres
	}
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv("SATPIPE_STORE_DSN"); ok {
			c.Store.DSN = value
		}
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.Driver == DriverSQLite {
		if strings.TrimSpace(c.Store.Path) == "" {
			c.Store.Path = filepath.Join(c.Paths.StateDir, defaultSQLiteFile)
		}
		var err error
		if c.Store.Path, err = expandPath(c.Store.Path); err != nil {
			return fmt.Errorf("store.path: %w", err)
		}
	}
	if c.Store.QueryTimeout <= 0 {
		c.Store.QueryTimeout = defaultQueryTimeout
	}
	return nil
}

func (c *Config) normalizeArtifacts() error {
	c.Artifacts.Backend = strings.ToLower(strings.TrimSpace(c.Artifacts.Backend))
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = ArtifactBackendLocal
	}
	if c.Artifacts.Backend == "s3" {
		c.Artifacts.Backend = ArtifactBackendMinIO
	}
	if c.Artifacts.AccessKey == "" {
		if value, ok := os.LookupEnv("SATPIPE_ARTIFACTS_ACCESS_KEY"); ok {
			c.Artifacts.AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Artifacts.SecretKey == "" {
		if value, ok := os.LookupEnv("SATPIPE_ARTIFACTS_SECRET_KEY"); ok {
			c.Artifacts.SecretKey = strings.TrimSpace(value)
		}
	}
	c.Artifacts.Endpoint = strings.TrimSpace(c.Artifacts.Endpoint)
	c.Artifacts.Bucket = strings.TrimSpace(c.Artifacts.Bucket)
	if c.Artifacts.Backend == ArtifactBackendLocal {
		if strings.TrimSpace(c.Artifacts.Root) == "" {
			c.Artifacts.Root = defaultArchiveRoot
		}
		var err error
		if c.Artifacts.Root, err = expandPath(c.Artifacts.Root); err != nil {
			return fmt.Errorf("artifacts.root: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeStaging() {
	c.Staging.Prefix = strings.TrimSpace(c.Staging.Prefix)
	if c.Staging.Prefix == "" {
		c.Staging.Prefix = defaultStagingPrefix
	}
	if c.Staging.SweepInterval <= 0 {
		c.Staging.SweepInterval = defaultSweepInterval
	}
}

func (c *Config) normalizeWatcher() {
	if c.Watcher.TriggerBurst <= 0 {
		c.Watcher.TriggerBurst = defaultTriggerBurst
	}
	for i := range c.Watcher.Groups {
		group := &c.Watcher.Groups[i]
		group.Name = strings.TrimSpace(group.Name)
		if group.Name == "" {
			group.Name = fmt.Sprintf("group-%d", i+1)
		}
		group.Pipelines = trimNonEmpty(group.Pipelines)
	}
}

func (c *Config) normalizeRuntime() {
	c.Runtime.Kind = strings.ToLower(strings.TrimSpace(c.Runtime.Kind))
	if c.Runtime.Kind == "" {
		c.Runtime.Kind = RuntimeLog
	}
	c.Runtime.TemporalAddress = strings.TrimSpace(c.Runtime.TemporalAddress)
	c.Runtime.TaskQueue = strings.TrimSpace(c.Runtime.TaskQueue)
	if c.Runtime.TaskQueue == "" {
		c.Runtime.TaskQueue = defaultTaskQueue
	}
	if c.Runtime.TemporalNamespace == "" {
		c.Runtime.TemporalNamespace = defaultTemporalNamespace
	}
}

func (c *Config) normalizePipelines() {
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		p.Name = strings.TrimSpace(p.Name)
		p.TerminalStatus = strings.ToLower(strings.TrimSpace(p.TerminalStatus))
		for j := range p.Stages {
			p.Stages[j].Name = strings.TrimSpace(p.Stages[j].Name)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
