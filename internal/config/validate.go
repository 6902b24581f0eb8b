package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Watch group disjointness is
// checked by the watcher itself before its first tick.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateArtifacts(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateRuntime(); err != nil {
		return err
	}
	if err := c.validatePipelines(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverMySQL, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set when store.driver is %s (or set SATPIPE_STORE_DSN)", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver: unsupported value %q (want sqlite, mysql or postgres)", c.Store.Driver)
	}
	return nil
}

func (c *Config) validateArtifacts() error {
	switch c.Artifacts.Backend {
	case ArtifactBackendLocal:
		return nil
	case ArtifactBackendMinIO:
		if c.Artifacts.Endpoint == "" {
			return errors.New("artifacts.endpoint must be set when artifacts.backend is minio")
		}
		if c.Artifacts.Bucket == "" {
			return errors.New("artifacts.bucket must be set when artifacts.backend is minio")
		}
		if c.Artifacts.AccessKey == "" || c.Artifacts.SecretKey == "" {
			return errors.New("artifacts.access_key and artifacts.secret_key must be set when artifacts.backend is minio")
		}
		return nil
	default:
		return fmt.Errorf("artifacts.backend: unsupported value %q (want local or minio)", c.Artifacts.Backend)
	}
}

func (c *Config) validateWatcher() error {
	if err := ensurePositiveMap(map[string]int{
		"watcher.poll_interval":        c.Watcher.PollInterval,
		"watcher.error_retry_interval": c.Watcher.ErrorRetryInterval,
		"watcher.stuck_after":          c.Watcher.StuckAfter,
		"staging.sweep_interval":       c.Staging.SweepInterval,
	}); err != nil {
		return err
	}
	if c.Watcher.TriggerRate < 0 {
		return errors.New("watcher.trigger_rate must be >= 0")
	}
	if c.Staging.MaxAgeHours < 0 {
		return errors.New("staging.max_age_hours must be >= 0")
	}
	if strings.ContainsAny(c.Staging.Prefix, `/\`) {
		return errors.New("staging.prefix must not contain path separators")
	}
	return nil
}

func (c *Config) validateRuntime() error {
	switch c.Runtime.Kind {
	case RuntimeLog:
		return nil
	case RuntimeTemporal:
		if c.Runtime.TemporalAddress == "" {
			return errors.New("runtime.temporal_address must be set when runtime.kind is temporal")
		}
		if c.Runtime.WorkflowTimeout <= 0 {
			return errors.New("runtime.workflow_timeout must be positive")
		}
		return nil
	case RuntimeCommand:
		if len(c.Runtime.Command) == 0 || strings.TrimSpace(c.Runtime.Command[0]) == "" {
			return errors.New("runtime.command must be set when runtime.kind is command")
		}
		return nil
	default:
		return fmt.Errorf("runtime.kind: unsupported value %q (want temporal, command or log)", c.Runtime.Kind)
	}
}

func (c *Config) validatePipelines() error {
	seen := make(map[string]struct{}, len(c.Pipelines))
	for i, p := range c.Pipelines {
		if p.Name == "" {
			return fmt.Errorf("pipelines[%d].name must be set", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("pipelines: duplicate pipeline %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		switch p.TerminalStatus {
		case "std", "to_delete":
		case "":
			return fmt.Errorf("pipelines.%s.terminal_status must be set (std or to_delete)", p.Name)
		default:
			return fmt.Errorf("pipelines.%s.terminal_status: unsupported value %q (want std or to_delete)", p.Name, p.TerminalStatus)
		}
		if len(p.Stages) == 0 {
			return fmt.Errorf("pipelines.%s must define at least one stage", p.Name)
		}
		for j, stage := range p.Stages {
			if stage.Name == "" {
				return fmt.Errorf("pipelines.%s.stages[%d].name must be set", p.Name, j)
			}
			if len(stage.Command) == 0 {
				return fmt.Errorf("pipelines.%s.stages.%s.command must be set", p.Name, stage.Name)
			}
			if stage.Timeout < 0 {
				return fmt.Errorf("pipelines.%s.stages.%s.timeout must be >= 0", p.Name, stage.Name)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
