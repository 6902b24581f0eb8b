package config

const (
	defaultConfigPath         = "~/.config/satpipe/config.toml"
	defaultStagingDir         = "~/.local/share/satpipe/staging"
	defaultLogDir             = "~/.local/share/satpipe/logs"
	defaultStateDir           = "~/.local/share/satpipe"
	defaultArchiveRoot        = "~/.local/share/satpipe/objects"
	defaultSQLiteFile         = "metadata.db"
	defaultQueryTimeout       = 10
	defaultStagingPrefix      = "tmp"
	defaultStagingMaxAgeHours = 48
	defaultSweepInterval      = 3600
	defaultPollInterval       = 60
	defaultErrorRetry         = 30
	defaultTriggerBurst       = 1
	defaultStuckAfter         = 6 * 60 * 60
	defaultTemporalAddress    = "localhost:7233"
	defaultTemporalNamespace  = "default"
	defaultTaskQueue          = "satpipe"
	defaultWorkflowTimeout    = 6 * 60 * 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Artifact backends.
const (
	ArtifactBackendLocal = "local"
	ArtifactBackendMinIO = "minio"
)

// Runtime kinds.
const (
	RuntimeTemporal = "temporal"
	RuntimeCommand  = "command"
	RuntimeLog      = "log"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Store: Store{
			Driver:          DriverSQLite,
			QueryTimeout:    defaultQueryTimeout,
			VerifyMultihash: true,
		},
		Artifacts: Artifacts{
			Backend: ArtifactBackendLocal,
			Root:    defaultArchiveRoot,
		},
		Staging: Staging{
			Prefix:        defaultStagingPrefix,
			MaxAgeHours:   defaultStagingMaxAgeHours,
			SweepInterval: defaultSweepInterval,
		},
		Watcher: Watcher{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetry,
			TriggerBurst:       defaultTriggerBurst,
			StuckAfter:         defaultStuckAfter,
		},
		Runtime: Runtime{
			Kind:              RuntimeLog,
			TemporalAddress:   defaultTemporalAddress,
			TemporalNamespace: defaultTemporalNamespace,
			TaskQueue:         defaultTaskQueue,
			WorkflowTimeout:   defaultWorkflowTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
