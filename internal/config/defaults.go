package config

const (
	defaultDataDir                   = "~/.local/share/narthex/data"
	defaultIncomingDir               = "~/.local/share/narthex/incoming"
	defaultLogDir                    = "~/.local/share/narthex/logs"
	defaultAPIBind                   = "127.0.0.1:7319"
	defaultStorageMaxUploadMiB       = 15
	defaultStorageTimeoutSeconds     = 30
	defaultVisionModel               = "claude-3-5-haiku-latest"
	defaultVisionMaxTokens           = 1024
	defaultVisionTimeoutSeconds      = 60
	defaultWorkflowWorkers           = 4
	defaultQueuePollInterval         = 2
	defaultErrorRetryInterval        = 5
	defaultHeartbeatInterval         = 15
	defaultHeartbeatTimeout          = 120
	defaultStageTimeout              = 120
	defaultDuplicatePersonWindowDays = 90
	defaultWatchScanInterval         = 5
	defaultScanTokenTTLMinutes       = 10
	defaultNotifyRequestTimeout      = 10
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			IncomingDir: defaultIncomingDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Storage: Storage{
			MaxUploadMiB:   defaultStorageMaxUploadMiB,
			TimeoutSeconds: defaultStorageTimeoutSeconds,
		},
		Vision: Vision{
			Model:          defaultVisionModel,
			MaxTokens:      defaultVisionMaxTokens,
			TimeoutSeconds: defaultVisionTimeoutSeconds,
		},
		Workflow: Workflow{
			Workers:                   defaultWorkflowWorkers,
			QueuePollInterval:         defaultQueuePollInterval,
			ErrorRetryInterval:        defaultErrorRetryInterval,
			HeartbeatInterval:         defaultHeartbeatInterval,
			HeartbeatTimeout:          defaultHeartbeatTimeout,
			StageTimeout:              defaultStageTimeout,
			DuplicatePersonWindowDays: defaultDuplicatePersonWindowDays,
		},
		WatchFolder: WatchFolder{
			ScanInterval: defaultWatchScanInterval,
		},
		ScanTokens: ScanTokens{
			TTLMinutes: defaultScanTokenTTLMinutes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			SessionSummary: true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
