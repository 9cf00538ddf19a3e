package config

import "strings"

// normalize expands path fields and clamps numeric settings to sane values.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.IncomingDir, err = expandPath(c.Paths.IncomingDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.WatchFolder.Dir) != "" {
		if c.WatchFolder.Dir, err = expandPath(c.WatchFolder.Dir); err != nil {
			return err
		}
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Org.DefaultOrgID = strings.TrimSpace(c.Org.DefaultOrgID)
	c.Org.DefaultLocationID = strings.TrimSpace(c.Org.DefaultLocationID)
	c.Storage.PresignEndpoint = strings.TrimSpace(c.Storage.PresignEndpoint)
	c.Storage.APIKey = strings.TrimSpace(c.Storage.APIKey)
	c.Vision.APIKey = strings.TrimSpace(c.Vision.APIKey)
	c.Vision.Model = strings.TrimSpace(c.Vision.Model)
	c.Vision.BaseURL = strings.TrimSpace(c.Vision.BaseURL)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)

	if c.Storage.MaxUploadMiB <= 0 {
		c.Storage.MaxUploadMiB = defaultStorageMaxUploadMiB
	}
	if c.Storage.TimeoutSeconds <= 0 {
		c.Storage.TimeoutSeconds = defaultStorageTimeoutSeconds
	}
	if c.Vision.MaxTokens <= 0 {
		c.Vision.MaxTokens = defaultVisionMaxTokens
	}
	if c.Vision.TimeoutSeconds <= 0 {
		c.Vision.TimeoutSeconds = defaultVisionTimeoutSeconds
	}
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkflowWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.StageTimeout <= 0 {
		c.Workflow.StageTimeout = defaultStageTimeout
	}
	if c.Workflow.DuplicatePersonWindowDays <= 0 {
		c.Workflow.DuplicatePersonWindowDays = defaultDuplicatePersonWindowDays
	}
	if c.WatchFolder.ScanInterval <= 0 {
		c.WatchFolder.ScanInterval = defaultWatchScanInterval
	}
	if c.ScanTokens.TTLMinutes <= 0 {
		c.ScanTokens.TTLMinutes = defaultScanTokenTTLMinutes
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
