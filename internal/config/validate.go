package config

import (
	"fmt"
	"net"
	"strings"

	"narthex/internal/services"
)

var validLogFormats = map[string]bool{"console": true, "json": true}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration for structural problems. It does not
// verify that external services are reachable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "paths.data_dir must not be empty", nil)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "paths.log_dir must not be empty", nil)
	}
	if c.Paths.APIBind != "" {
		if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
			return services.Wrap(services.ErrConfiguration, "config", "validate",
				fmt.Sprintf("paths.api_bind %q is not host:port", c.Paths.APIBind), err)
		}
	}
	if c.Workflow.Workers < 1 {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "workflow.workers must be at least 1", nil)
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			"workflow.heartbeat_timeout must exceed workflow.heartbeat_interval", nil)
	}
	if c.Storage.MaxUploadMiB < 1 {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "storage.max_upload_mib must be at least 1", nil)
	}
	if c.WatchFolder.Enabled && strings.TrimSpace(c.WatchFolder.Dir) == "" {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			"watch_folder.dir must be set when watch_folder.enabled is true", nil)
	}
	if !validLogFormats[c.Logging.Format] {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format), nil)
	}
	if !validLogLevels[c.Logging.Level] {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("logging.level %q must be debug, info, warn, or error", c.Logging.Level), nil)
	}
	return nil
}
