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

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	IncomingDir string `toml:"incoming_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Org configures tenant defaults applied to captures that arrive without
// explicit organization context (CLI imports, watch folder drops).
type Org struct {
	DefaultOrgID      string `toml:"default_org_id"`
	DefaultLocationID string `toml:"default_location_id"`
}

// Storage configures the presigned-upload collaborator.
type Storage struct {
	PresignEndpoint string `toml:"presign_endpoint"`
	APIKey          string `toml:"api_key"`
	MaxUploadMiB    int    `toml:"max_upload_mib"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Vision configures the Anthropic extraction service.
type Vision struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains daemon timing and concurrency settings.
type Workflow struct {
	Workers                   int `toml:"workers"`
	QueuePollInterval         int `toml:"queue_poll_interval"`
	ErrorRetryInterval        int `toml:"error_retry_interval"`
	HeartbeatInterval         int `toml:"heartbeat_interval"`
	HeartbeatTimeout          int `toml:"heartbeat_timeout"`
	StageTimeout              int `toml:"stage_timeout"`
	DuplicatePersonWindowDays int `toml:"duplicate_person_window_days"`
}

// WatchFolder configures the optional capture source that sweeps a drop
// directory for scanned card images.
type WatchFolder struct {
	Enabled      bool   `toml:"enabled"`
	Dir          string `toml:"dir"`
	ScanInterval int    `toml:"scan_interval"`
}

// ScanTokens configures the short-lived phone hand-off credentials.
type ScanTokens struct {
	TTLMinutes int `toml:"ttl_minutes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	SessionSummary bool   `toml:"session_summary"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Narthex.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Org: tenant defaults for captures without explicit context
//   - Storage: presigned-upload collaborator settings
//   - Vision: Anthropic extraction service settings
//   - Workflow: worker pool sizing, polling, heartbeats, stage timeouts
//   - WatchFolder: scanned-image drop directory sweep
//   - ScanTokens: QR hand-off token lifetime
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Org           Org           `toml:"org"`
	Storage       Storage       `toml:"storage"`
	Vision        Vision        `toml:"vision"`
	Workflow      Workflow      `toml:"workflow"`
	WatchFolder   WatchFolder   `toml:"watch_folder"`
	ScanTokens    ScanTokens    `toml:"scan_tokens"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/narthex/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a configuration file was found at the resolved path.
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
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file. Environment values win when both are set.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Vision.APIKey = v
	}
	if v := os.Getenv("NARTHEX_STORAGE_API_KEY"); v != "" {
		c.Storage.APIKey = v
	}
	if v := os.Getenv("NARTHEX_API_TOKEN"); v != "" {
		c.Paths.APIToken = v
	}
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("narthex.toml")
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
	for _, dir := range []string{c.Paths.DataDir, c.Paths.IncomingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.WatchFolder.Enabled && strings.TrimSpace(c.WatchFolder.Dir) != "" {
		if err := os.MkdirAll(c.WatchFolder.Dir, 0o755); err != nil {
			return fmt.Errorf("create watch folder %q: %w", c.WatchFolder.Dir, err)
		}
	}
	return nil
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
