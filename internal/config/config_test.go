package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"narthex/internal/config"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "narthex", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7319" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Vision.APIKey != "env-anthropic" {
		t.Fatalf("expected vision key from env, got %q", cfg.Vision.APIKey)
	}
	if cfg.Vision.Model != config.Default().Vision.Model {
		t.Fatalf("unexpected vision model: %q", cfg.Vision.Model)
	}
	if cfg.Workflow.Workers != config.Default().Workflow.Workers {
		t.Fatalf("unexpected worker count: %d", cfg.Workflow.Workers)
	}
	if cfg.WatchFolder.Enabled {
		t.Fatal("expected watch folder disabled by default")
	}
	if !cfg.Notifications.SessionSummary {
		t.Fatal("expected session summary notifications enabled by default")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.IncomingDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "narthex.toml")

	type payload struct {
		Org struct {
			DefaultOrgID string `toml:"default_org_id"`
		} `toml:"org"`
		Vision struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"vision"`
		Workflow struct {
			Workers           int `toml:"workers"`
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Org.DefaultOrgID = "grace-fellowship"
	custom.Vision.APIKey = "abc123"
	custom.Vision.Model = "claude-sonnet-4-20250514"
	custom.Workflow.Workers = 2
	custom.Workflow.HeartbeatInterval = 20
	custom.Workflow.HeartbeatTimeout = 200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Org.DefaultOrgID != "grace-fellowship" {
		t.Fatalf("expected org from file, got %q", cfg.Org.DefaultOrgID)
	}
	if cfg.Vision.Model != "claude-sonnet-4-20250514" {
		t.Fatalf("expected model override, got %q", cfg.Vision.Model)
	}
	if cfg.Workflow.Workers != 2 {
		t.Fatalf("expected 2 workers, got %d", cfg.Workflow.Workers)
	}
	if cfg.Workflow.HeartbeatTimeout != 200 {
		t.Fatalf("expected heartbeat timeout 200, got %d", cfg.Workflow.HeartbeatTimeout)
	}
}

func TestEnvVarOverridesConfigFileForSecrets(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "narthex.toml")

	type payload struct {
		Paths struct {
			APIToken string `toml:"api_token"`
		} `toml:"paths"`
		Storage struct {
			APIKey string `toml:"api_key"`
		} `toml:"storage"`
		Vision struct {
			APIKey string `toml:"api_key"`
		} `toml:"vision"`
	}
	custom := payload{}
	custom.Paths.APIToken = "file-token"
	custom.Storage.APIKey = "file-storage"
	custom.Vision.APIKey = "file-anthropic"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")
	t.Setenv("NARTHEX_STORAGE_API_KEY", "env-storage")
	t.Setenv("NARTHEX_API_TOKEN", "env-token")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Vision.APIKey != "env-anthropic" {
		t.Errorf("expected vision key from env, got %q", cfg.Vision.APIKey)
	}
	if cfg.Storage.APIKey != "env-storage" {
		t.Errorf("expected storage key from env, got %q", cfg.Storage.APIKey)
	}
	if cfg.Paths.APIToken != "env-token" {
		t.Errorf("expected api token from env, got %q", cfg.Paths.APIToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your-anthropic-api-key") {
		t.Fatalf("sample config missing placeholder vision key: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "narthex") {
		t.Fatalf("expected data dir to mention narthex, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "missing data dir",
			mutate: func(c *config.Config) { c.Paths.DataDir = "" },
			want:   "data_dir",
		},
		{
			name:   "bad api bind",
			mutate: func(c *config.Config) { c.Paths.APIBind = "not-a-bind" },
			want:   "api_bind",
		},
		{
			name:   "zero workers",
			mutate: func(c *config.Config) { c.Workflow.Workers = -1 },
			want:   "workers",
		},
		{
			name: "heartbeat timeout too small",
			mutate: func(c *config.Config) {
				c.Workflow.HeartbeatInterval = 30
				c.Workflow.HeartbeatTimeout = 30
			},
			want: "heartbeat_timeout",
		},
		{
			name: "watch folder enabled without dir",
			mutate: func(c *config.Config) {
				c.WatchFolder.Enabled = true
				c.WatchFolder.Dir = ""
			},
			want: "watch_folder.dir",
		},
		{
			name:   "unknown log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
		{
			name:   "unknown log level",
			mutate: func(c *config.Config) { c.Logging.Level = "verbose" },
			want:   "logging.level",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
