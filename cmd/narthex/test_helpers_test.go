package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"narthex/internal/cards"
	"narthex/internal/config"
	"narthex/internal/daemon"
	"narthex/internal/ipc"
	"narthex/internal/logging"
	"narthex/internal/notifications"
	"narthex/internal/queue"
	"narthex/internal/stage"
	"narthex/internal/testsupport"
	"narthex/internal/workflow"
)

type noopStage struct {
	name string
}

func (n noopStage) Prepare(context.Context, *queue.Item) error { return nil }
func (n noopStage) Execute(context.Context, *queue.Item) error { return nil }
func (n noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(n.name)
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	cards      *cards.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	cardStore := testsupport.MustOpenCards(t, cfg)

	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger, "cli-test-session")
	mgr.ConfigureStages(workflow.StageSet{
		Uploader:  noopStage{name: "upload"},
		Extractor: noopStage{name: "extraction"},
		Saver:     noopStage{name: "persist"},
	})

	d, err := daemon.New(cfg, store, cardStore, mgr, notifications.NewService(cfg), logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("unix sockets unavailable: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		cards:      cardStore,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nincoming_dir = %q\nlog_dir = %q\napi_bind = %q\n\n[org]\ndefault_org_id = %q\ndefault_location_id = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.IncomingDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Org.DefaultOrgID,
		cfg.Org.DefaultLocationID,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
