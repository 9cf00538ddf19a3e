package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"narthex/internal/cards"
	"narthex/internal/config"
	"narthex/internal/daemon"
	"narthex/internal/extraction"
	"narthex/internal/ipc"
	"narthex/internal/logging"
	"narthex/internal/notifications"
	"narthex/internal/persist"
	"narthex/internal/queue"
	"narthex/internal/upload"
	"narthex/internal/watchfolder"
	"narthex/internal/workflow"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:    "daemon",
		Short:  "Run the narthex daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open intake store: %w", err)
	}
	cardStore, err := cards.Open(cfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("open cards store: %w", err)
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, uuid.NewString(), notifier)
	manager.ConfigureStages(buildIntakeStages(cfg, store, cardStore, logger))

	d, err := daemon.New(cfg, store, cardStore, manager, notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, ctx.socketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	watcher, err := watchfolder.New(cfg, d, logger)
	if err != nil {
		logger.Warn("watch folder setup", logging.Error(err))
	} else if watcher != nil {
		if err := watcher.Start(signalCtx); err != nil {
			logger.Warn("watch folder start", logging.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	<-signalCtx.Done()
	logger.Info("narthex daemon shutting down")
	return nil
}

func buildIntakeStages(cfg *config.Config, store *queue.Store, cardStore *cards.Store, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		Uploader:  upload.NewUploader(cfg, store, logger),
		Extractor: extraction.NewExtractor(cfg, store, cardStore, logger),
		Saver:     persist.NewSaver(cfg, store, cardStore, logger),
	}
}
