package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"narthex/internal/cards"
	"narthex/internal/config"
	"narthex/internal/daemon"
	"narthex/internal/ipc"
	"narthex/internal/logging"
	"narthex/internal/notifications"
	"narthex/internal/queue"
	"narthex/internal/watchfolder"
	"narthex/internal/workflow"

	"github.com/google/uuid"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open intake store", logging.Error(err))
		return
	}
	cardStore, err := cards.Open(cfg)
	if err != nil {
		store.Close()
		logger.Error("open cards store", logging.Error(err))
		return
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, uuid.NewString(), notifier)
	manager.ConfigureStages(buildStages(cfg, store, cardStore, logger))

	d, err := daemon.New(cfg, store, cardStore, manager, notifier, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, buildSocketPath(cfg), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	watcher, err := watchfolder.New(cfg, d, logger)
	if err != nil {
		logger.Warn("watch folder setup", logging.Error(err))
	} else if watcher != nil {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("watch folder start", logging.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	<-ctx.Done()
	logger.Info("narthexd shutting down")
}
