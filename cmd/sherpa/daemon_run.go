package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"sherpa/internal/announce"
	"sherpa/internal/bus"
	"sherpa/internal/daemon"
	"sherpa/internal/ipc"
	"sherpa/internal/judge"
	"sherpa/internal/lessons"
	"sherpa/internal/logging"
	"sherpa/internal/progress"
)

// runDaemonProcess runs the daemon in the foreground until interrupted.
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

	store, err := lessons.Open(signalCtx, cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open lesson store: %w", err)
	}

	cache := lessons.NewCache(store, logger)
	registry := bus.NewRegistry(logger)
	judgeClient := judge.NewClient(cfg.Judge)
	orchestrator := progress.New(cache, judgeClient, logger)
	announcer := announce.New(registry, logger)

	d, err := daemon.New(cfg, store, cache, registry, orchestrator, announcer, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socket := ""
	if ctx.socketFlag != nil {
		socket = strings.TrimSpace(*ctx.socketFlag)
	}
	if socket == "" {
		socket = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socket, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	if cfg.Judge.APIKey == "" {
		logger.Warn("judge api key not configured; screenshot evaluation will fail until one is set")
	}

	<-signalCtx.Done()
	logger.Info("sherpa daemon shutting down")
	return nil
}
