// Command sherpad runs the lesson progress and notification daemon.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sherpa/internal/announce"
	"sherpa/internal/bus"
	"sherpa/internal/config"
	"sherpa/internal/daemon"
	"sherpa/internal/ipc"
	"sherpa/internal/judge"
	"sherpa/internal/lessons"
	"sherpa/internal/logging"
	"sherpa/internal/progress"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	// A local .env can carry SHERPA_JUDGE_API_KEY during development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := lessons.Open(ctx, cfg.DatabasePath())
	if err != nil {
		logger.Error("open lesson store", logging.Error(err))
		os.Exit(1)
	}

	cache := lessons.NewCache(store, logger)
	registry := bus.NewRegistry(logger)
	judgeClient := judge.NewClient(cfg.Judge)
	orchestrator := progress.New(cache, judgeClient, logger)
	announcer := announce.New(registry, logger)

	d, err := daemon.New(cfg, store, cache, registry, orchestrator, announcer, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		os.Exit(1)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}
	if cfg.Judge.APIKey == "" {
		logger.Warn("judge api key not configured; screenshot evaluation will fail until one is set")
	}

	<-ctx.Done()
	logger.Info("sherpad shutting down")
}
