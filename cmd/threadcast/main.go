package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"threadcast/internal/app"
	"threadcast/pkg/config"
	"threadcast/pkg/logger"
	"threadcast/pkg/shutdown"
)

// version is set via ldflags during release builds.
var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	flags := config.ParseCommandFlags()

	cfg, err := config.Load(flags.Config)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// explicit flags win over config/env
	if flags.Set["addr"] {
		cfg.Server.Address = flags.Addr
		cfg.Server.Port = 0
	}
	if flags.Set["db"] {
		cfg.Storage.DBPath = flags.DB
	}

	logger.InitWithLevel(cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(cfg, version)
	if err != nil {
		shutdown.Abort("startup", err, cfg.Storage.DBPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server", err, cfg.Storage.DBPath)
	}
}
