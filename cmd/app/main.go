package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/bookingfulfillment/config"
	"github.com/Domenick1991/bookingfulfillment/internal/bootstrap"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
)

func main() {
	log := logger.NewLogger()
	defer func() { _ = log.Sync() }()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal("load config", "path", cfgPath, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDeps(ctx, cfg, log)
	if err != nil {
		log.Fatal("init dependencies", "error", err)
	}
	defer deps.Close()

	log.Info("starting booking fulfillment api", "http", cfg.HTTP.Address, "grpc", cfg.GRPC.Address, "store", cfg.Store.Driver)
	if err := bootstrap.Run(ctx, cfg, deps.Router(), log); err != nil {
		log.Error("server stopped", "error", err)
		return
	}
	log.Info("server stopped")
}
