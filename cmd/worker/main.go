package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/bookingfulfillment/config"
	"github.com/Domenick1991/bookingfulfillment/internal/bootstrap"
	"github.com/Domenick1991/bookingfulfillment/internal/email"
	"github.com/Domenick1991/bookingfulfillment/internal/kafka"
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

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingEventsTopic, log)
		defer consumer.Close()

		sender := email.NewSender(cfg.Email, log)
		go func() {
			for {
				err := consumer.Consume(ctx, sender.Send)
				if ctx.Err() != nil {
					return
				}
				log.Error("notification consumer stopped, restarting", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
				}
			}
		}()
	} else {
		log.Warn("kafka brokers not configured, notifications disabled")
	}

	sweeper := deps.Sweeper()
	ticker := time.NewTicker(cfg.Fulfillment.SweepInterval)
	defer ticker.Stop()

	log.Info("worker started", "sweep_interval", cfg.Fulfillment.SweepInterval, "sweep_min_age", cfg.Fulfillment.SweepMinAge)
	for {
		select {
		case <-ticker.C:
			if _, err := sweeper.Sweep(ctx); err != nil && ctx.Err() == nil {
				log.Error("sweep failed", "error", err)
			}
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		}
	}
}
