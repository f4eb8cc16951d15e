package main

import (
	"context"
	"log"
	"os"

	"store-pos/internal/config"
	"store-pos/internal/database"
	"store-pos/internal/logging"
	"store-pos/internal/server"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	if err := database.Init(cfg); err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	app := server.New(cfg)

	go func() {
		logger.Info("store backend listening",
			zap.String("port", cfg.HTTPPort),
			zap.String("driver", cfg.DatabaseDriver))
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				logger.Info("shutting down http server")
				if err := app.ShutdownWithContext(ctx); err != nil {
					return err
				}
				// handlers are drained, the pool can go
				sqlDB, err := database.DB.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		},
	)

	exitCode := <-wait
	logger.Info("store backend exited", zap.Int("code", exitCode))
	os.Exit(exitCode)
}
