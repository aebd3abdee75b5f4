// Command linfit-server serves the linfit HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/linfit/config"
	"github.com/YuminosukeSato/linfit/pkg/log"
	"github.com/YuminosukeSato/linfit/server"
	"github.com/YuminosukeSato/linfit/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "linfit-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		return err
	}
	logger := log.GetLogger()
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.Open(cfg.DBDriver, cfg.DatabaseURL,
		storage.WithCodec(cfg.ArchiveCodec),
		storage.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		"addr", cfg.Addr(),
		"db_driver", cfg.DBDriver,
		"archive_codec", cfg.ArchiveCodec.String(),
	)
	return server.New(cfg, store, logger).Run(ctx)
}
