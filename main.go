package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/qubane/webserv/api"
	"github.com/qubane/webserv/cache"
	"github.com/qubane/webserv/catalog"
	"github.com/qubane/webserv/config"
	"github.com/qubane/webserv/filesystem"
	"github.com/qubane/webserv/http"
	"github.com/qubane/webserv/telemetry"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	tel, err := telemetry.Setup(ctx, "webserv")
	if err != nil {
		return err
	}
	defer tel.Shutdown(context.Background())

	logger := tel.Logger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := filesystem.NewLocalFilesystem()

	cat := catalog.Build(cfg.Routes, fs, logger)
	logger.Info("catalog built", "entries", cat.Len())
	for _, public := range cat.Paths() {
		entry, _ := cat.Lookup(public)
		logger.Debug("allowed path", "path", public, "file", entry.File, "size", entry.Size)
	}

	store := cache.NewStore(cat, fs, logger, cache.Options{
		PrecompressDir:   cfg.PrecompressDir,
		PrecomputeBrotli: cfg.PrecomputeBrotli,
	})

	router := http.NewRouter(store, logger)
	if cfg.ErrorPageFile != "" {
		if err := router.LoadErrorPage(fs, cfg.ErrorPageFile); err != nil {
			logger.Warn("using embedded error page", "file", cfg.ErrorPageFile, "error", err)
		}
	}
	router.RegisterVersion("v1", true, api.V1(cfg, time.Now(), logger))

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return err
	}

	server := http.NewServer(cfg, router, logger, metrics)

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening and serving", "addr", cfg.Address(), "tls", cfg.TLSEnabled())
		serverErrCh <- server.Start()
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
		stop()
	}

	return server.Shutdown(context.Background())
}
