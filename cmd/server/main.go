package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/casegraph/internal/bootstrap"
	"github.com/OFFIS-RIT/casegraph/internal/server"
	"github.com/OFFIS-RIT/casegraph/internal/storage"
	"github.com/OFFIS-RIT/casegraph/pkg/ingest"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
)

func main() {
	cfg := bootstrap.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := bootstrap.OpenBus(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to message bus", "adapter", cfg.Bus.Adapter, "err", err)
	}
	defer bus.Close()

	var archive *storage.Archive
	if cfg.ArchiveEnabled() {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		archive = storage.NewArchive(client, cfg.S3.Bucket)
	}

	normalizer := bootstrap.NewNormalizer(cfg)
	svc, err := ingest.NewService(ingest.NewServiceParams{
		Pipeline:   bootstrap.NewPipeline(cfg, normalizer, bus.Publisher),
		Normalizer: normalizer,
	})
	if err != nil {
		logger.Fatal("Failed to create ingest service", "err", err)
	}

	e := server.New(server.NewServerParams{
		Ingest:    svc,
		Archive:   archive,
		BodyLimit: cfg.Server.BodyLimit,
	})
	if err := server.Run(ctx, e, cfg.Server.Port); err != nil {
		logger.Fatal("Server stopped", "err", err)
	}
	logger.Info("Shutdown complete")
}
