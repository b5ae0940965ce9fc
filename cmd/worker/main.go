package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OFFIS-RIT/casegraph/internal/bootstrap"
	"github.com/OFFIS-RIT/casegraph/internal/queue"
	"github.com/OFFIS-RIT/casegraph/pkg/graph"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
)

func main() {
	cfg := bootstrap.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// graph store
	client, closeGraph, err := bootstrap.OpenGraph(ctx, cfg)
	if err != nil {
		logger.Fatal("Unable to connect to graph store", "adapter", cfg.Graph.Adapter, "err", err)
	}
	defer closeGraph()

	// message bus
	bus, err := bootstrap.OpenBus(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to message bus", "adapter", cfg.Bus.Adapter, "err", err)
	}
	defer bus.Close()

	// metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", "port", cfg.Worker.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "err", err)
		}
	}()

	processor := queue.NewCaseProcessor(
		graph.NewProjector(client),
		graph.NewDetector(client, graph.WithHotspotMinCases(cfg.Graph.HotspotMinCases)),
	)

	if err := bus.Consume(ctx, processor.Handler(), cfg.Worker.Concurrency); err != nil {
		logger.Error("Consumer stopped", "err", err)
	}

	logger.Info("Shutdown signal received, exiting...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
