// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"pulse/internal/adapter/events"
	"pulse/internal/config"
	"pulse/internal/logger"
	"pulse/internal/metrics"
	"pulse/internal/server"
	"pulse/internal/server/handlers"
	"pulse/internal/service/classify"
	"pulse/internal/service/dedup"
	"pulse/internal/service/orchestrator"
	"pulse/internal/service/snapshot"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Service stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.Logger) error {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sources, err := config.LoadSources(cfg.Providers.SourcesFile)
	if err != nil {
		return err
	}

	m := metrics.New()

	// Snapshot storage
	store, closeStore, err := initSnapshotStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Event mirror: NATS when configured, otherwise in-process
	hub := events.NewHub()
	var (
		sink       orchestrator.EventSink = hub
		runWatcher handlers.Watcher       = hub
	)

	if cfg.NATS.URL != "" {
		natsConn, err := initNATS(cfg.NATS, log)
		if err != nil {
			return err
		}
		defer natsConn.Close()

		publisher := events.NewNATSPublisher(natsConn, cfg.NATS.EventsTopic, log)
		sink = publisher
		runWatcher = publisher
	}

	// Providers
	opts := providerOptions(cfg.Providers, m)
	retriever, err := buildRetriever(cfg.Providers, sources, retrievalOptions(cfg.Providers, m), log)
	if err != nil {
		return err
	}

	deps := orchestrator.Deps{
		Retriever:  retriever,
		Classifier: buildClassifier(cfg.Providers, opts),
		Reasoner:   buildReasoner(cfg.Providers, opts),
		Dedup: dedup.NewEngine(dedup.Config{
			Threshold:      cfg.Pipeline.DedupThreshold,
			BlockedDomains: config.MergeBlocked(cfg.Pipeline.BlockedDomains, sources.BlockedDomains),
		}, log),
		Snapshots: snapshot.NewEngine(store, log),
		Recorder:  m,
		Logger:    log,
	}

	budget := classify.Budget{
		TitleChars: cfg.Pipeline.TitleChars,
		BodyChars:  cfg.Pipeline.BodyChars,
		TotalChars: cfg.Pipeline.TotalChars,
	}

	variant, err := orchestrator.ParseVariant(cfg.Pipeline.Variant)
	if err != nil {
		return err
	}

	runner := orchestrator.New(deps, sink, orchestrator.Config{
		Variant:     variant,
		EventBuffer: cfg.Pipeline.EventBuffer,
		Budget:      budget,
		SnapshotKey: cfg.Snapshot.Key,
	})

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, server.Dependencies{
		Runner:   runner,
		Registry: orchestrator.NewRunRegistry(),
		Analyzer: orchestrator.NewAnalyzer(deps, budget, cfg.Snapshot.Key),
		Watcher:  runWatcher,
		Metrics:  m.Handler(),
		Logger:   log,

		BaseContext: ctx,
	})

	// Start HTTP server
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server",
			logger.String("host", cfg.Server.Host),
			logger.Int("port", cfg.Server.Port),
			logger.String("retrieval", cfg.Providers.Retrieval),
			logger.String("snapshots", cfg.Snapshot.Backend),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case <-shutdown:
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Shutdown complete")
	return nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig, log logger.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("pulse"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", logger.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", logger.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}

const storeConnectTimeout = 10 * time.Second
