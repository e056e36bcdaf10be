// cmd/api/wire.go

package main

import (
	"context"
	"fmt"

	"pulse/internal/adapter/provider"
	"pulse/internal/adapter/storage"
	"pulse/internal/config"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
	"pulse/internal/service/orchestrator"
)

// initSnapshotStore opens the configured snapshot backend. The returned
// close function releases its connections.
func initSnapshotStore(ctx context.Context, cfg config.Config, log logger.Logger) (signal.SnapshotStore, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
	defer cancel()

	switch cfg.Snapshot.Backend {
	case config.BackendPostgres:
		pool, err := storage.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		store := storage.NewPostgresSnapshotStore(pool, cfg.Snapshot.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("Using Postgres snapshot store", logger.String("table", cfg.Snapshot.Table))
		return store, pool.Close, nil

	case config.BackendRedis:
		client, err := storage.NewRedisClient(ctx, storage.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		log.Info("Using Redis snapshot store", logger.String("address", cfg.Redis.Address))
		return storage.NewRedisSnapshotStore(client, cfg.Snapshot.TTL), func() { client.Close() }, nil

	default:
		log.Info("Using in-memory snapshot store")
		return storage.NewMemorySnapshotStore(), func() {}, nil
	}
}

// providerOptions returns options for the classification and reasoning
// collaborators, which share PROVIDER_API_KEY
func providerOptions(cfg config.ProvidersConfig, observer provider.Observer) provider.Options {
	return provider.Options{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		APIKey:            cfg.APIKey,
		Observer:          observer,
	}
}

// retrievalOptions returns options for retrieval sources. Only the generic
// search endpoint is authenticated, with its own key.
func retrievalOptions(cfg config.ProvidersConfig, observer provider.Observer) provider.Options {
	opts := providerOptions(cfg, observer)
	opts.APIKey = cfg.RetrievalAPIKey
	return opts
}

// buildRetriever selects the retrieval provider. The multi provider fans in
// every source that has enough configuration to run.
func buildRetriever(cfg config.ProvidersConfig, sources config.Sources, opts provider.Options, log logger.Logger) (signal.Retriever, error) {
	feeds := make([]provider.Feed, 0, len(sources.Feeds))
	for _, f := range sources.Feeds {
		feeds = append(feeds, provider.Feed{Name: f.Name, URL: f.URL})
	}

	switch cfg.Retrieval {
	case config.RetrievalHTTP:
		return provider.NewHTTPRetriever(cfg.RetrievalURL, opts), nil

	case config.RetrievalReddit:
		return provider.NewRedditRetriever(cfg.RedditURL, cfg.RedditLimit, opts), nil

	case config.RetrievalX:
		return provider.NewXRetriever(cfg.XHost, cfg.XBearerToken, cfg.XMaxResults, opts), nil

	case config.RetrievalRSS:
		if len(feeds) == 0 {
			return nil, fmt.Errorf("rss retrieval needs at least one feed in SOURCES_FILE")
		}
		return provider.NewRSSRetriever(feeds, opts, log), nil

	case config.RetrievalMulti:
		var named []provider.NamedRetriever
		if cfg.RetrievalURL != "" {
			named = append(named, provider.NamedRetriever{Name: "http", Retriever: provider.NewHTTPRetriever(cfg.RetrievalURL, opts)})
		}
		named = append(named, provider.NamedRetriever{Name: "reddit", Retriever: provider.NewRedditRetriever(cfg.RedditURL, cfg.RedditLimit, opts)})
		if cfg.XBearerToken != "" {
			named = append(named, provider.NamedRetriever{Name: "x", Retriever: provider.NewXRetriever(cfg.XHost, cfg.XBearerToken, cfg.XMaxResults, opts)})
		}
		if len(feeds) > 0 {
			named = append(named, provider.NamedRetriever{Name: "rss", Retriever: provider.NewRSSRetriever(feeds, opts, log)})
		}
		return provider.NewMultiRetriever(log, named...), nil

	default:
		return nil, fmt.Errorf("unknown retrieval provider %q", cfg.Retrieval)
	}
}

func buildClassifier(cfg config.ProvidersConfig, opts provider.Options) signal.Classifier {
	return provider.NewHTTPClassifier(cfg.ClassifierURL, opts)
}

func buildReasoner(cfg config.ProvidersConfig, opts provider.Options) signal.Reasoner {
	endpoints := make(map[string]string)
	for kind, url := range map[string]string{
		orchestrator.TaskMine:     cfg.MineURL,
		orchestrator.TaskScore:    cfg.ScoreURL,
		orchestrator.TaskPlaybook: cfg.PlaybookURL,
	} {
		if url != "" {
			endpoints[kind] = url
		}
	}
	return provider.NewHTTPReasoner(cfg.ReasonerURL, endpoints, opts)
}
