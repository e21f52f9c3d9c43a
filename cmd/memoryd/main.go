// Command memoryd is the tiered memory orchestrator's entrypoint: it loads
// configuration, dials the configured backends, wires the pipeline, job
// manager, and tool dispatcher together, and serves the HTTP front door.
// Modeled on tarsy's cmd/tarsy/main.go startup sequence (load config, open
// stores, start the worker, serve), using the stdlib log package for the
// pre-logger bootstrap messages the same way tarsy does before its own
// structured logger is ready.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/memoryd/memoryd/pkg/analyzer"
	"github.com/memoryd/memoryd/pkg/config"
	"github.com/memoryd/memoryd/pkg/graphstore"
	"github.com/memoryd/memoryd/pkg/httpapi"
	"github.com/memoryd/memoryd/pkg/jobs"
	"github.com/memoryd/memoryd/pkg/llm"
	"github.com/memoryd/memoryd/pkg/llm/anthropicprovider"
	"github.com/memoryd/memoryd/pkg/llm/localprovider"
	"github.com/memoryd/memoryd/pkg/llm/openaiprovider"
	"github.com/memoryd/memoryd/pkg/logging"
	"github.com/memoryd/memoryd/pkg/pipeline"
	"github.com/memoryd/memoryd/pkg/relational"
	"github.com/memoryd/memoryd/pkg/relational/pgstore"
	"github.com/memoryd/memoryd/pkg/relational/sqlitestore"
	"github.com/memoryd/memoryd/pkg/rerank"
	"github.com/memoryd/memoryd/pkg/tools"
	"github.com/memoryd/memoryd/pkg/vectorstore"
	"github.com/memoryd/memoryd/pkg/version"
)

func main() {
	configDir := flag.String("config-dir", ".", "directory to look for an optional .env file in")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, logFile, err := logging.Open(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Fatalf("open log file %s: %v", cfg.LogPath, err)
	}
	defer logFile.Close()
	logger = logger.With("component", "main")
	logger.Info("starting", "version", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openRelationalStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open relational store: %v", err)
	}
	defer closeStore()

	registry := buildRegistry(cfg)
	chat := registry.Chat(cfg.ChatModel)
	embedder := registry.Embedding(cfg.EmbeddingModel)

	vector, err := openVectorStore(cfg, embedder)
	if err != nil {
		logger.Warn("vector store unavailable, degrading", "error", err)
	}

	graph, err := openGraphStore(ctx, cfg)
	if err != nil {
		logger.Warn("graph store unavailable, degrading", "error", err)
	}
	if graph != nil {
		defer graph.Close(ctx)
	}

	an := analyzer.New(chat)
	rr := rerank.New(embedder)

	pl := pipeline.New(store, vector, graph, an, rr, embedder, pipeline.Config{
		ShortMemoryCapacity: cfg.ShortMemoryCapacity,
		StoreTimeout:        cfg.StoreTimeout,
	}, logger.With("component", "pipeline"))

	jobStore, ok := store.(relational.JobStore)
	if !ok {
		log.Fatalf("relational backend does not implement JobStore")
	}
	jobMgr := jobs.New(jobStore, store, an, cfg.JobQueueCapacity, logger.With("component", "jobs"))
	jobMgr.Start(ctx)
	defer jobMgr.Stop()

	dispatcher := tools.NewDispatcher()
	tools.RegisterAll(dispatcher, tools.Deps{
		Pipeline:      pl,
		Store:         store,
		Vector:        vector,
		Graph:         graph,
		Jobs:          jobMgr,
		Chat:          chat,
		LogPath:       cfg.LogPath,
		DirectivePath: cfg.DirectivePath,
	})
	logger.Info("tools registered", "count", len(dispatcher.Names()))

	engine := httpapi.New(httpapi.Deps{
		Store:      store,
		Vector:     vector,
		Graph:      graph,
		Jobs:       jobMgr,
		Dispatcher: dispatcher,
		Logger:     logger.With("component", "httpapi"),
	})

	srv := &httpServer{addr: cfg.HTTPAddr, handler: engine}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.run() }()
	logger.Info("serving", "addr", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server exited", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
}

func openRelationalStore(ctx context.Context, cfg *config.Config) (relational.Store, func(), error) {
	if cfg.RelationalBackend == config.RelationalBackendNetworked {
		client, err := pgstore.New(ctx, pgstore.Config{
			Host:            cfg.NetworkedDB.Host,
			Port:            cfg.NetworkedDB.Port,
			User:            cfg.NetworkedDB.User,
			Password:        cfg.NetworkedDB.Password,
			Database:        cfg.NetworkedDB.Name,
			MaxOpenConns:    cfg.NetworkedDB.MaxConns,
			ConnMaxIdleTime: cfg.NetworkedDB.IdleTimeout,
			ConnTimeout:     cfg.NetworkedDB.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	}

	client, err := sqlitestore.New(ctx, sqlitestore.Config{Path: cfg.EmbeddedDBPath})
	if err != nil {
		return nil, nil, err
	}
	return client, func() { client.Close() }, nil
}

func buildRegistry(cfg *config.Config) *llm.Registry {
	registry := llm.NewRegistry()
	if cfg.ChatAPIKey != "" && strings.HasPrefix(cfg.ChatModel, "claude") {
		registry.RegisterChat("claude", anthropicprovider.New(cfg.ChatAPIKey, cfg.ChatModel))
	}
	if cfg.ChatAPIKey != "" && strings.HasPrefix(cfg.ChatModel, "gpt") {
		registry.RegisterChat("gpt", openaiprovider.NewChat(cfg.ChatAPIKey, cfg.ChatModel))
	}
	if strings.EqualFold(cfg.EmbeddingModel, "openai") && cfg.OpenAIAPIKey != "" {
		registry.RegisterEmbedding("openai", openaiprovider.NewEmbedding(cfg.OpenAIAPIKey))
	}

	local, err := localprovider.New("http://localhost:11434", cfg.ChatModel)
	if err != nil {
		local = nil
	}
	registry.SetLocal(local, local)
	return registry
}

func openVectorStore(cfg *config.Config, embedder llm.EmbeddingProvider) (*vectorstore.Store, error) {
	if cfg.VectorURL == "" {
		return nil, nil
	}
	host, port := splitHostPort(cfg.VectorURL)
	return vectorstore.New(vectorstore.Config{
		Host:       host,
		Port:       port,
		Collection: cfg.VectorCollection,
	}, embedder)
}

func openGraphStore(ctx context.Context, cfg *config.Config) (*graphstore.Store, error) {
	if cfg.GraphURL == "" {
		return nil, nil
	}
	return graphstore.New(ctx, graphstore.Config{
		URI:      cfg.GraphURL,
		User:     cfg.GraphUser,
		Password: cfg.GraphPassword,
		Database: cfg.GraphDB,
	})
}

func splitHostPort(addr string) (string, int) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return addr, 6334
	}
	port := 6334
	if v, err := strconv.Atoi(portStr); err == nil {
		port = v
	}
	return host, port
}
