package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/ai"
	"github.com/spigell/ses-matcher/internal/embedding"
	"github.com/spigell/ses-matcher/internal/extract"
	"github.com/spigell/ses-matcher/internal/indexer"
	"github.com/spigell/ses-matcher/internal/logger"
	"github.com/spigell/ses-matcher/internal/matching"
	"github.com/spigell/ses-matcher/internal/records"
	"github.com/spigell/ses-matcher/internal/recordsource"
	"github.com/spigell/ses-matcher/internal/recordsource/sqlite"
	"github.com/spigell/ses-matcher/internal/secrets"
	"github.com/spigell/ses-matcher/internal/vectorstore"
	"github.com/spigell/ses-matcher/internal/vectorstore/pgvector"
	"github.com/spigell/ses-matcher/internal/vectorstore/pinecone"
	"github.com/spigell/ses-matcher/internal/workflow"
)

// application holds the clients shared by a command. Each one is built on
// first use and reused for the rest of the process.
type application struct {
	config *Config
	logger *zap.Logger

	llm      ai.Client
	embedder embedding.Embedder
	store    vectorstore.Store
	source   recordsource.Source

	closers []func()
}

// setup builds the logger and reads the configuration. Failures are fatal.
func setup() (context.Context, *application) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Debug("starting", zap.String("version", version), zap.String("llm_provider", config.LLM.Provider))

	return ctx, &application{config: config, logger: logger}
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// LLM returns the client selected by llm.provider and llm.model.
func (a *application) LLM(ctx context.Context) (ai.Client, error) {
	if a.llm != nil {
		return a.llm, nil
	}

	registry, err := a.registry()
	if err != nil {
		return nil, err
	}

	client, err := ai.NewSelector(registry, a.logger).Client(ctx, a.config.LLM.Provider, a.config.LLM.Model)
	if err != nil {
		return nil, err
	}

	a.llm = client
	return client, nil
}

func (a *application) registry() (*ai.Registry, error) {
	registry := ai.NewRegistry()

	for _, p := range providers {
		factory, err := p.factory(a.config, a.logger)
		if err != nil {
			return nil, fmt.Errorf("%s provider: %w", p.provider, err)
		}
		registry.Register(p.provider, factory)
	}

	return registry, nil
}

func (a *application) openAIKey() (string, error) {
	return optionalSecret(secrets.Source{
		Name:  "openai api key",
		Value: a.config.OpenAI.APIKey,
		File:  a.config.OpenAI.APIKeyFile,
	})
}

// Embedder returns the OpenAI embedder, wrapped in the redis cache when
// embedding-cache.redis-url is set.
func (a *application) Embedder(ctx context.Context) (embedding.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}

	key, err := a.openAIKey()
	if err != nil {
		return nil, err
	}

	var embedder embedding.Embedder
	embedder, err = embedding.NewOpenAI(key, a.config.OpenAI.BaseURL, a.config.OpenAI.EmbeddingModel, a.logger)
	if err != nil {
		return nil, err
	}

	if url := strings.TrimSpace(a.config.EmbeddingCache.RedisURL); url != "" {
		rdb, err := embedding.NewRedisClient(ctx, url)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		embedder = embedding.NewCached(embedder, rdb, a.config.EmbeddingCache.TTL, a.logger)
		a.logger.Info("embedding cache enabled", zap.Duration("ttl", a.config.EmbeddingCache.TTL))
	}

	a.embedder = embedder
	return embedder, nil
}

// VectorStore returns the backend named by vector-store.type.
func (a *application) VectorStore(ctx context.Context) (vectorstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	cfg := a.config.VectorStore
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "memory":
		a.store = vectorstore.NewMemory()
	case "", "pinecone":
		key, err := secrets.Load(secrets.Source{Name: "pinecone api key", Value: cfg.Pinecone.APIKey})
		if err != nil {
			return nil, err
		}
		store, err := pinecone.New(pinecone.Config{
			Host:      cfg.Pinecone.Host,
			APIKey:    key,
			Namespace: cfg.Pinecone.Namespace,
			Timeout:   cfg.Pinecone.Timeout,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.store = store
	case "pgvector":
		store, err := pgvector.New(ctx, pgvector.Config{
			URL:       cfg.PGVector.URL,
			Table:     cfg.PGVector.Table,
			Dimension: cfg.PGVector.Dimension,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.store = store
	default:
		return nil, fmt.Errorf("unknown vector store type %q (valid: memory, pinecone, pgvector)", cfg.Type)
	}

	a.logger.Debug("vector store ready", zap.String("type", cfg.Type))
	return a.store, nil
}

// RecordSource returns the sqlite backend when record-source.sqlite-path is
// set and the spreadsheet web app otherwise.
func (a *application) RecordSource() (recordsource.Source, error) {
	if a.source != nil {
		return a.source, nil
	}

	cfg := a.config.RecordSource
	if path := strings.TrimSpace(cfg.SQLitePath); path != "" {
		store, err := sqlite.Open(path, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.source = store
		return store, nil
	}

	client, err := recordsource.New(a.logger, cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	a.source = client
	return client, nil
}

// Workflow wires the batch flows. The indexing side is built only when
// withIndex is set so that formatting runs do not need vector store
// credentials.
func (a *application) Workflow(ctx context.Context, withIndex bool) (*workflow.Workflow, error) {
	source, err := a.RecordSource()
	if err != nil {
		return nil, err
	}

	client, err := a.LLM(ctx)
	if err != nil {
		return nil, err
	}
	llmLogger := logger.WithLLM(a.logger, client.Provider().String(), client.Model())
	ex := extract.New(client, llmLogger, a.config.LLM.MaxLogLength)

	var (
		idx   workflow.Indexer
		store vectorstore.Store
	)
	if withIndex {
		embedder, err := a.Embedder(ctx)
		if err != nil {
			return nil, err
		}
		if store, err = a.VectorStore(ctx); err != nil {
			return nil, err
		}
		idx = indexer.New(embedder, store, a.logger)
	} else {
		idx = unavailableIndexer{}
	}

	return workflow.New(source, ex, idx, store, a.logger, a.config.LLM.MaxLogLength), nil
}

// IndexWorkflow wires only the pieces needed by index-candidates and prune.
func (a *application) IndexWorkflow(ctx context.Context, withSource bool) (*workflow.Workflow, error) {
	store, err := a.VectorStore(ctx)
	if err != nil {
		return nil, err
	}

	var (
		source recordsource.Source
		idx    workflow.Indexer = unavailableIndexer{}
	)
	if withSource {
		if source, err = a.RecordSource(); err != nil {
			return nil, err
		}
		embedder, err := a.Embedder(ctx)
		if err != nil {
			return nil, err
		}
		idx = indexer.New(embedder, store, a.logger)
	}

	return workflow.New(source, nil, idx, store, a.logger, a.config.LLM.MaxLogLength), nil
}

// Matcher wires retrieval and ranking.
func (a *application) Matcher(ctx context.Context) (*matching.Matcher, error) {
	client, err := a.LLM(ctx)
	if err != nil {
		return nil, err
	}
	embedder, err := a.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.VectorStore(ctx)
	if err != nil {
		return nil, err
	}

	llmLogger := logger.WithLLM(a.logger, client.Provider().String(), client.Model())
	return matching.New(client, embedder, store, llmLogger, matching.Config{
		TopK:         a.config.Matching.TopK,
		MaxLogLength: a.config.LLM.MaxLogLength,
	}), nil
}

// optionalSecret returns an empty secret when nothing is configured so that
// the provider reports missing credentials on first use. A configured but
// unreadable file is an error.
func optionalSecret(src secrets.Source) (string, error) {
	secret, err := secrets.Load(src)
	if err != nil {
		if strings.TrimSpace(src.File) != "" {
			return "", err
		}
		return "", nil
	}
	return secret, nil
}

var errIndexingDisabled = errors.New("indexing is not configured for this command")

type unavailableIndexer struct{}

func (unavailableIndexer) Index(context.Context, []records.Candidate) (int, error) {
	return 0, errIndexingDisabled
}
